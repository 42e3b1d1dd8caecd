package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/look-pyrenees/internal/bucket"
	"github.com/i474232898/look-pyrenees/internal/geo"
	"github.com/i474232898/look-pyrenees/internal/logger"
	"github.com/i474232898/look-pyrenees/internal/raster"
	"github.com/i474232898/look-pyrenees/internal/resilience"
	"github.com/i474232898/look-pyrenees/internal/scene"
	"github.com/i474232898/look-pyrenees/internal/store"
)

// AllZones selects every configured zone.
const AllZones = "all"

const quicklookDir = "quicklooks"

// Guard answers whether an artifact for a key already exists.
type Guard interface {
	Exists(ctx context.Context, key scene.ArtifactKey) (bool, error)
}

// Options tunes a Service.
type Options struct {
	ProductType   string
	SearchDays    int
	RetentionDays int
	// Quicklooks fetches a preview of every selected product.
	Quicklooks bool

	// Backoff retries bucket and raster calls. Zero uses resilience.DefaultBackoff.
	Backoff resilience.BackoffConfig
	// CallTimeout bounds each bucket call attempt; RasterTimeout each crop
	// or conversion attempt. Zero leaves them unbounded.
	CallTimeout   time.Duration
	RasterTimeout time.Duration
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithBucket uploads PNG artifacts to b and uses it as the duplicate guard.
func WithBucket(b bucket.Bucket, conv raster.Converter) Option {
	return func(s *Service) {
		s.bucket = b
		s.converter = conv
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the scene selection pipeline for named zones.
type Service struct {
	zones     *geo.ZoneSet
	provider  scene.Provider
	selector  scene.Selector
	local     *store.LocalStore
	cropper   raster.Cropper
	bucket    bucket.Bucket
	converter raster.Converter
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(
	zones *geo.ZoneSet,
	provider scene.Provider,
	selector scene.Selector,
	local *store.LocalStore,
	cropper raster.Cropper,
	opts Options,
	options ...Option,
) *Service {
	s := &Service{
		zones:    zones,
		provider: provider,
		selector: selector,
		local:    local,
		cropper:  cropper,
		opts:     opts,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, o := range options {
		o(s)
	}
	if s.bucket != nil {
		s.bucket = &retryingBucket{Bucket: s.bucket, svc: s}
	}
	return s
}

// Zones returns the configured zone names.
func (s *Service) Zones() []string {
	return s.zones.Names()
}

// Local returns the output directory store.
func (s *Service) Local() *store.LocalStore {
	return s.local
}

// ResolveZones expands "all" or a comma separated list into zone names and
// rejects unknown names before any search is issued.
func (s *Service) ResolveZones(arg string) ([]string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" || arg == AllZones {
		return s.zones.Names(), nil
	}

	var out []string
	for _, name := range strings.Split(arg, ",") {
		name = strings.TrimSpace(name)
		if _, err := s.zones.Lookup(name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// Run processes zones one after the other and then applies retention.
// A failing zone is logged and recorded; it never stops the others.
func (s *Service) Run(ctx context.Context, zones []string) Report {
	rep := Report{RunID: uuid.NewString(), Started: s.now().UTC()}
	ctx = logger.WithRunID(ctx, rep.RunID)
	log := logger.FromContext(ctx, s.log)

	log.Info("run started", "zones", zones, "provider", s.provider.Name())
	for _, name := range zones {
		res, err := s.ProcessZone(ctx, name)
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			log.Error("zone failed", "zone", name, "reason", err)
		}
		rep.Zones = append(rep.Zones, res)
	}

	removed, err := s.Clean(ctx)
	rep.Removed = removed
	if err != nil {
		rep.RetentionError = err.Error()
		log.Error("retention failed", "error", err)
	}

	rep.Finished = s.now().UTC()
	log.Info("run finished",
		"artifacts", len(rep.Artifacts()),
		"failed", rep.Failed(),
		"duration", rep.Finished.Sub(rep.Started))
	return rep
}

// ProcessZone searches, selects and materializes the new artifacts of zone.
// Artifacts created before a failure are kept in the result.
func (s *Service) ProcessZone(ctx context.Context, name string) (ZoneResult, error) {
	res := ZoneResult{Zone: name}
	log := logger.FromContext(ctx, s.log).With("zone", name)

	zone, err := s.zones.Lookup(name)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	now := s.now().UTC()
	query := scene.SearchQuery{
		ProductType:   s.opts.ProductType,
		Start:         now.AddDate(0, 0, -s.opts.SearchDays),
		End:           now,
		MaxCloudCover: 100,
		Area:          zone.Bound().ToPolygon(),
	}
	products, err := s.provider.Search(ctx, query)
	if err != nil {
		return res, scene.External("search "+s.provider.Name(), err)
	}
	log.Info("search done", "products", len(products), "from", query.Start.Format(time.DateOnly))

	sel, trace, err := s.selector.Select(products, zone)
	res.Trace = trace
	res.TooCloudy = sel.TooCloudy
	if err != nil {
		return res, err
	}
	if sel.TooCloudy {
		log.Warn("recent products are too cloudy", "selected", len(sel.Products))
	}
	log.Info("selection done",
		"overlapping", trace.Overlapping,
		"contained", trace.Contained,
		"recent", trace.Recent,
		"selected", len(sel.Products))

	seen := make(map[scene.ArtifactKey]bool)
	for _, p := range sel.Products {
		key, info, err := scene.KeyFor(p, zone.Name)
		if err != nil {
			log.Warn("skipping product with unexpected name", "product", p.Name, "error", err)
			res.Skipped = append(res.Skipped, p.Name)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if s.opts.Quicklooks && p.HasQuicklook() {
			s.fetchQuicklook(ctx, log, p, &res)
		}

		exists, err := s.guard().Exists(ctx, key)
		if err != nil {
			return res, scene.External("duplicate check", err)
		}
		if exists {
			log.Info("already produced", "key", key.String())
			res.Duplicates = append(res.Duplicates, key.String())
			continue
		}

		if err := s.materialize(ctx, log, p, zone, key, info, &res); err != nil {
			return res, err
		}
	}

	switch {
	case len(res.Artifacts) > 0:
		res.Status = StatusNew
	case len(res.Duplicates) > 0:
		res.Status = StatusNothingNew
		log.Info("nothing new")
	default:
		return res, fmt.Errorf("%w: none of the %d selected products could be keyed", scene.ErrInvalidName, len(res.Skipped))
	}
	return res, nil
}

// materialize downloads and crops one product, then converts and uploads
// it when a bucket is configured. The claim keeps concurrent processes
// from producing the same artifact.
func (s *Service) materialize(ctx context.Context, log *slog.Logger, p scene.Product, zone geo.Zone, key scene.ArtifactKey, info scene.NameInfo, res *ZoneResult) error {
	release, err := s.local.Claim(key)
	if errors.Is(err, store.ErrClaimed) {
		log.Info("produced by another run", "key", key.String())
		res.Duplicates = append(res.Duplicates, key.String())
		return nil
	}
	if err != nil {
		return scene.External("claim", err)
	}
	defer release()

	// Another process may have produced the key between the first check and
	// the claim.
	exists, err := s.guard().Exists(ctx, key)
	if err != nil {
		return scene.External("duplicate check", err)
	}
	if exists {
		log.Info("produced by another run", "key", key.String())
		res.Duplicates = append(res.Duplicates, key.String())
		return nil
	}

	log.Info("downloading", "product", p.Name, "cloudCover", p.CloudCover, "acquired", p.Acquired)
	downloaded, err := s.provider.Download(ctx, p, s.local.Dir)
	if err != nil {
		return scene.External("download "+p.Name, err)
	}

	tif := filepath.Join(s.local.Dir, scene.ArtifactName(info, zone.Name, "tif"))
	err = s.retry(ctx, s.opts.RasterTimeout, func(ctx context.Context) error {
		return s.cropper.Crop(ctx, downloaded, zone, tif)
	})
	if err != nil {
		return scene.External("crop "+p.Name, err)
	}
	res.Artifacts = append(res.Artifacts, tif)
	log.Info("artifact created", "path", tif)

	if s.bucket == nil {
		return nil
	}

	upload := tif
	if s.converter != nil {
		png := filepath.Join(s.local.Dir, scene.ArtifactName(info, zone.Name, "png"))
		err := s.retry(ctx, s.opts.RasterTimeout, func(ctx context.Context) error {
			return s.converter.ToPNG(ctx, tif, png)
		})
		if err != nil {
			return scene.External("convert "+tif, err)
		}
		upload = png
	}

	object := filepath.Base(upload)
	err = s.bucket.Upload(ctx, upload, object)
	if errors.Is(err, bucket.ErrAlreadyExists) {
		log.Info("object already uploaded", "object", object)
		return nil
	}
	if err != nil {
		return scene.External("upload "+object, err)
	}
	res.Uploaded = append(res.Uploaded, object)
	log.Info("uploaded", "bucket", s.bucket.Name(), "object", object)
	return nil
}

func (s *Service) fetchQuicklook(ctx context.Context, log *slog.Logger, p scene.Product, res *ZoneResult) {
	dir := filepath.Join(s.local.Dir, quicklookDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("quicklook dir", "error", err)
		return
	}
	path, err := s.provider.Quicklook(ctx, p, dir)
	if err != nil {
		log.Warn("quicklook failed", "product", p.Name, "error", err)
		return
	}
	res.Quicklooks = append(res.Quicklooks, path)
}

func (s *Service) guard() Guard {
	if s.bucket != nil {
		return s.bucket
	}
	return s.local
}

// Clean applies retention to the output directory and, when configured,
// to the bucket.
func (s *Service) Clean(ctx context.Context) ([]string, error) {
	r := store.Retention{Days: s.opts.RetentionDays, Log: logger.FromContext(ctx, s.log)}
	now := s.now()

	removed, err := r.Clean(s.local.Dir, now)
	if err != nil {
		return removed, err
	}
	if s.bucket == nil {
		return removed, nil
	}

	objects, err := bucket.Clean(ctx, s.bucket, now, r)
	for _, o := range objects {
		removed = append(removed, fmt.Sprintf("%s/%s", s.bucket.Name(), o))
	}
	return removed, err
}
