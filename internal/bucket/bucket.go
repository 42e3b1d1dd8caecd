// Package bucket stores artifacts in remote object storage and answers the
// duplicate check against it.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/i474232898/look-pyrenees/internal/scene"
	"github.com/i474232898/look-pyrenees/internal/store"
)

// Supported backends.
const (
	BackendS3  = "s3"
	BackendGCS = "gcs"
)

var (
	// ErrAlreadyExists is returned by Upload when the object is already stored.
	ErrAlreadyExists = errors.New("object already exists")
	// ErrObjectNotFound is returned when the object does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = errors.New("unknown bucket backend")
)

// Object describes a stored object.
type Object struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Bucket is a remote artifact store.
type Bucket interface {
	Name() string
	// Exists reports whether an object for key is already stored.
	Exists(ctx context.Context, key scene.ArtifactKey) (bool, error)
	// Upload stores the local file under object, failing with
	// ErrAlreadyExists when the object is present.
	Upload(ctx context.Context, localPath, object string) error
	Delete(ctx context.Context, object string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Name      string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Open returns the bucket described by cfg.
func Open(ctx context.Context, cfg Config) (Bucket, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	switch cfg.Backend {
	case BackendS3, "":
		return NewS3Bucket(ctx, cfg)
	case BackendGCS:
		return NewGCSBucket(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func matchAny(objects []Object, key scene.ArtifactKey) bool {
	for _, o := range objects {
		if key.Matches(path.Base(o.Key)) {
			return true
		}
	}
	return false
}

// Clean removes the objects whose embedded date is past retention.
func Clean(ctx context.Context, b Bucket, now time.Time, r store.Retention) ([]string, error) {
	objects, err := b.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.Name(), err)
	}

	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var removed []string
	for _, o := range objects {
		expired, err := r.Expired(path.Base(o.Key), now)
		if err != nil {
			log.Debug("retention: skipping object without date", "bucket", b.Name(), "object", o.Key)
			continue
		}
		if !expired {
			continue
		}
		if err := b.Delete(ctx, o.Key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			return removed, fmt.Errorf("delete %s: %w", o.Key, err)
		}
		log.Info("retention: removed object", "bucket", b.Name(), "object", o.Key)
		removed = append(removed, o.Key)
	}
	return removed, nil
}
