package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/i474232898/look-pyrenees/internal/scene"
)

var (
	// ErrNotFound is returned when no artifact or run matches the request.
	ErrNotFound = errors.New("not found")
	// ErrClaimed is returned when another process is producing the same artifact.
	ErrClaimed = errors.New("artifact already claimed")
)

// DefaultClaimTTL is how long a claim lock is honoured before it is
// considered abandoned.
const DefaultClaimTTL = 2 * time.Hour

// artifactPattern matches T31TCH_20240511T105031_TCI_10m_<zone>.<ext>.
var artifactPattern = regexp.MustCompile(`^(T\d{2}[A-Z]{3})_(\d{8})T\d{6}_TCI_10m_([A-Za-z0-9_-]+)\.(tif|png)$`)

// Artifact is a cropped raster found in the output directory.
type Artifact struct {
	Name     string    `json:"name"`
	Path     string    `json:"-"`
	Zone     string    `json:"zone"`
	Tile     string    `json:"tile"`
	Date     time.Time `json:"date"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ParseArtifact parses an artifact file name.
func ParseArtifact(name string) (Artifact, bool) {
	m := artifactPattern.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, false
	}
	d, err := time.Parse("20060102", m[2])
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{Name: name, Tile: m[1], Date: d, Zone: m[3]}, true
}

// LocalStore is the output directory holding cropped rasters.
type LocalStore struct {
	Dir      string
	ClaimTTL time.Duration
}

// NewLocalStore creates the output directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &LocalStore{Dir: dir, ClaimTTL: DefaultClaimTTL}, nil
}

// Exists reports whether an artifact for key is already present.
func (s *LocalStore) Exists(_ context.Context, key scene.ArtifactKey) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*"+key.Zone+".tif"))
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if key.Matches(filepath.Base(m)) {
			return true, nil
		}
	}
	return false, nil
}

// List returns the artifacts of zone, newest first. An empty zone lists all.
func (s *LocalStore) List(zone string) ([]Artifact, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		a, ok := ParseArtifact(e.Name())
		if !ok || (zone != "" && a.Zone != zone) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		a.Path = filepath.Join(s.Dir, a.Name)
		a.Size = info.Size()
		a.Modified = info.ModTime()
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Get returns the artifact stored under name. Names that are not artifact
// names are rejected so that callers cannot escape the output directory.
func (s *LocalStore) Get(name string) (Artifact, error) {
	a, ok := ParseArtifact(name)
	if !ok {
		return Artifact{}, ErrNotFound
	}
	a.Path = filepath.Join(s.Dir, name)
	info, err := os.Stat(a.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, err
	}
	a.Size = info.Size()
	a.Modified = info.ModTime()
	return a, nil
}

// Claim takes an exclusive lock on key for the current process. The returned
// release func removes the lock. A lock older than ClaimTTL is broken.
func (s *LocalStore) Claim(key scene.ArtifactKey) (release func(), err error) {
	path := filepath.Join(s.Dir, "."+key.String()+".lock")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("claim %s: %w", key, err)
		}

		info, statErr := os.Stat(path)
		if errors.Is(statErr, os.ErrNotExist) {
			continue
		}
		if statErr != nil || s.ClaimTTL <= 0 || time.Since(info.ModTime()) < s.ClaimTTL {
			return nil, fmt.Errorf("%w: %s", ErrClaimed, key)
		}
		os.Remove(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrClaimed, key)
}
