package pipeline

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/i474232898/look-pyrenees/internal/bucket"
	"github.com/i474232898/look-pyrenees/internal/geo"
	"github.com/i474232898/look-pyrenees/internal/scene"
)

type fakeProvider struct {
	mu        sync.Mutex
	products  []scene.Product
	searchErr error
	searches  int
	downloads int
	queries   []scene.SearchQuery
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, q scene.SearchQuery) ([]scene.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.queries = append(f.queries, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.products, nil
}

func (f *fakeProvider) Download(_ context.Context, p scene.Product, dir string) (string, error) {
	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()

	dst := filepath.Join(dir, p.Name+".SAFE.zip")
	return dst, os.WriteFile(dst, []byte("zip"), 0o644)
}

func (f *fakeProvider) Quicklook(_ context.Context, p scene.Product, dir string) (string, error) {
	dst := filepath.Join(dir, p.Name+".jpg")
	return dst, os.WriteFile(dst, []byte("jpg"), 0o644)
}

type fakeCropper struct {
	failZone string
	crops    []string
}

func (f *fakeCropper) Crop(_ context.Context, productPath string, zone geo.Zone, dst string) error {
	if zone.Name == f.failZone {
		return errors.New("gdal: cutline does not intersect raster")
	}
	if _, err := os.Stat(productPath); err != nil {
		return err
	}
	f.crops = append(f.crops, dst)
	return os.WriteFile(dst, []byte("tif"), 0o644)
}

type fakeConverter struct{}

func (fakeConverter) ToPNG(_ context.Context, src, dst string) error {
	return os.WriteFile(dst, []byte("png"), 0o644)
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]bool
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]bool{}}
}

func (b *fakeBucket) Name() string { return "mem://artifacts" }

func (b *fakeBucket) Exists(_ context.Context, key scene.ArtifactKey) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for o := range b.objects {
		if key.Matches(path.Base(o)) {
			return true, nil
		}
	}
	return false, nil
}

func (b *fakeBucket) Upload(_ context.Context, localPath, object string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	if b.objects[object] {
		return bucket.ErrAlreadyExists
	}
	b.objects[object] = true
	return nil
}

func (b *fakeBucket) Delete(_ context.Context, object string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, object)
	return nil
}

func (b *fakeBucket) List(_ context.Context, prefix string) ([]bucket.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []bucket.Object
	for o := range b.objects {
		out = append(out, bucket.Object{Key: o})
	}
	return out, nil
}

// staleBucket answers its first Exists call with false after running
// beforeFirst, like a check that raced with another process.
type staleBucket struct {
	*fakeBucket
	beforeFirst func()
	calls       int
}

func (b *staleBucket) Exists(ctx context.Context, key scene.ArtifactKey) (bool, error) {
	b.calls++
	if b.calls == 1 {
		if b.beforeFirst != nil {
			b.beforeFirst()
		}
		return false, nil
	}
	return b.fakeBucket.Exists(ctx, key)
}

// flakyBucket fails the first failures calls of each operation.
type flakyBucket struct {
	*fakeBucket
	failures int
	exists   int
	uploads  int
}

var errSlowDown = errors.New("503 SlowDown")

func (b *flakyBucket) Exists(ctx context.Context, key scene.ArtifactKey) (bool, error) {
	b.exists++
	if b.exists <= b.failures {
		return false, errSlowDown
	}
	return b.fakeBucket.Exists(ctx, key)
}

func (b *flakyBucket) Upload(ctx context.Context, localPath, object string) error {
	b.uploads++
	if b.uploads <= b.failures {
		return errSlowDown
	}
	return b.fakeBucket.Upload(ctx, localPath, object)
}

// flakyCropper fails the first failures crops.
type flakyCropper struct {
	fakeCropper
	failures int
	calls    int
}

func (f *flakyCropper) Crop(ctx context.Context, productPath string, zone geo.Zone, dst string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("gdal: read error")
	}
	return f.fakeCropper.Crop(ctx, productPath, zone, dst)
}
