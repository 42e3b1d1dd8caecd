package bucket

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/look-pyrenees/internal/scene"
	"github.com/i474232898/look-pyrenees/internal/store"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func backends() map[string]func() Bucket {
	return map[string]func() Bucket{
		"s3":  func() Bucket { return NewS3BucketWithClient(newFakeS3(), "artifacts") },
		"gcs": func() Bucket { return NewGCSBucketWithClient(newFakeMinio(), "artifacts") },
	}
}

func TestUploadRefusesExistingObject(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open()
			object := "T31TCH_20240511T105031_TCI_10m_orlu.png"
			src := writeFile(t, object, pngHeader)

			require.NoError(t, b.Upload(ctx, src, object))
			err := b.Upload(ctx, src, object)
			require.ErrorIs(t, err, ErrAlreadyExists)

			ok, err := b.Exists(ctx, scene.ArtifactKey{Zone: "orlu", Date: "20240511", Tile: "T31TCH"})
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = b.Exists(ctx, scene.ArtifactKey{Zone: "carlit", Date: "20240511", Tile: "T31TCH"})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestUploadDetectsContentType(t *testing.T) {
	fake := newFakeS3()
	b := NewS3BucketWithClient(fake, "artifacts")
	src := writeFile(t, "a.png", pngHeader)

	require.NoError(t, b.Upload(context.Background(), src, "a.png"))
	assert.Equal(t, "image/png", fake.types["a.png"])

	gfake := newFakeMinio()
	g := NewGCSBucketWithClient(gfake, "artifacts")
	require.NoError(t, g.Upload(context.Background(), src, "a.png"))
	assert.Equal(t, "image/png", gfake.objects["a.png"])
}

func TestS3Stat(t *testing.T) {
	b := NewS3BucketWithClient(newFakeS3(), "artifacts")
	_, err := b.Stat(context.Background(), "missing.png")
	require.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, b.Upload(context.Background(), writeFile(t, "x.png", pngHeader), "x.png"))
	o, err := b.Stat(context.Background(), "x.png")
	require.NoError(t, err)
	assert.EqualValues(t, len(pngHeader), o.Size)
}

func TestClean(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open()
			now := time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC)
			src := writeFile(t, "src.png", pngHeader)

			old := "T31TCH_20240519T105031_TCI_10m_orlu.png"
			edge := "T31TCH_20240520T105031_TCI_10m_orlu.png"
			other := "index.html"
			for _, o := range []string{old, edge, other} {
				require.NoError(t, b.Upload(ctx, src, o))
			}

			removed, err := Clean(ctx, b, now, store.Retention{Days: store.DefaultRetentionDays})
			require.NoError(t, err)
			assert.Equal(t, []string{old}, removed)

			left, err := b.List(ctx, "")
			require.NoError(t, err)
			keys := make([]string, 0, len(left))
			for _, o := range left {
				keys = append(keys, o.Key)
			}
			assert.ElementsMatch(t, []string{edge, other}, keys)
		})
	}
}

func TestOpen(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "azure", Name: "x"})
	require.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(context.Background(), Config{Backend: BackendGCS})
	require.Error(t, err)

	b, err := Open(context.Background(), Config{Backend: BackendGCS, Name: "look-pyrenees", AccessKey: "GOOG1", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "gs://look-pyrenees", b.Name())
}
