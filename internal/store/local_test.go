package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/look-pyrenees/internal/scene"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestLocalStoreExists(t *testing.T) {
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	touch(t, filepath.Join(s.Dir, "T31TCH_20240511T105031_TCI_10m_orlu.tif"))

	ok, err := s.Exists(context.Background(), scene.ArtifactKey{Zone: "orlu", Date: "20240511", Tile: "T31TCH"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), scene.ArtifactKey{Zone: "orlu", Date: "20240512", Tile: "T31TCH"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(context.Background(), scene.ArtifactKey{Zone: "carlit", Date: "20240511", Tile: "T31TCH"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoreListAndGet(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	touch(t, filepath.Join(s.Dir, "T31TCH_20240511T105031_TCI_10m_orlu.tif"))
	touch(t, filepath.Join(s.Dir, "T31TDH_20240514T104619_TCI_10m_orlu.png"))
	touch(t, filepath.Join(s.Dir, "T31TCH_20240511T105031_TCI_10m_rulhe_nerassol.tif"))
	touch(t, filepath.Join(s.Dir, "notes.txt"))

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	orlu, err := s.List("orlu")
	require.NoError(t, err)
	require.Len(t, orlu, 2)
	assert.Equal(t, "T31TDH", orlu[0].Tile)
	assert.Equal(t, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC), orlu[0].Date)

	rn, err := s.List("rulhe_nerassol")
	require.NoError(t, err)
	require.Len(t, rn, 1)

	a, err := s.Get("T31TCH_20240511T105031_TCI_10m_orlu.tif")
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.Size)

	_, err = s.Get("../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("T31TCH_20240101T105031_TCI_10m_orlu.tif")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreClaim(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	key := scene.ArtifactKey{Zone: "orlu", Date: "20240511", Tile: "T31TCH"}

	release, err := s.Claim(key)
	require.NoError(t, err)

	_, err = s.Claim(key)
	require.ErrorIs(t, err, ErrClaimed)

	release()
	release, err = s.Claim(key)
	require.NoError(t, err)
	defer release()
}

func TestLocalStoreClaimBreaksStaleLock(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	s.ClaimTTL = time.Minute
	key := scene.ArtifactKey{Zone: "orlu", Date: "20240511", Tile: "T31TCH"}

	lock := filepath.Join(s.Dir, "."+key.String()+".lock")
	touch(t, lock)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))

	release, err := s.Claim(key)
	require.NoError(t, err)
	release()
}
