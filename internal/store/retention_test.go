package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifactName(d time.Time, zone string) string {
	return "T31TCH_" + d.Format("20060102") + "T105031_TCI_10m_" + zone + ".tif"
}

func TestRetentionBoundary(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, artifactName(now.AddDate(0, 0, -32), "orlu"))
	edge := filepath.Join(dir, artifactName(now.AddDate(0, 0, -31), "orlu"))
	fresh := filepath.Join(dir, artifactName(now.AddDate(0, 0, -30), "orlu"))
	for _, p := range []string{old, edge, fresh} {
		touch(t, p)
	}

	removed, err := Retention{Days: DefaultRetentionDays}.Clean(dir, now)
	require.NoError(t, err)
	assert.Equal(t, []string{old}, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, edge)
	assert.FileExists(t, fresh)
}

func TestRetentionDownloadsAndSubdirectories(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC)

	oldSafe := filepath.Join(dir, "S2B_MSIL2A_20240510T105031_N0510_R051_T31TCH_20240510T125145.SAFE")
	freshSafe := filepath.Join(dir, "S2B_MSIL2A_20240615T105031_N0510_R051_T31TCH_20240615T125145.SAFE")
	oldZip := filepath.Join(dir, "S2A_MSIL2A_20240501T105031_N0510_R051_T31TDH_20240501T125145.SAFE.zip")
	oldQuicklook := filepath.Join(dir, "quicklooks", "S2A_MSIL2A_20240501T105031_N0510_R051_T31TDH_20240501T125145.jpg")
	oldPNG := filepath.Join(dir, "T31TCH_20240501T105031_TCI_10m_carlit.png")
	unrelated := filepath.Join(dir, "README.txt")
	undated := filepath.Join(dir, "mosaic.tif")

	touch(t, filepath.Join(oldSafe, "manifest.safe"))
	touch(t, filepath.Join(freshSafe, "manifest.safe"))
	for _, p := range []string{oldZip, oldQuicklook, oldPNG, unrelated, undated} {
		touch(t, p)
	}

	removed, err := Retention{Days: DefaultRetentionDays}.Clean(dir, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{oldSafe, oldZip, oldQuicklook, oldPNG}, removed)

	assert.NoDirExists(t, oldSafe)
	assert.DirExists(t, freshSafe)
	assert.DirExists(t, filepath.Join(dir, "quicklooks"))
	assert.FileExists(t, unrelated)
	assert.FileExists(t, undated)
}

func TestRetentionMissingDir(t *testing.T) {
	removed, err := Retention{Days: 31}.Clean(filepath.Join(t.TempDir(), "absent"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestRetentionExpired(t *testing.T) {
	now := time.Date(2024, 6, 20, 23, 59, 0, 0, time.UTC)
	r := Retention{Days: 31}

	expired, err := r.Expired(artifactName(now.AddDate(0, 0, -32), "orlu"), now)
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = r.Expired(artifactName(now.AddDate(0, 0, -31), "orlu"), now)
	require.NoError(t, err)
	assert.False(t, expired)

	_, err = r.Expired("mosaic.tif", now)
	assert.Error(t, err)

}
