package scene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const safeName = "S2B_MSIL2A_20240511T105031_N0510_R051_T31TCH_20240511T125145"

func TestParseName(t *testing.T) {
	for _, name := range []string{safeName, safeName + ".SAFE", safeName + ".SAFE.zip"} {
		info, err := ParseName(name)
		require.NoError(t, err, name)
		assert.Equal(t, NameInfo{
			Mission: "S2B",
			Level:   "MSIL2A",
			Sensing: "20240511T105031",
			Date:    "20240511",
			Tile:    "T31TCH",
		}, info)
	}

	for _, bad := range []string{"", "LC09_L1GT_166003_20250603_20250603_02_T2", "S2B_MSIL2A_2024_N0510_R051_T31TCH_X", "S2B_MSIL2A_20240511T105031_N0510_R051_31TCH_X"} {
		_, err := ParseName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestArtifactKeyMatches(t *testing.T) {
	existing := "T31TCH_20240511T105031_TCI_10m_montcalm.tif"
	key := ArtifactKey{Zone: "montcalm", Date: "20240511", Tile: "T31TCH"}

	assert.True(t, key.Matches(existing))
	assert.False(t, ArtifactKey{Zone: "montcalm", Date: "20240512", Tile: "T31TCH"}.Matches(existing))
	assert.False(t, ArtifactKey{Zone: "montcalm", Date: "20240511", Tile: "T31TDH"}.Matches(existing))
	assert.False(t, ArtifactKey{Zone: "orlu", Date: "20240511", Tile: "T31TCH"}.Matches(existing))
}

func TestKeyForAndArtifactName(t *testing.T) {
	key, info, err := KeyFor(Product{ID: "x", Name: safeName}, "montcalm")
	require.NoError(t, err)
	assert.Equal(t, ArtifactKey{Zone: "montcalm", Date: "20240511", Tile: "T31TCH"}, key)

	name := ArtifactName(info, "montcalm", ".tif")
	assert.Equal(t, "T31TCH_20240511T105031_TCI_10m_montcalm.tif", name)
	assert.True(t, key.Matches(name))
	assert.Equal(t, "T31TCH_20240511T105031_TCI_10m_montcalm.png", ArtifactName(info, "montcalm", "png"))

	_, _, err = KeyFor(Product{ID: "x", Name: "garbage"}, "montcalm")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestArtifactDate(t *testing.T) {
	want := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)

	d, err := ArtifactDate("T31TCH_20240511T105031_TCI_10m_rulhe_nerassol.tif")
	require.NoError(t, err)
	assert.Equal(t, want, d)

	d, err = ArtifactDate(safeName + ".SAFE")
	require.NoError(t, err)
	assert.Equal(t, want, d)

	_, err = ArtifactDate("notes.tif")
	assert.Error(t, err)
}
