package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/look-pyrenees/internal/scene"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.OutPath)
	assert.Equal(t, "cop_dataspace", cfg.PreferredProvider)
	assert.Equal(t, scene.DefaultSelector(), cfg.Selector())
	assert.Equal(t, 30, cfg.SearchDays)
	assert.Equal(t, 31, cfg.RetentionDays)
	assert.Equal(t, 2*time.Minute, cfg.CallTimeout)
	assert.Equal(t, 20*time.Minute, cfg.RasterTimeout)
	assert.Equal(t, "0 6 * * *", cfg.ScheduleCron)

	_, enabled := cfg.Bucket()
	assert.False(t, enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MIN_OVERLAP", "90")
	t.Setenv("SELECT_MODE", "best")
	t.Setenv("BUCKET_NAME", "look-pyrenees")
	t.Setenv("BUCKET_BACKEND", "s3")
	t.Setenv("CALL_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	sel := cfg.Selector()
	assert.Equal(t, 90.0, sel.MinOverlap)
	assert.Equal(t, scene.ModeBest, sel.Mode)
	assert.Equal(t, 45*time.Second, cfg.Providers().CallTimeout)

	b, enabled := cfg.Bucket()
	assert.True(t, enabled)
	assert.Equal(t, "s3", b.Backend)
	assert.Equal(t, "look-pyrenees", b.Name)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"MIN_OVERLAP":   "120",
		"PREF_PROVIDER": "peps",
		"LOG_LEVEL":     "chatty",
		"SEARCH_DAYS":   "0",
		"CALL_TIMEOUT":  "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidateEarthSearchNeedsL2A(t *testing.T) {
	t.Setenv("PREF_PROVIDER", "earth_search")
	t.Setenv("PRODUCT_TYPE", "S2_MSI_L1C")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalid)
}
