package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/i474232898/look-pyrenees/internal/bucket"
	"github.com/i474232898/look-pyrenees/internal/config"
	"github.com/i474232898/look-pyrenees/internal/geo"
	"github.com/i474232898/look-pyrenees/internal/pipeline"
	"github.com/i474232898/look-pyrenees/internal/raster/gdal"
	"github.com/i474232898/look-pyrenees/internal/scene/providers"
	"github.com/i474232898/look-pyrenees/internal/store"
)

// loadZones returns the zones file from the configuration, or the built-in zones.
func loadZones(c *config.AppConfig) (*geo.ZoneSet, error) {
	if c.ZonesFile != "" {
		return geo.LoadZonesFile(c.ZonesFile)
	}
	return geo.DefaultZones()
}

// newService wires the pipeline collaborators described by c.
func newService(ctx context.Context, c *config.AppConfig) (*pipeline.Service, error) {
	zones, err := loadZones(c)
	if err != nil {
		return nil, fmt.Errorf("zones: %w", err)
	}

	// Shared HTTP client for outbound provider calls; attempts are bounded
	// through their contexts.
	provider, err := providers.New(c.PreferredProvider, &http.Client{}, c.Providers())
	if err != nil {
		return nil, err
	}

	local, err := store.NewLocalStore(c.OutPath)
	if err != nil {
		return nil, err
	}
	raster := gdal.New(c.OutPath)

	opts := pipeline.Options{
		ProductType:   c.ProductType,
		SearchDays:    c.SearchDays,
		RetentionDays: c.RetentionDays,
		Quicklooks:    c.ShowResults,
		Backoff:       c.Backoff(),
		CallTimeout:   c.CallTimeout,
		RasterTimeout: c.RasterTimeout,
	}
	options := []pipeline.Option{pipeline.WithLogger(log)}

	if bc, ok := c.Bucket(); ok {
		b, err := bucket.Open(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", bc.Name, err)
		}
		options = append(options, pipeline.WithBucket(b, raster))
	}

	return pipeline.NewService(zones, provider, c.Selector(), local, raster, opts, options...), nil
}
