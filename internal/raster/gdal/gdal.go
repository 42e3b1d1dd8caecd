// Package gdal implements raster cropping and conversion with GDAL.
package gdal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/i474232898/look-pyrenees/internal/geo"
	"github.com/i474232898/look-pyrenees/internal/raster"
)

var registerOnce sync.Once

// GDAL crops true-color images to zone boundaries and converts them to PNG.
type GDAL struct {
	// WorkDir holds temporary cutline files. Empty means the system default.
	WorkDir string
}

// New registers the GDAL drivers and returns a GDAL collaborator.
func New(workDir string) *GDAL {
	registerOnce.Do(godal.RegisterAll)
	return &GDAL{WorkDir: workDir}
}

var (
	_ raster.Cropper   = (*GDAL)(nil)
	_ raster.Converter = (*GDAL)(nil)
)

// Crop warps the true-color band of productPath through the zone cutline and
// writes a GeoTIFF cropped to the zone's extent at dst.
func (g *GDAL) Crop(ctx context.Context, productPath string, zone geo.Zone, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := raster.FindTrueColor(productPath)
	if err != nil {
		return err
	}

	cutline, err := os.CreateTemp(g.WorkDir, "cutline-"+zone.Name+"-*.geojson")
	if err != nil {
		return err
	}
	cutline.Close()
	defer os.Remove(cutline.Name())

	if err := raster.WriteCutline(zone, cutline.Name()); err != nil {
		return fmt.Errorf("write cutline: %w", err)
	}

	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()

	return writeAtomically(dst, func(tmp string) error {
		out, err := ds.Warp(tmp, []string{
			"-of", "GTiff",
			"-cutline", cutline.Name(),
			"-crop_to_cutline",
			"-dstnodata", "0",
			"-co", "COMPRESS=DEFLATE",
		})
		if err != nil {
			return fmt.Errorf("warp %s: %w", src, err)
		}
		return out.Close()
	})
}

// ToPNG converts src to an 8-bit PNG at dst.
func (g *GDAL) ToPNG(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()

	return writeAtomically(dst, func(tmp string) error {
		out, err := ds.Translate(tmp, []string{"-of", "PNG", "-ot", "Byte"})
		if err != nil {
			return fmt.Errorf("translate %s: %w", src, err)
		}
		return out.Close()
	})
}

// writeAtomically lets write produce a sibling temporary file and renames it
// to dst, so that a failed run never leaves a partial artifact behind.
func writeAtomically(dst string, write func(tmp string) error) error {
	ext := filepath.Ext(dst)
	tmp := filepath.Join(filepath.Dir(dst), "."+strings.TrimSuffix(filepath.Base(dst), ext)+".part"+ext)
	defer os.Remove(tmp + ".aux.xml")

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
