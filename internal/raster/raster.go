// Package raster locates the true-color image of a downloaded product and
// defines the cropping and conversion collaborators.
package raster

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/paulmach/orb/geojson"

	"github.com/i474232898/look-pyrenees/internal/geo"
)

// ErrNoTrueColor is returned when a product holds no true-color image.
var ErrNoTrueColor = errors.New("no true-color image in product")

// Cropper cuts the true-color image of a product to a zone boundary.
type Cropper interface {
	Crop(ctx context.Context, productPath string, zone geo.Zone, dst string) error
}

// Converter turns a cropped GeoTIFF into a PNG for sharing.
type Converter interface {
	ToPNG(ctx context.Context, src, dst string) error
}

// FindTrueColor returns a GDAL readable path to the true-color band of
// productPath, which is a SAFE directory, a zipped SAFE or a GeoTIFF.
func FindTrueColor(productPath string) (string, error) {
	info, err := os.Stat(productPath)
	if err != nil {
		return "", err
	}

	if info.IsDir() {
		return findInDir(productPath)
	}

	switch strings.ToLower(filepath.Ext(productPath)) {
	case ".zip":
		entry, err := findInZip(productPath)
		if err != nil {
			return "", err
		}
		return "/vsizip/" + productPath + "/" + entry, nil
	case ".tif", ".tiff", ".jp2":
		return productPath, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoTrueColor, productPath)
}

// isTrueColor matches L2A (..._TCI_10m.jp2) and L1C (..._TCI.jp2) band files.
func isTrueColor(name string) bool {
	base := strings.ToUpper(path.Base(name))
	if !strings.HasSuffix(base, ".JP2") {
		return false
	}
	return strings.HasSuffix(base, "_TCI_10M.JP2") || strings.HasSuffix(base, "_TCI.JP2")
}

func findInDir(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isTrueColor(p) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTrueColor, dir)
	}
	return found, nil
}

func findInZip(archive string) (string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", archive, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if isTrueColor(f.Name) {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoTrueColor, archive)
}

// WriteCutline writes the zone boundary as a GeoJSON feature collection
// usable as a GDAL cutline.
func WriteCutline(zone geo.Zone, dst string) error {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(zone.Geometry)
	f.Properties["NAME"] = zone.Name
	fc.Append(f)

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
