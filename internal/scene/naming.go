package scene

import (
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/look-pyrenees/internal/common"
)

const (
	dateLayout    = "20060102"
	sensingLayout = "20060102T150405"
)

// NameInfo holds the fields of a Sentinel-2 SAFE product name, e.g.
// S2B_MSIL2A_20240511T105031_N0510_R051_T31TCH_20240511T125145.
type NameInfo struct {
	Mission string
	Level   string
	Sensing string // 20240511T105031
	Date    string // 20240511
	Tile    string // T31TCH
}

// ParseName splits a SAFE product name into its fields.
func ParseName(name string) (NameInfo, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(name, ".zip"), ".SAFE")
	parts := strings.Split(base, "_")
	if len(parts) < 7 || !strings.HasPrefix(parts[0], "S2") {
		return NameInfo{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := time.Parse(sensingLayout, parts[2]); err != nil {
		return NameInfo{}, fmt.Errorf("%w: %q: bad sensing time", ErrInvalidName, name)
	}
	if len(parts[5]) != 6 || parts[5][0] != 'T' {
		return NameInfo{}, fmt.Errorf("%w: %q: bad tile", ErrInvalidName, name)
	}

	return NameInfo{
		Mission: parts[0],
		Level:   parts[1],
		Sensing: parts[2],
		Date:    parts[2][:8],
		Tile:    parts[5],
	}, nil
}

// ArtifactKey is the natural key of an output artifact.
type ArtifactKey struct {
	Zone string
	Date string
	Tile string
}

// KeyFor derives the artifact key of product p cropped to zone.
func KeyFor(p Product, zone string) (ArtifactKey, NameInfo, error) {
	info, err := ParseName(p.Name)
	if err != nil {
		return ArtifactKey{}, NameInfo{}, err
	}
	return ArtifactKey{Zone: zone, Date: info.Date, Tile: info.Tile}, info, nil
}

// Matches reports whether an artifact or object name carries all key components.
func (k ArtifactKey) Matches(name string) bool {
	return common.HasAll(name, k.Date, k.Tile, k.Zone)
}

func (k ArtifactKey) String() string {
	return k.Tile + "_" + k.Date + "_" + k.Zone
}

// ArtifactName returns the file name of the cropped raster, e.g.
// T31TCH_20240511T105031_TCI_10m_montcalm.tif.
func ArtifactName(info NameInfo, zone, ext string) string {
	return fmt.Sprintf("%s_%s_TCI_10m_%s.%s", info.Tile, info.Sensing, zone, strings.TrimPrefix(ext, "."))
}

// ArtifactDate extracts the acquisition date embedded in an artifact name
// (T31TCH_20240511T105031_...) or in a SAFE product name.
func ArtifactDate(name string) (time.Time, error) {
	if strings.HasPrefix(name, "S2") {
		info, err := ParseName(name)
		if err != nil {
			return time.Time{}, err
		}
		return time.Parse(dateLayout, info.Date)
	}

	parts := strings.Split(name, "_")
	if len(parts) < 2 || len(parts[1]) < len(dateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	d, err := time.Parse(dateLayout, parts[1][:len(dateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidName, name, err)
	}
	return d, nil
}
