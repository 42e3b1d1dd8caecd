package geo

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NameProperty is the feature property holding the zone name.
const NameProperty = "NAME"

//go:embed zones.geojson
var defaultZonesGeoJSON []byte

var (
	// ErrNoZoneMatch is returned when a zone name is absent from the boundary dataset.
	ErrNoZoneMatch = errors.New("zone does not exist in boundary dataset")
	// ErrDegenerateGeometry is returned for zone polygons with zero area.
	ErrDegenerateGeometry = errors.New("degenerate zone geometry")
)

// Zone is a named target area in EPSG:4326.
type Zone struct {
	Name string
	// Geometry is an orb.Polygon or an orb.MultiPolygon.
	Geometry orb.Geometry
}

// Bound returns the bounding box of the zone.
func (z Zone) Bound() orb.Bound {
	return z.Geometry.Bound()
}

// ZoneSet is the read-only boundary dataset, keyed by zone name.
type ZoneSet struct {
	zones map[string]Zone
	names []string
}

// DefaultZones returns the embedded Pyrenees boundary dataset.
func DefaultZones() (*ZoneSet, error) {
	return LoadZones(bytes.NewReader(defaultZonesGeoJSON))
}

// LoadZonesFile reads a GeoJSON boundary dataset from path.
func LoadZonesFile(path string) (*ZoneSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zones file: %w", err)
	}
	defer f.Close()
	return LoadZones(f)
}

// LoadZones parses a GeoJSON FeatureCollection whose features carry a NAME property.
func LoadZones(r io.Reader) (*ZoneSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read zones: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}

	set := &ZoneSet{zones: make(map[string]Zone, len(fc.Features))}
	for i, f := range fc.Features {
		name := f.Properties.MustString(NameProperty, "")
		if name == "" {
			return nil, fmt.Errorf("zone feature %d has no %s property", i, NameProperty)
		}
		if _, dup := set.zones[name]; dup {
			return nil, fmt.Errorf("zone %q defined twice", name)
		}

		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("zone %q: unsupported geometry %s", name, f.Geometry.GeoJSONType())
		}

		set.zones[name] = Zone{Name: name, Geometry: f.Geometry}
		set.names = append(set.names, name)
	}
	sort.Strings(set.names)

	return set, nil
}

// Lookup returns the zone with the given name.
func (s *ZoneSet) Lookup(name string) (Zone, error) {
	z, ok := s.zones[name]
	if !ok {
		return Zone{}, fmt.Errorf("%w: %q", ErrNoZoneMatch, name)
	}
	return z, nil
}

// Names returns all zone names in lexical order.
func (s *ZoneSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
