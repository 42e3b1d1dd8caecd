package geo

import (
	"fmt"
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// containTolerance is the relative area slack under which an intersection is
// treated as covering the whole zone. It absorbs floating point noise from
// the clipping step.
const containTolerance = 1e-9

// Coverage describes how a scene footprint covers a zone.
type Coverage struct {
	Contains   bool
	OverlapPct float64
}

// Evaluate computes full containment and fractional areal overlap of footprint
// over zone. Areas are planar in the dataset's coordinate system.
func Evaluate(footprint orb.Geometry, zone Zone) (Coverage, error) {
	zoneArea := Area(zone.Geometry)
	if zoneArea <= 0 || math.IsNaN(zoneArea) {
		return Coverage{}, fmt.Errorf("%w: %q", ErrDegenerateGeometry, zone.Name)
	}

	inter := IntersectionArea(footprint, zone.Geometry)
	pct := 100 * inter / zoneArea
	if pct > 100 {
		pct = 100
	}

	contains := inter >= zoneArea*(1-containTolerance)
	if contains {
		pct = 100
	}

	return Coverage{Contains: contains, OverlapPct: pct}, nil
}

// Area returns the planar area of a polygonal geometry, holes excluded.
func Area(g orb.Geometry) float64 {
	var total float64
	for _, p := range polygons(g) {
		if len(p) == 0 {
			continue
		}
		total += ringArea(p[0])
		for _, hole := range p[1:] {
			total -= ringArea(hole)
		}
	}
	return total
}

// IntersectionArea returns area(a ∩ b) for polygonal geometries. Holes of a
// are ignored; holes of b are subtracted.
func IntersectionArea(a, b orb.Geometry) float64 {
	var total float64
	for _, pa := range polygons(a) {
		if len(pa) == 0 {
			continue
		}
		outer := toContour(pa[0])
		for _, pb := range polygons(b) {
			if len(pb) == 0 {
				continue
			}
			total += clipArea(outer, toContour(pb[0]))
			for _, hole := range pb[1:] {
				total -= clipArea(outer, toContour(hole))
			}
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// clipArea intersects two simple rings. Each connected piece of the
// intersection of two simply connected regions is itself simply connected,
// so the result area is the sum of its contour areas.
func clipArea(subject, clipping polyclip.Contour) float64 {
	if len(subject) < 3 || len(clipping) < 3 {
		return 0
	}
	res := polyclip.Polygon{subject}.Construct(polyclip.INTERSECTION, polyclip.Polygon{clipping})

	var a float64
	for _, c := range res {
		a += ringArea(fromContour(c))
	}
	return a
}

func polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return v
	case orb.Ring:
		return []orb.Polygon{{v}}
	case orb.Bound:
		return []orb.Polygon{v.ToPolygon()}
	default:
		return nil
	}
}

func ringArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	return math.Abs(planar.Area(r))
}

func toContour(r orb.Ring) polyclip.Contour {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	c := make(polyclip.Contour, 0, n)
	for _, p := range r[:n] {
		c = append(c, polyclip.Point{X: p[0], Y: p[1]})
	}
	return c
}

func fromContour(c polyclip.Contour) orb.Ring {
	r := make(orb.Ring, 0, len(c)+1)
	for _, p := range c {
		r = append(r, orb.Point{p.X, p.Y})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}
