package scene

import (
	"fmt"
	"time"

	"github.com/i474232898/look-pyrenees/internal/geo"
)

// Selection defaults. Percentages are in [0, 100].
const (
	DefaultMinOverlap   = 95.0
	DefaultCeiling      = 20.0
	DefaultFlagAbove    = 30.0
	DefaultWindowBefore = 10 // days before the most recent acquisition
	DefaultWindowAfter  = 1  // days after it
)

// Mode selects how the cloud-cover stage picks products.
type Mode string

const (
	// ModeThreshold keeps every product strictly under the ceiling.
	ModeThreshold Mode = "threshold"
	// ModeBest keeps the single product with the lowest cloud cover.
	ModeBest Mode = "best"
)

// FilterOverlap keeps the products that fully contain the zone when at least
// one does; otherwise the products whose overlap strictly exceeds minOverlap.
// The second return value reports whether a fully containing product exists.
func FilterOverlap(products []Product, zone geo.Zone, minOverlap float64) ([]Product, bool, error) {
	covs := make([]geo.Coverage, len(products))
	anyContains := false
	for i, p := range products {
		c, err := geo.Evaluate(p.Footprint, zone)
		if err != nil {
			return nil, false, err
		}
		covs[i] = c
		anyContains = anyContains || c.Contains
	}

	out := make([]Product, 0, len(products))
	for i, p := range products {
		if anyContains {
			if covs[i].Contains {
				out = append(out, p)
			}
			continue
		}
		if covs[i].OverlapPct > minOverlap {
			out = append(out, p)
		}
	}
	return out, anyContains, nil
}

// Window is a closed range of UTC calendar days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RecencyWindow returns [anchor-before, anchor+after] in days.
func RecencyWindow(anchor time.Time, before, after int) Window {
	d := day(anchor)
	return Window{Start: d.AddDate(0, 0, -before), End: d.AddDate(0, 0, after)}
}

// Contains reports whether the calendar day of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// FilterRecency keeps the products acquired within the window anchored on
// the most recent acquisition date. An empty input means nothing survived the
// overlap stage and is reported as ErrInsufficientCoverage.
func FilterRecency(products []Product, before, after int) ([]Product, Window, error) {
	if len(products) == 0 {
		return nil, Window{}, ErrInsufficientCoverage
	}

	recent := products[0].Acquired
	for _, p := range products[1:] {
		if p.Acquired.After(recent) {
			recent = p.Acquired
		}
	}

	w := RecencyWindow(recent, before, after)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if w.Contains(p.Acquired) {
			out = append(out, p)
		}
	}
	return out, w, nil
}

// FilterCloudCover keeps the products with cloud cover strictly below ceiling.
// tooCloudy is true when nothing is kept.
func FilterCloudCover(products []Product, ceiling float64) (kept []Product, tooCloudy bool) {
	kept = make([]Product, 0, len(products))
	for _, p := range products {
		if p.CloudCover < ceiling {
			kept = append(kept, p)
		}
	}
	return kept, len(kept) == 0
}

// SelectThreshold applies the ceiling to the recent products. When that
// yields nothing, the same ceiling is applied to the wider set (the whole
// search period) instead of being relaxed.
func SelectThreshold(recent, wider []Product, ceiling float64) (Selection, error) {
	kept, tooCloudy := FilterCloudCover(recent, ceiling)
	if !tooCloudy {
		return Selection{Products: kept}, nil
	}

	kept, _ = FilterCloudCover(wider, ceiling)
	if len(kept) == 0 {
		return Selection{TooCloudy: true}, fmt.Errorf("%w: ceiling %.1f%%", ErrAllTooCloudy, ceiling)
	}
	return Selection{Products: kept, TooCloudy: true}, nil
}

// SelectBest returns the product with the lowest cloud cover (first one on
// ties) and flags it too cloudy when it exceeds flagAbove.
func SelectBest(products []Product, flagAbove float64) (Selection, error) {
	if len(products) == 0 {
		return Selection{}, ErrInsufficientCoverage
	}

	best := products[0]
	for _, p := range products[1:] {
		if p.CloudCover < best.CloudCover {
			best = p
		}
	}
	return Selection{Products: []Product{best}, TooCloudy: best.CloudCover > flagAbove}, nil
}

// Trace records what each stage kept, for logging and run reports.
type Trace struct {
	Searched    int    `json:"searched"`
	Contained   bool   `json:"contained"`
	Overlapping int    `json:"overlapping"`
	Recent      int    `json:"recent"`
	Window      Window `json:"window"`
}

// Selector sequences the overlap, recency and cloud-cover stages.
type Selector struct {
	MinOverlap   float64
	Ceiling      float64
	FlagAbove    float64
	WindowBefore int
	WindowAfter  int
	Mode         Mode
}

// DefaultSelector returns a Selector with the default thresholds.
func DefaultSelector() Selector {
	return Selector{
		MinOverlap:   DefaultMinOverlap,
		Ceiling:      DefaultCeiling,
		FlagAbove:    DefaultFlagAbove,
		WindowBefore: DefaultWindowBefore,
		WindowAfter:  DefaultWindowAfter,
		Mode:         ModeThreshold,
	}
}

// Select picks the products that best represent current conditions over zone.
func (s Selector) Select(products []Product, zone geo.Zone) (Selection, Trace, error) {
	tr := Trace{Searched: len(products)}
	if len(products) == 0 {
		return Selection{}, tr, ErrEmptySearchResult
	}

	overlapping, contained, err := FilterOverlap(products, zone, s.MinOverlap)
	if err != nil {
		return Selection{}, tr, err
	}
	tr.Contained = contained
	tr.Overlapping = len(overlapping)

	recent, window, err := FilterRecency(overlapping, s.WindowBefore, s.WindowAfter)
	if err != nil {
		return Selection{}, tr, err
	}
	tr.Recent = len(recent)
	tr.Window = window

	var sel Selection
	switch s.Mode {
	case ModeBest:
		sel, err = SelectBest(recent, s.FlagAbove)
	default:
		sel, err = SelectThreshold(recent, overlapping, s.Ceiling)
	}
	return sel, tr, err
}
