package scene

import (
	"time"

	"github.com/paulmach/orb"
)

// Product is one satellite scene returned by a provider search.
// Products are never mutated once returned.
type Product struct {
	// ID is the provider's opaque identifier.
	ID string `json:"id"`
	// Name is the Sentinel-2 SAFE product name, without the .SAFE suffix.
	Name         string       `json:"name"`
	Footprint    orb.Geometry `json:"-"`
	Acquired     time.Time    `json:"acquired"` // always UTC
	CloudCover   float64      `json:"cloudCover"`
	QuicklookURL string       `json:"quicklookUrl,omitempty"`
	DownloadURL  string       `json:"downloadUrl,omitempty"`
}

// HasQuicklook reports whether a preview image is available.
func (p Product) HasQuicklook() bool {
	return p.QuicklookURL != ""
}

// Date returns the UTC calendar day of the acquisition.
func (p Product) Date() time.Time {
	return day(p.Acquired)
}

// SearchQuery describes a provider search.
type SearchQuery struct {
	ProductType   string
	Start         time.Time
	End           time.Time
	MaxCloudCover float64
	Area          orb.Polygon
}

// Selection is the outcome of the cloud-cover stage.
type Selection struct {
	Products []Product `json:"products"`
	// TooCloudy is set when the strict cloud-cover pass found nothing
	// (threshold mode) or the best scene exceeds the flag threshold (best mode).
	TooCloudy bool `json:"tooCloudy"`
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
