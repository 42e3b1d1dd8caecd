package scene

import (
	"context"
)

// Provider abstracts an imagery source (e.g. Copernicus Data Space, Earth Search).
type Provider interface {
	Name() string
	Search(ctx context.Context, q SearchQuery) ([]Product, error)
	// Download fetches the product pixel data into dir and returns the local path.
	Download(ctx context.Context, p Product, dir string) (string, error)
	// Quicklook fetches the low resolution preview into dir and returns its path.
	Quicklook(ctx context.Context, p Product, dir string) (string, error)
}
