package scene

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySearchResult is returned when a provider finds no product.
	ErrEmptySearchResult = errors.New("no products found")
	// ErrInsufficientCoverage is returned when no product covers the zone enough.
	ErrInsufficientCoverage = errors.New("no product sufficiently covers the zone")
	// ErrAllTooCloudy is returned when both cloud-cover passes select nothing.
	ErrAllTooCloudy = errors.New("all candidates are too cloudy")
	// ErrInvalidName is returned for product names that are not Sentinel-2 SAFE names.
	ErrInvalidName = errors.New("invalid product name")
)

// ExternalError wraps a failure of a provider, storage or raster collaborator.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// External wraps err as an ExternalError for op. A nil err stays nil.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Op: op, Err: err}
}
