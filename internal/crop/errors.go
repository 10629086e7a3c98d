package crop

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogLoad is returned when a dataset exists but cannot be parsed.
	ErrCatalogLoad = errors.New("crop catalog load failed")

	// ErrInvalidReading is returned by Recommend for non-finite readings or
	// a month outside 1-12.
	ErrInvalidReading = errors.New("invalid environmental reading")

	// ErrCropNotFound is returned when a crop is absent from every dataset.
	ErrCropNotFound = errors.New("crop not found")
)

// ValidationError describes a catalog row that parsed but is not ecologically
// consistent (bad month window, inverted or non-nested ranges, duplicate name).
type ValidationError struct {
	Row  int // 1-based data row, header excluded
	Crop string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Crop, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
