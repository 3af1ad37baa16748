package scene

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidWindow marks a season window whose end does not follow its start.
	ErrInvalidWindow = errors.New("invalid season window")

	// ErrNoOverlap marks a band read whose geometry does not intersect the raster.
	ErrNoOverlap = errors.New("geometry does not overlap raster")
)
