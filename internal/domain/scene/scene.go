// Package scene contains the core data model for satellite acquisitions,
// fields, and season windows, plus the contracts for external scene sources.
package scene

import (
	"time"

	"github.com/paulmach/orb"
)

// Scene is one satellite acquisition clipped to a field geometry.
// A Scene is immutable once fetched.
type Scene struct {
	ID         string
	AcquiredAt time.Time
	CloudCover float64 // fraction in [0,1]
	Bands      map[string]Grid
}

// Descriptor is the metadata-only view of a scene returned by catalog search:
// enough to run snapshot selection without touching raster data.
type Descriptor struct {
	ID         string
	AcquiredAt time.Time
	CloudCover float64           // fraction in [0,1]
	Assets     map[string]string // band name -> asset href
}

// Field is a caller-owned geometry with an identifier. Never mutated.
type Field struct {
	ID       string
	Geometry orb.Geometry
	Crop     string
}

// SeasonWindow is the temporal extent of interest for a field season.
type SeasonWindow struct {
	Start time.Time
	End   time.Time
}

// Validate reports whether the window is well formed.
func (w SeasonWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrInvalidWindow
	}
	if !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Duration returns the window length.
func (w SeasonWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Fraction expresses t as a normalized position in the window: 0 at start,
// 1 at end. Values outside [0,1] are returned as-is, not clamped; fraction
// computation depends only on dates.
func (w SeasonWindow) Fraction(t time.Time) float64 {
	dur := w.Duration().Seconds()
	if dur == 0 {
		return 0
	}
	return t.Sub(w.Start).Seconds() / dur
}

// DateAt maps a season fraction back to a date. Fractions outside [0,1]
// extrapolate beyond the window.
func (w SeasonWindow) DateAt(f float64) time.Time {
	offset := time.Duration(f * float64(w.Duration()))
	return w.Start.Add(offset)
}

// Contains reports whether t falls within the window, inclusive on both ends.
func (w SeasonWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// FieldsBound returns the union bounding box of all field geometries.
func FieldsBound(fields []Field) orb.Bound {
	var bound orb.Bound
	first := true
	for _, f := range fields {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if first {
			bound = b
			first = false
			continue
		}
		bound = bound.Union(b)
	}
	return bound
}
