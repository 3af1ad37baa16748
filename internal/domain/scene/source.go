package scene

import (
	"context"

	"github.com/paulmach/orb"
)

// Query describes a catalog search: spatial bound, date range, cloud ceiling.
type Query struct {
	Bound    orb.Bound
	Window   SeasonWindow
	MaxCloud float64 // fraction in [0,1]; scenes above this are excluded
	Limit    int
}

// Source is the catalog half of the external scene collaborator. It owns all
// network and protocol concerns; results come back sorted by acquisition time.
type Source interface {
	Search(ctx context.Context, q Query) ([]Descriptor, error)
}

// BandReader is the raster half of the external scene collaborator: it reads
// one band asset clipped to a geometry. A geometry with no overlap returns
// ErrNoOverlap rather than an empty grid.
type BandReader interface {
	ReadBand(ctx context.Context, href string, geom orb.Geometry) (Grid, error)
}
