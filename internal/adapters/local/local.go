// Package local implements the scene source contracts over a directory of
// scene JSON files, for offline runs and tests. Band grids in these files are
// already clipped; the reader only checks footprint overlap.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/croplens/croplens/internal/domain/scene"
	"github.com/croplens/croplens/pkg/metrics"
)

// SceneFile is the on-disk scene format produced by scenegen.
type SceneFile struct {
	ID         string                 `json:"id"`
	AcquiredAt time.Time              `json:"acquired_at"`
	CloudCover float64                `json:"cloud_cover"`
	BBox       [4]float64             `json:"bbox"` // minx, miny, maxx, maxy
	Bands      map[string][][]float64 `json:"bands"`
}

// Bound returns the scene footprint as an orb.Bound.
func (s SceneFile) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{s.BBox[0], s.BBox[1]},
		Max: orb.Point{s.BBox[2], s.BBox[3]},
	}
}

// Source implements scene.Source over a directory of scene JSON files.
type Source struct {
	dir string
}

// NewSource creates a directory-backed scene source.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Search loads every scene file and filters by window, cloud ceiling, and
// spatial bound, sorted by acquisition time.
func (s *Source) Search(ctx context.Context, q scene.Query) ([]scene.Descriptor, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing scene files: %w", err)
	}

	var out []scene.Descriptor
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sf, err := loadSceneFile(path)
		if err != nil {
			metrics.RecordSourceError("load")
			return nil, err
		}
		if !q.Window.Contains(sf.AcquiredAt) {
			continue
		}
		if q.MaxCloud > 0 && sf.CloudCover > q.MaxCloud {
			continue
		}
		if !q.Bound.IsZero() && !q.Bound.Intersects(sf.Bound()) {
			continue
		}

		assets := make(map[string]string, len(sf.Bands))
		for band := range sf.Bands {
			assets[band] = path + "#" + band
		}
		out = append(out, scene.Descriptor{
			ID:         sf.ID,
			AcquiredAt: sf.AcquiredAt,
			CloudCover: sf.CloudCover,
			Assets:     assets,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AcquiredAt.Before(out[j].AcquiredAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	metrics.RecordScenesSearched(len(out))
	return out, nil
}

// Reader implements scene.BandReader for hrefs of the form "path#band".
type Reader struct{}

// NewReader creates a band reader for local scene files.
func NewReader() *Reader {
	return &Reader{}
}

// ReadBand loads the named band grid from a scene file. Bands are pre-clipped,
// so the geometry is only checked against the scene footprint.
func (r *Reader) ReadBand(ctx context.Context, href string, geom orb.Geometry) (scene.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, band, ok := strings.Cut(href, "#")
	if !ok {
		return nil, fmt.Errorf("%w: href %q has no band fragment", ErrMalformedScene, href)
	}
	sf, err := loadSceneFile(path)
	if err != nil {
		metrics.RecordBandReadError()
		return nil, err
	}

	if geom != nil && !geom.Bound().Intersects(sf.Bound()) {
		return nil, scene.ErrNoOverlap
	}

	grid, ok := sf.Bands[band]
	if !ok {
		return nil, fmt.Errorf("%w: band %q not in %s", ErrMalformedScene, band, path)
	}
	metrics.RecordBandRead()
	return scene.Grid(grid), nil
}

func loadSceneFile(path string) (SceneFile, error) {
	var sf SceneFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, fmt.Errorf("reading scene file: %w", err)
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("%w: %s: %v", ErrMalformedScene, path, err)
	}
	return sf, nil
}
