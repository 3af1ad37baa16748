// Package cache provides a bounded read-through cache for clipped band grids,
// so repeated runs over the same fields do not re-read identical assets.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/croplens/croplens/internal/domain/scene"
	"github.com/croplens/croplens/pkg/metrics"
)

const defaultMaxEntries = 4096

// KeyFunc derives the cache key for one (asset, geometry) read.
type KeyFunc func(href string, geom orb.Geometry) string

// ReadThrough wraps a BandReader with a bounded in-memory grid cache.
// Eviction is FIFO: the oldest entry goes first once the bound is hit.
type ReadThrough struct {
	mu      sync.RWMutex
	reader  scene.BandReader
	entries map[string]scene.Grid
	order   []string
	maxSize int
	keyFn   KeyFunc
}

// Option applies a configuration option to the ReadThrough cache.
type Option func(*ReadThrough)

// WithMaxEntries bounds the number of cached grids.
func WithMaxEntries(n int) Option {
	return func(c *ReadThrough) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithKeyFunc overrides the cache key derivation.
func WithKeyFunc(fn KeyFunc) Option {
	return func(c *ReadThrough) {
		if fn != nil {
			c.keyFn = fn
		}
	}
}

// NewReadThrough wraps reader with a bounded grid cache.
func NewReadThrough(reader scene.BandReader, opts ...Option) *ReadThrough {
	c := &ReadThrough{
		reader:  reader,
		entries: make(map[string]scene.Grid),
		maxSize: defaultMaxEntries,
		keyFn:   defaultKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadBand returns the cached grid for (href, geom) or reads through to the
// underlying reader. Errors are never cached.
func (c *ReadThrough) ReadBand(ctx context.Context, href string, geom orb.Geometry) (scene.Grid, error) {
	key := c.keyFn(href, geom)

	c.mu.RLock()
	g, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		metrics.RecordCacheHit()
		return g, nil
	}
	metrics.RecordCacheMiss()

	g, err := c.reader.ReadBand(ctx, href, geom)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.entries[key] = g
		c.order = append(c.order, key)
	}
	return g, nil
}

// Len returns the number of cached grids.
func (c *ReadThrough) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// defaultKey keys on the asset href plus the full geometry, so two fields
// sharing a bounding box never collide.
func defaultKey(href string, geom orb.Geometry) string {
	if geom == nil {
		return href
	}
	b, err := json.Marshal(geojson.NewGeometry(geom))
	if err != nil {
		return fmt.Sprintf("%s|%v", href, geom.Bound())
	}
	return href + "|" + string(b)
}
