// Package stac implements catalog search against a STAC API endpoint, mapping
// items to scene descriptors. It owns the network concerns of scene discovery;
// raster access stays behind scene.BandReader.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/croplens/croplens/internal/domain/scene"
	"github.com/croplens/croplens/pkg/metrics"
)

// DefaultCollection is the Sentinel-2 level-2A collection identifier.
const DefaultCollection = "sentinel-2-l2a"

const (
	defaultTimeout = 60 * time.Second
	defaultLimit   = 100
)

// SignFunc rewrites an asset href before use, e.g. planetary-computer SAS
// token signing.
type SignFunc func(href string) string

// Client searches a STAC API catalog.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	sign       SignFunc
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithCollection overrides the searched collection.
func WithCollection(collection string) Option {
	return func(c *Client) {
		if collection != "" {
			c.collection = collection
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSignFunc installs an asset href signer.
func WithSignFunc(fn SignFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.sign = fn
		}
	}
}

// NewClient creates a STAC API client for the given endpoint,
// e.g. "https://planetarycomputer.microsoft.com/api/stac/v1".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: DefaultCollection,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a POST /search for the query and returns descriptors sorted by
// acquisition time. Band assets are the item assets whose key starts with "B".
func (c *Client) Search(ctx context.Context, q scene.Query) ([]scene.Descriptor, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	body := searchRequest{
		Collections: []string{c.collection},
		BBox:        []float64{q.Bound.Min[0], q.Bound.Min[1], q.Bound.Max[0], q.Bound.Max[1]},
		Datetime:    formatInterval(q.Window),
		Limit:       limit,
	}
	if q.MaxCloud > 0 {
		body.Query = map[string]any{
			"eo:cloud_cover": map[string]float64{"lt": q.MaxCloud * 100},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordSourceError("search")
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()
	metrics.RecordSearchLatency(time.Since(started).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordSourceError("search")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSearchFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		metrics.RecordSourceError("decode")
		return nil, fmt.Errorf("%w: decoding response: %v", ErrSearchFailed, err)
	}

	descs := make([]scene.Descriptor, 0, len(fc.Features))
	for _, item := range fc.Features {
		d, err := c.toDescriptor(item)
		if err != nil {
			metrics.RecordSourceError("decode")
			return nil, err
		}
		descs = append(descs, d)
	}
	sort.SliceStable(descs, func(i, j int) bool {
		return descs[i].AcquiredAt.Before(descs[j].AcquiredAt)
	})

	metrics.RecordScenesSearched(len(descs))
	return descs, nil
}

func (c *Client) toDescriptor(it item) (scene.Descriptor, error) {
	acquired, err := parseItemDatetime(it.Properties.Datetime)
	if err != nil {
		return scene.Descriptor{}, fmt.Errorf("item %s: %w", it.ID, err)
	}

	assets := make(map[string]string)
	for name, a := range it.Assets {
		if !strings.HasPrefix(name, "B") {
			continue
		}
		href := a.Href
		if c.sign != nil {
			href = c.sign(href)
		}
		assets[name] = href
	}

	return scene.Descriptor{
		ID:         it.ID,
		AcquiredAt: acquired,
		CloudCover: it.Properties.CloudCover / 100,
		Assets:     assets,
	}, nil
}

// parseItemDatetime handles the RFC 3339 timestamps STAC catalogs return,
// including the trailing "Z" form.
func parseItemDatetime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing item datetime %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatInterval(w scene.SeasonWindow) string {
	return w.Start.UTC().Format(time.RFC3339) + "/" + w.End.UTC().Format(time.RFC3339)
}
