// Package service provides the client facade: one call orchestrating scene
// search, band reads, index computation, snapshot selection, and field-level
// aggregation into tidy tabular output.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/croplens/croplens/internal/adapters/cache"
	"github.com/croplens/croplens/internal/domain/aggregate"
	"github.com/croplens/croplens/internal/domain/index"
	"github.com/croplens/croplens/internal/domain/scene"
	"github.com/croplens/croplens/internal/domain/selection"
	"github.com/croplens/croplens/pkg/logger"
	"github.com/croplens/croplens/pkg/metrics"
)

// Mode selects what the extraction returns.
type Mode string

// Return modes.
const (
	ModeFeatures Mode = "features"
	ModeBands    Mode = "bands"
	ModeBoth     Mode = "both"
)

// Request describes one extraction batch: fields, a season, a snapshot
// strategy, and what to return.
type Request struct {
	Fields      []scene.Field
	Window      scene.SeasonWindow
	Crop        string
	Strategy    selection.Strategy
	Indices     []string // empty means index.DefaultIndices
	Bands       []string // empty means every band asset the scenes carry
	MaxCloud    float64
	SearchLimit int
	Mode        Mode // empty means ModeFeatures
	Bucketing   aggregate.Bucketing
	Percentiles bool
}

// Result carries the tabular output, keyed by field through the rows.
type Result struct {
	Features  []aggregate.Row
	Bands     []aggregate.Row
	Selection selection.Selection
}

// Service is the pipeline facade.
type Service struct {
	source       scene.Source
	reader       scene.BandReader
	registry     *index.Registry
	cropStages   map[string][]aggregate.Stage
	cacheSize    int
	fieldWorkers int
	logger       logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the scene catalog source.
func WithSource(src scene.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithBandReader sets the raster collaborator used to read clipped bands.
func WithBandReader(r scene.BandReader) Option {
	return func(s *Service) {
		if r != nil {
			s.reader = r
		}
	}
}

// WithRegistry sets a custom index registry.
func WithRegistry(r *index.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCacheSize bounds the band-grid read cache; zero disables caching.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		s.cacheSize = n
	}
}

// WithFieldWorkers bounds per-field parallelism. Fields share no mutable
// state, so anything above 1 simply fans the per-field work out.
func WithFieldWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fieldWorkers = n
		}
	}
}

// WithCropStages overrides growth-stage bounds per crop label.
func WithCropStages(stages map[string][]aggregate.Stage) Option {
	return func(s *Service) {
		s.cropStages = stages
	}
}

const defaultCacheSize = 4096

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		registry:     index.NewRegistry(),
		cacheSize:    defaultCacheSize,
		fieldWorkers: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	if s.reader != nil && s.cacheSize > 0 {
		s.reader = cache.NewReadThrough(s.reader, cache.WithMaxEntries(s.cacheSize))
	}
	return s
}

// Extract runs the full pipeline for one request. Missing data (absent bands,
// empty buckets, no field/scene overlap) flows through as NaN; malformed input
// and source failures return errors.
func (s *Service) Extract(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := s.logger
	log.Info(ctx, "starting extraction",
		logger.String("run_id", runID),
		logger.Int("fields", len(req.Fields)),
		logger.String("strategy", string(req.Strategy.Kind)),
	)

	descs, err := s.source.Search(ctx, scene.Query{
		Bound:    scene.FieldsBound(req.Fields),
		Window:   req.Window,
		MaxCloud: req.MaxCloud,
		Limit:    req.SearchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("scene search: %w", err)
	}
	if len(descs) == 0 {
		return nil, ErrNoScenes
	}

	sel, err := req.Strategy.Select(descs, req.Window)
	if err != nil {
		return nil, err
	}
	recordSelection(sel)
	if len(sel.Scenes()) == 0 {
		return nil, ErrNoSnapshots
	}

	bandNames := req.Bands
	if len(bandNames) == 0 {
		bandNames = availableBands(sel)
	}

	slots := slotBuckets(sel)
	result := &Result{Selection: sel}

	perField := make([]fieldRows, len(req.Fields))
	if err := s.forEachField(ctx, req.Fields, func(ctx context.Context, i int, f scene.Field) error {
		rows, err := s.extractField(ctx, f, req, sel, bandNames, slots)
		if err != nil {
			return err
		}
		perField[i] = rows
		return nil
	}); err != nil {
		return nil, err
	}

	for _, fr := range perField {
		result.Features = append(result.Features, fr.features...)
		result.Bands = append(result.Bands, fr.bands...)
	}
	aggregate.SortRows(result.Features)
	aggregate.SortRows(result.Bands)

	metrics.RecordFeatureRows(len(result.Features) + len(result.Bands))
	log.Info(ctx, "extraction finished",
		logger.String("run_id", runID),
		logger.Int("scenes", len(descs)),
		logger.Int("snapshots", len(sel.Scenes())),
		logger.Int("feature_rows", len(result.Features)),
		logger.Int("band_rows", len(result.Bands)),
	)
	return result, nil
}

type fieldRows struct {
	features []aggregate.Row
	bands    []aggregate.Row
}

// extractField runs band reads, index computation, and aggregation for one
// field. A scene that does not overlap the field is skipped, not an error.
func (s *Service) extractField(ctx context.Context, f scene.Field, req Request, sel selection.Selection, bandNames []string, slots []aggregate.Bucket) (fieldRows, error) {
	var indexSamples, bandSamples []aggregate.Sample

	for order, slot := range sel.Slots {
		if slot.Scene == nil {
			continue
		}
		desc := *slot.Scene

		bands, err := s.readBands(ctx, f, desc, bandNames)
		if err != nil {
			return fieldRows{}, fmt.Errorf("field %s scene %s: %w", f.ID, desc.ID, err)
		}
		if len(bands) == 0 {
			// No overlap with this field; the snapshot contributes nothing.
			continue
		}

		frac := clampFraction(req.Window.Fraction(desc.AcquiredAt))

		if req.Mode != ModeBands {
			computed, skipped, err := s.registry.Compute(bands, req.Indices)
			if err != nil {
				return fieldRows{}, err
			}
			for range skipped {
				metrics.RecordMissingBandSkip()
			}
			metrics.RecordIndicesComputed(len(computed))
			for name, grid := range computed {
				indexSamples = append(indexSamples, aggregate.Sample{
					Index:     name,
					SlotLabel: slot.Label,
					SlotOrder: order,
					Fraction:  frac,
					Grid:      grid,
				})
			}
		}
		if req.Mode != ModeFeatures {
			for name, grid := range bands {
				bandSamples = append(bandSamples, aggregate.Sample{
					Index:     name,
					SlotLabel: slot.Label,
					SlotOrder: order,
					Fraction:  frac,
					Grid:      grid,
				})
			}
		}
	}

	crop := f.Crop
	if crop == "" {
		crop = req.Crop
	}
	opts := aggregate.Options{
		Bucketing:   req.Bucketing,
		Stages:      aggregate.StagesForCrop(crop, s.cropStages),
		Slots:       slots,
		Percentiles: req.Percentiles,
	}

	var out fieldRows
	if req.Mode != ModeBands {
		opts.Indices = req.Indices
		out.features = aggregate.Aggregate(f.ID, indexSamples, opts)
	}
	if req.Mode != ModeFeatures {
		opts.Indices = bandNames
		out.bands = aggregate.Aggregate(f.ID, bandSamples, opts)
	}
	for _, row := range out.features {
		if row.Count == 0 {
			metrics.RecordEmptyBucket()
		}
	}
	metrics.RecordFieldAggregated()
	return out, nil
}

// readBands reads every requested band of one scene clipped to the field.
// ErrNoOverlap on any band drops the whole scene for this field.
func (s *Service) readBands(ctx context.Context, f scene.Field, desc scene.Descriptor, names []string) (index.Bands, error) {
	bands := make(index.Bands)
	for _, name := range names {
		href, ok := desc.Assets[name]
		if !ok {
			continue
		}
		grid, err := s.reader.ReadBand(ctx, href, f.Geometry)
		if errors.Is(err, scene.ErrNoOverlap) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		bands[name] = grid
	}
	return bands, nil
}

// forEachField runs fn per field, sequentially by default or over a bounded
// worker set. Field runs are independent; the first error wins.
func (s *Service) forEachField(ctx context.Context, fields []scene.Field, fn func(ctx context.Context, i int, f scene.Field) error) error {
	if s.fieldWorkers <= 1 || len(fields) <= 1 {
		for i, f := range fields {
			if err := fn(ctx, i, f); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := s.fieldWorkers
	if workers > len(fields) {
		workers = len(fields)
	}

	jobs := make(chan int)
	errCh := make(chan error, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(ctx, i, fields[i]); err != nil {
					select {
					case errCh <- err:
					default:
					}
					cancel()
					return
				}
			}
		}()
	}

feed:
	for i := range fields {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (s *Service) validate(req *Request) error {
	if s.source == nil || s.reader == nil {
		return fmt.Errorf("%w: service needs a scene source and a band reader", ErrInvalidRequest)
	}
	if len(req.Fields) == 0 {
		return ErrNoFields
	}
	for _, f := range req.Fields {
		if f.ID == "" {
			return fmt.Errorf("%w: field with empty id", ErrInvalidRequest)
		}
		if f.Geometry == nil {
			return fmt.Errorf("%w: field %s has no geometry", ErrInvalidRequest, f.ID)
		}
	}
	if err := req.Window.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	switch req.Mode {
	case "":
		req.Mode = ModeFeatures
	case ModeFeatures, ModeBands, ModeBoth:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	if req.Bucketing == "" {
		req.Bucketing = aggregate.BucketByStage
	}

	if req.Strategy.Kind == "" {
		req.Strategy = selection.Fractional(selection.DefaultFractions(3)...)
	}
	if req.Strategy.Kind == selection.KindFractional && len(req.Strategy.Fractions) == 0 {
		req.Strategy.Fractions = selection.DefaultFractions(3)
	}

	if len(req.Indices) == 0 {
		req.Indices = index.DefaultIndices
	}
	for _, name := range req.Indices {
		if !s.registry.Has(name) {
			return fmt.Errorf("%w: unknown index %q", ErrInvalidRequest, name)
		}
	}
	return nil
}

func recordSelection(sel selection.Selection) {
	for _, slot := range sel.Slots {
		metrics.RecordSelectionSlot()
		if slot.Scene == nil {
			metrics.RecordSelectionMiss()
		}
	}
	metrics.RecordScenesSelected(string(sel.Strategy), len(sel.Scenes()))
}

// availableBands mirrors the fallback of fetching every "B*" asset the first
// selected scene carries, assuming scenes of one collection share a band set.
func availableBands(sel selection.Selection) []string {
	for _, slot := range sel.Slots {
		if slot.Scene == nil {
			continue
		}
		var names []string
		for name := range slot.Scene.Assets {
			if strings.HasPrefix(name, "B") {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names
	}
	return nil
}

func slotBuckets(sel selection.Selection) []aggregate.Bucket {
	out := make([]aggregate.Bucket, len(sel.Slots))
	for i, slot := range sel.Slots {
		out[i] = aggregate.Bucket{Label: slot.Label, Order: i}
	}
	return out
}

func clampFraction(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
