// Package metrics provides Prometheus metrics for the croplens pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Catalog metrics
	scenesSearched  prometheus.Counter
	searchLatency   prometheus.Histogram
	sourceErrors    *prometheus.CounterVec
	scenesSelected  *prometheus.CounterVec
	selectionSlots  prometheus.Counter
	selectionMisses prometheus.Counter

	// Raster metrics
	bandReads       prometheus.Counter
	bandReadLatency prometheus.Histogram
	bandReadErrors  prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	// Feature metrics
	indicesComputed  prometheus.Counter
	missingBandSkips prometheus.Counter
	fieldsAggregated prometheus.Counter
	featureRows      prometheus.Counter
	emptyBuckets     prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "croplens",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scenesSearched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scenes_searched_total",
		Help:      "Total number of scenes returned by catalog searches",
	})

	m.searchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "search_latency_seconds",
		Help:      "Histogram of catalog search latency in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.sourceErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "source_errors_total",
			Help:      "Total number of scene source failures by operation",
		},
		[]string{"operation"},
	)

	m.scenesSelected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "scenes_selected_total",
			Help:      "Total number of scenes chosen by snapshot strategies",
		},
		[]string{"strategy"},
	)

	m.selectionSlots = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "selection_slots_total",
		Help:      "Total number of selection slots produced",
	})

	m.selectionMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "selection_misses_total",
		Help:      "Total number of selection slots with no candidate scene",
	})

	m.bandReads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "band_reads_total",
		Help:      "Total number of band rasters read and clipped",
	})

	m.bandReadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "band_read_latency_seconds",
		Help:      "Histogram of band read latency in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.bandReadErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "band_read_errors_total",
		Help:      "Total number of band read failures",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "grid_cache_hits_total",
		Help:      "Total number of grid cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "grid_cache_misses_total",
		Help:      "Total number of grid cache misses",
	})

	m.indicesComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "indices_computed_total",
		Help:      "Total number of spectral indices computed",
	})

	m.missingBandSkips = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "missing_band_skips_total",
		Help:      "Total number of indices skipped because a required band was absent",
	})

	m.fieldsAggregated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fields_aggregated_total",
		Help:      "Total number of fields aggregated into feature rows",
	})

	m.featureRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feature_rows_total",
		Help:      "Total number of feature rows emitted",
	})

	m.emptyBuckets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "empty_buckets_total",
		Help:      "Total number of temporal buckets with zero contributing scenes",
	})
}

// RecordScenesSearched adds to the scenes searched counter.
func RecordScenesSearched(n int) {
	globalManager.scenesSearched.Add(float64(n))
}

// RecordSearchLatency records catalog search latency in seconds.
func RecordSearchLatency(seconds float64) {
	globalManager.searchLatency.Observe(seconds)
}

// RecordSourceError increments the source errors counter for an operation.
func RecordSourceError(operation string) {
	globalManager.sourceErrors.WithLabelValues(operation).Inc()
}

// RecordScenesSelected adds to the selected-scenes counter for a strategy.
func RecordScenesSelected(strategy string, n int) {
	globalManager.scenesSelected.WithLabelValues(strategy).Add(float64(n))
}

// RecordSelectionSlot increments the selection slots counter.
func RecordSelectionSlot() {
	globalManager.selectionSlots.Inc()
}

// RecordSelectionMiss increments the empty-slot counter.
func RecordSelectionMiss() {
	globalManager.selectionMisses.Inc()
}

// RecordBandRead increments the band reads counter.
func RecordBandRead() {
	globalManager.bandReads.Inc()
}

// RecordBandReadLatency records band read latency in seconds.
func RecordBandReadLatency(seconds float64) {
	globalManager.bandReadLatency.Observe(seconds)
}

// RecordBandReadError increments the band read errors counter.
func RecordBandReadError() {
	globalManager.bandReadErrors.Inc()
}

// RecordCacheHit increments the grid cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the grid cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordIndicesComputed adds to the indices computed counter.
func RecordIndicesComputed(n int) {
	globalManager.indicesComputed.Add(float64(n))
}

// RecordMissingBandSkip increments the missing-band skip counter.
func RecordMissingBandSkip() {
	globalManager.missingBandSkips.Inc()
}

// RecordFieldAggregated increments the fields aggregated counter.
func RecordFieldAggregated() {
	globalManager.fieldsAggregated.Inc()
}

// RecordFeatureRows adds to the feature rows counter.
func RecordFeatureRows(n int) {
	globalManager.featureRows.Add(float64(n))
}

// RecordEmptyBucket increments the empty bucket counter.
func RecordEmptyBucket() {
	globalManager.emptyBuckets.Inc()
}

// GetRegistry returns the custom registry for serving /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
