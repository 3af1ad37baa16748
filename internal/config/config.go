// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Layer defaults -> optional YAML file -> env in Load.
// - External errors are wrapped via this package's error kinds.
package config

// StageConfig is one growth-stage bucket boundary in configuration.
type StageConfig struct {
	Name string  `koanf:"name"`
	Lo   float64 `koanf:"lo"`
	Hi   float64 `koanf:"hi"`
}

// Config contains process configuration for the extraction pipeline.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr exposes /metrics while a batch runs; empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// Source picks the scene source: "stac" or "local".
	Source string `koanf:"source"`

	// StacURL is the STAC API endpoint for the stac source.
	StacURL string `koanf:"stac_url"`

	// Collection is the searched STAC collection.
	Collection string `koanf:"collection"`

	// SceneDir is the scene directory for the local source.
	SceneDir string `koanf:"scene_dir"`

	// MaxCloud is the cloud-cover ceiling as a fraction in [0,1].
	MaxCloud float64 `koanf:"max_cloud"`

	// SearchLimit caps catalog search results.
	SearchLimit int `koanf:"search_limit"`

	// Indices names the spectral indices to compute; empty means the default set.
	Indices []string `koanf:"indices"`

	// Bands optionally restricts which raw bands are fetched and summarized.
	Bands []string `koanf:"bands"`

	// Strategy picks snapshots: fractional, fixed_date, dates, top_n_cloudfree, all.
	Strategy string `koanf:"strategy"`

	// Snapshots sets n for fractional (when fractions is empty) and top_n_cloudfree.
	Snapshots int `koanf:"snapshots"`

	// Fractions are explicit season fractions for the fractional strategy.
	Fractions []float64 `koanf:"fractions"`

	// TargetDate is the fixed_date target (YYYY-MM-DD).
	TargetDate string `koanf:"target_date"`

	// KeyDates are the dates-strategy targets (YYYY-MM-DD).
	KeyDates []string `koanf:"key_dates"`

	// Bucketing groups features by "stage" or "slot".
	Bucketing string `koanf:"bucketing"`

	// Percentiles adds p10/p90 to the summary statistics.
	Percentiles bool `koanf:"percentiles"`

	// CacheSize bounds the band-grid read cache.
	CacheSize int `koanf:"cache_size"`

	// FieldWorkers bounds per-field parallelism; 1 keeps the run sequential.
	FieldWorkers int `koanf:"field_workers"`

	// CropStages overrides growth-stage bounds per crop label.
	CropStages map[string][]StageConfig `koanf:"crop_stages"`
}

// Source kinds.
const (
	SourceSTAC  = "stac"
	SourceLocal = "local"
)

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		Source:       SourceSTAC,
		StacURL:      "https://planetarycomputer.microsoft.com/api/stac/v1",
		Collection:   "sentinel-2-l2a",
		MaxCloud:     0.3,
		SearchLimit:  100,
		Strategy:     "fractional",
		Snapshots:    3,
		Bucketing:    "stage",
		CacheSize:    4096,
		FieldWorkers: 1,
	}
}
