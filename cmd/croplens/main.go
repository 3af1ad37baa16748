// Command croplens runs one feature-extraction batch: field boundaries in as
// GeoJSON, per-field feature statistics out as CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/croplens/croplens/internal/adapters/local"
	"github.com/croplens/croplens/internal/adapters/stac"
	service "github.com/croplens/croplens/internal/app"
	"github.com/croplens/croplens/internal/config"
	"github.com/croplens/croplens/internal/domain/aggregate"
	"github.com/croplens/croplens/internal/domain/scene"
	"github.com/croplens/croplens/internal/domain/selection"
	"github.com/croplens/croplens/pkg/logger"
	"github.com/croplens/croplens/pkg/metrics"
)

const (
	dateLayout        = "2006-01-02"
	readHeaderTimeout = 5 * time.Second
)

func main() {
	fieldsPath := flag.String("fields", "", "path to a GeoJSON FeatureCollection of field boundaries")
	outPath := flag.String("out", "features.csv", "path for the feature CSV; '-' writes to stdout")
	bandsOut := flag.String("bands-out", "", "optional path for a raw-band statistics CSV")
	startStr := flag.String("start", "", "season start (YYYY-MM-DD)")
	endStr := flag.String("end", "", "season end (YYYY-MM-DD)")
	crop := flag.String("crop", "", "default crop label for fields without one")
	mode := flag.String("mode", "features", "what to extract: features, bands, or both")
	flag.Parse()

	if err := run(*fieldsPath, *outPath, *bandsOut, *startStr, *endStr, *crop, *mode); err != nil {
		os.Stderr.WriteString("croplens: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(fieldsPath, outPath, bandsOut, startStr, endStr, crop, mode string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if fieldsPath == "" {
		return errors.New("-fields is required")
	}
	window, err := parseWindow(startStr, endStr)
	if err != nil {
		return err
	}
	fields, err := loadFields(fieldsPath)
	if err != nil {
		return fmt.Errorf("load fields: %w", err)
	}
	strategy, err := buildStrategy(cfg)
	if err != nil {
		return err
	}
	if mode == string(service.ModeBoth) && bandsOut == "" {
		return errors.New("-bands-out is required in both mode")
	}

	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, log)
	}

	res, err := svc.Extract(ctx, service.Request{
		Fields:      fields,
		Window:      window,
		Crop:        crop,
		Strategy:    strategy,
		Indices:     cfg.Indices,
		Bands:       cfg.Bands,
		MaxCloud:    cfg.MaxCloud,
		SearchLimit: cfg.SearchLimit,
		Mode:        service.Mode(mode),
		Bucketing:   aggregate.Bucketing(cfg.Bucketing),
		Percentiles: cfg.Percentiles,
	})
	if err != nil {
		return err
	}

	if mode != string(service.ModeBands) {
		if err := writeCSV(outPath, res.Features); err != nil {
			return fmt.Errorf("write features: %w", err)
		}
	}
	if mode != string(service.ModeFeatures) {
		target := bandsOut
		if target == "" {
			target = outPath
		}
		if err := writeCSV(target, res.Bands); err != nil {
			return fmt.Errorf("write bands: %w", err)
		}
	}

	log.Info(ctx, "batch finished",
		logger.Int("fields", len(fields)),
		logger.Int("feature_rows", len(res.Features)),
		logger.Int("band_rows", len(res.Bands)),
	)
	return nil
}

// buildService wires the configured scene source and band reader into the
// extraction facade.
func buildService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	opts := []service.Option{
		service.WithLogger(log.Named("pipeline")),
		service.WithCacheSize(cfg.CacheSize),
		service.WithFieldWorkers(cfg.FieldWorkers),
		service.WithCropStages(cropStages(cfg)),
	}

	switch cfg.Source {
	case config.SourceSTAC:
		// The shipped reader resolves local asset paths only; remote raster
		// decode plugs in through service.WithBandReader.
		client := stac.NewClient(cfg.StacURL, stac.WithCollection(cfg.Collection))
		opts = append(opts,
			service.WithSource(client),
			service.WithBandReader(local.NewReader()),
		)
	case config.SourceLocal:
		opts = append(opts,
			service.WithSource(local.NewSource(cfg.SceneDir)),
			service.WithBandReader(local.NewReader()),
		)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
	return service.New(opts...), nil
}

func buildStrategy(cfg *config.Config) (selection.Strategy, error) {
	switch selection.Kind(cfg.Strategy) {
	case selection.KindFractional:
		if len(cfg.Fractions) > 0 {
			return selection.Fractional(cfg.Fractions...), nil
		}
		return selection.Fractional(selection.DefaultFractions(cfg.Snapshots)...), nil
	case selection.KindFixedDate:
		t, err := time.Parse(dateLayout, cfg.TargetDate)
		if err != nil {
			return selection.Strategy{}, fmt.Errorf("target_date: %w", err)
		}
		return selection.FixedDate(t), nil
	case selection.KindDates:
		dates := make([]time.Time, 0, len(cfg.KeyDates))
		for _, d := range cfg.KeyDates {
			t, err := time.Parse(dateLayout, d)
			if err != nil {
				return selection.Strategy{}, fmt.Errorf("key_dates: %w", err)
			}
			dates = append(dates, t)
		}
		return selection.Dates(dates...), nil
	case selection.KindTopNCloudFree:
		return selection.TopNCloudFree(cfg.Snapshots), nil
	case selection.KindAll:
		return selection.All(), nil
	}
	return selection.Strategy{}, fmt.Errorf("unknown strategy %q", cfg.Strategy)
}

func cropStages(cfg *config.Config) map[string][]aggregate.Stage {
	if len(cfg.CropStages) == 0 {
		return nil
	}
	out := make(map[string][]aggregate.Stage, len(cfg.CropStages))
	for crop, stages := range cfg.CropStages {
		converted := make([]aggregate.Stage, len(stages))
		for i, s := range stages {
			converted[i] = aggregate.Stage{Name: s.Name, Lo: s.Lo, Hi: s.Hi}
		}
		out[crop] = converted
	}
	return out
}

// loadFields reads field boundaries from a GeoJSON FeatureCollection. The
// field id comes from the feature id or an "id" property; a "crop" property
// sets the per-field crop label.
func loadFields(path string) ([]scene.Field, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, err
	}

	fields := make([]scene.Field, 0, len(fc.Features))
	for i, feat := range fc.Features {
		f := scene.Field{Geometry: feat.Geometry}
		switch id := feat.ID.(type) {
		case string:
			f.ID = id
		case float64:
			f.ID = fmt.Sprintf("%.0f", id)
		}
		if f.ID == "" {
			if v, ok := feat.Properties["id"].(string); ok {
				f.ID = v
			}
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("field-%d", i)
		}
		if v, ok := feat.Properties["crop"].(string); ok {
			f.Crop = v
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseWindow(startStr, endStr string) (scene.SeasonWindow, error) {
	if startStr == "" || endStr == "" {
		return scene.SeasonWindow{}, errors.New("-start and -end are required")
	}
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return scene.SeasonWindow{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return scene.SeasonWindow{}, fmt.Errorf("end: %w", err)
	}
	w := scene.SeasonWindow{Start: start, End: end}
	return w, w.Validate()
}

func writeCSV(path string, rows []aggregate.Row) error {
	if path == "-" {
		return gocsv.Marshal(rows, os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.Marshal(rows, f)
}

// serveMetrics exposes Prometheus metrics for the lifetime of the batch.
func serveMetrics(ctx context.Context, addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "serving metrics", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "metrics server failed", logger.Error(err))
	}
}
