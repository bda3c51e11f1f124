// Command refiner turns the bronze power-load tables into silver feature
// datasets.
//
// One run:
//  1. Loads the 1-second load series and the day-class table from a source
//  2. Validates the raw input contract
//  3. For each configured bin width, resamples to fixed bins, adds calendar
//     and history features and validates every stage
//  4. Writes each dataset atomically (Parquet or CSV) and records its manifest
//  5. Optionally flushes run metrics to a node-exporter textfile
//
// Usage:
//
//	refiner \
//	  -source=parquet \
//	  -widths=1,15,60 \
//	  -output-dir=/data/silver \
//	  -storage=redis -redis-addr=redis:6379
//
// Environment variables:
//
//	SOURCE          - Source kind: parquet, csv, http (default: parquet)
//	SOURCE_*        - Source settings, e.g. SOURCE_SAMPLES_PATH, SOURCE_DAYS_PATH
//	SINK            - Output format: parquet, csv (default: parquet)
//	OUTPUT_DIR      - Output directory (default: silver)
//	DATASET_PREFIX  - Dataset name prefix (default: power_load)
//	WIDTHS          - Bin widths in minutes (default: 1)
//	LAGS            - Lag horizons in minutes (default: 1,5,15,60,1440)
//	ROLLING_WINDOWS - Rolling window sizes in bins (default: 5,15,60,240,1440)
//	SLOPE_WINDOWS   - Slope lookback sizes in bins (default: 5,15,60)
//	FEATURES_FILE   - YAML file overriding the lists above
//	STORAGE         - Manifest store: memory, redis (default: memory)
//	METRICS_FILE    - Node-exporter textfile for run metrics
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
//
// The process exits non-zero on any violation; nothing partial is written.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HatiCode/silverline/cmd/refiner/config"
	"github.com/HatiCode/silverline/cmd/refiner/metrics"
	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/history"
	"github.com/HatiCode/silverline/pkg/httpx"
	"github.com/HatiCode/silverline/pkg/logger"
	"github.com/HatiCode/silverline/pkg/sinks"
	"github.com/HatiCode/silverline/pkg/sources"
	"github.com/HatiCode/silverline/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New("refiner", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	log.Info("starting silverline refiner",
		"version", version,
		"source", cfg.Source,
		"sink", cfg.Sink,
		"widths", cfg.Widths,
	)

	if err := run(cfg, log); err != nil {
		log.Error("run failed", "error", err, "kind", faults.Kind(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	src, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	sink, err := sinks.New(cfg.Sink, cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}

	store, err := storage.Open(storage.Options{
		Backend:       cfg.Storage,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		RedisTTL:      cfg.RedisTTL,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	targets, err := buildTargets(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	r := New(src, sink, store, targets, cfg.StrictCadence, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	_, runErr := r.Run(ctx)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error("failed to write metrics textfile", "path", cfg.MetricsFile, "error", err)
		}
	}
	return runErr
}

// buildTargets creates one history engine per configured width.
func buildTargets(cfg *config.Config) ([]Target, error) {
	targets := make([]Target, 0, len(cfg.Widths))
	for _, w := range cfg.Widths {
		engine, err := history.NewEngine(cfg.History(w))
		if err != nil {
			return nil, fmt.Errorf("width %dm: %w", w, err)
		}
		targets = append(targets, Target{Dataset: cfg.DatasetName(w), Engine: engine})
	}
	return targets, nil
}

func newSource(cfg *config.Config) (sources.Source, error) {
	src, err := sources.New(cfg.Source, cfg.SourceConfig)
	if err != nil {
		return nil, err
	}

	if h, ok := src.(*sources.HTTPSource); ok {
		client, err := httpx.NewClient(cfg.TLS, cfg.SourceTimeout)
		if err != nil {
			return nil, err
		}
		h.HTTPClient = client
	}
	return src, nil
}
