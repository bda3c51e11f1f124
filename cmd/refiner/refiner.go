// Package main implements the bronze→silver run orchestration.
//
// This file contains the Refiner type, which runs the pipeline once:
//
//	load → validate raw → for each width:
//	    resample → validate → temporal → validate → history → validate → write → manifest
//
// Every stage is timed into the run metrics. The first violation aborts the
// whole run; datasets already committed by earlier widths stay in place
// because each one is written atomically with its own manifest.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/silverline/cmd/refiner/metrics"
	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/frame"
	"github.com/HatiCode/silverline/pkg/history"
	"github.com/HatiCode/silverline/pkg/resample"
	"github.com/HatiCode/silverline/pkg/sinks"
	"github.com/HatiCode/silverline/pkg/sources"
	"github.com/HatiCode/silverline/pkg/storage"
	"github.com/HatiCode/silverline/pkg/temporal"
	"github.com/HatiCode/silverline/pkg/validate"
	"github.com/HatiCode/silverline/pkg/workday"
)

// Target is one silver dataset produced by a run.
type Target struct {
	Dataset string
	Engine  *history.Engine
}

// Width returns the bin width of the target.
func (t Target) Width() time.Duration {
	return time.Duration(t.Engine.Config().BinMinutes) * time.Minute
}

// Refiner orchestrates one run: load → validate → refine per target → store.
type Refiner struct {
	source        sources.Source
	sink          sinks.Sink
	store         storage.Store
	targets       []Target
	strictCadence bool
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// New creates a Refiner. metrics may be nil.
func New(
	source sources.Source,
	sink sinks.Sink,
	store storage.Store,
	targets []Target,
	strictCadence bool,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Refiner{
		source:        source,
		sink:          sink,
		store:         store,
		targets:       targets,
		strictCadence: strictCadence,
		logger:        logger,
		metrics:       m,
		now:           time.Now,
	}
}

// Run performs the complete run and returns the manifests of the committed
// datasets in target order.
func (r *Refiner) Run(ctx context.Context) ([]storage.Manifest, error) {
	start := r.now()

	ds, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	cal, err := r.checkRaw(ds)
	if err != nil {
		return nil, err
	}

	manifests := make([]storage.Manifest, 0, len(r.targets))
	for _, t := range r.targets {
		m, err := r.refine(ctx, ds, cal, t)
		if err != nil {
			return manifests, fmt.Errorf("%s: %w", t.Dataset, err)
		}
		manifests = append(manifests, m)
	}

	r.logger.Info("run complete",
		"datasets", len(manifests),
		"samples", len(ds.Samples),
		"total_ms", time.Since(start).Milliseconds(),
	)
	return manifests, nil
}

func (r *Refiner) load(ctx context.Context) (*sources.Dataset, error) {
	start := r.now()

	ds, err := r.source.Load(ctx)
	if err != nil {
		r.recordError("load", err)
		return nil, fmt.Errorf("load: %w", err)
	}

	duration := time.Since(start)
	r.recordStage("", "load", duration)

	first, last := ds.Range()
	r.logger.Info("loaded bronze tables",
		"source", r.source.Name(),
		"samples", len(ds.Samples),
		"days", len(ds.Days),
		"first", first,
		"last", last,
		"duration_ms", duration.Milliseconds(),
	)
	return ds, nil
}

func (r *Refiner) checkRaw(ds *sources.Dataset) (*workday.Calendar, error) {
	start := r.now()

	if err := validate.New(0, r.strictCadence).Raw(ds.Samples, ds.Days); err != nil {
		r.recordError("validate_raw", err)
		return nil, fmt.Errorf("validate raw: %w", err)
	}

	cal, err := workday.NewCalendar(ds.Days)
	if err != nil {
		r.recordError("validate_raw", err)
		return nil, fmt.Errorf("build calendar: %w", err)
	}

	r.recordStage("", "validate_raw", time.Since(start))
	return cal, nil
}

// refine produces, validates, writes and records one dataset.
func (r *Refiner) refine(ctx context.Context, ds *sources.Dataset, cal *workday.Calendar, t Target) (storage.Manifest, error) {
	v := validate.New(t.Width(), r.strictCadence)
	log := r.logger.With("dataset", t.Dataset)

	f, err := r.stage(t.Dataset, "resample", func() (*frame.Frame, error) {
		out, err := resample.Aggregate(ds.Samples, t.Width(), cal)
		if err != nil {
			return nil, err
		}
		return out, v.Frame(out, validate.BinColumns())
	})
	if err != nil {
		return storage.Manifest{}, err
	}
	log.Debug("resampled", "bins", f.Len(), "width", t.Width())

	f, err = r.stage(t.Dataset, "temporal", func() (*frame.Frame, error) {
		out, err := temporal.Extend(f)
		if err != nil {
			return nil, err
		}
		return out, v.Frame(out, validate.TemporalColumns())
	})
	if err != nil {
		return storage.Manifest{}, err
	}

	f, err = r.stage(t.Dataset, "history", func() (*frame.Frame, error) {
		out, err := t.Engine.Apply(ctx, f)
		if err != nil {
			return nil, err
		}
		return out, v.Frame(out, validate.FeatureColumns(t.Engine.Columns()))
	})
	if err != nil {
		return storage.Manifest{}, err
	}

	writeStart := r.now()
	path, err := r.sink.Write(ctx, t.Dataset, f)
	if err != nil {
		r.recordError("write", err)
		return storage.Manifest{}, fmt.Errorf("write: %w", err)
	}
	r.recordStage(t.Dataset, "write", time.Since(writeStart))

	m := r.manifest(t, f, path)
	if err := r.store.Put(ctx, m); err != nil {
		r.recordError("manifest", err)
		return storage.Manifest{}, fmt.Errorf("store manifest: %w", err)
	}

	if r.metrics != nil {
		r.metrics.RecordDataset(t.Dataset, m.Rows, len(m.Columns), m.Missing, float64(m.GeneratedAt.Unix()))
	}

	log.Info("dataset written",
		"rows", m.Rows,
		"columns", len(m.Columns),
		"start", m.Start,
		"end", m.End,
		"output", path,
	)
	return m, nil
}

// stage runs fn as a named, timed stage.
func (r *Refiner) stage(dataset, name string, fn func() (*frame.Frame, error)) (*frame.Frame, error) {
	start := r.now()

	f, err := fn()
	if err != nil {
		r.recordError(name, err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	r.recordStage(dataset, name, time.Since(start))
	return f, nil
}

func (r *Refiner) manifest(t Target, f *frame.Frame, path string) storage.Manifest {
	m := storage.Manifest{
		Dataset:     t.Dataset,
		BinMinutes:  t.Engine.Config().BinMinutes,
		GeneratedAt: r.now().UTC(),
		Rows:        f.Len(),
		Columns:     f.Names(),
		Missing:     make(map[string]int),
		Output:      path,
		Format:      r.sink.Name(),
	}

	if idx := f.Index(); len(idx) > 0 {
		m.Start, m.End = idx[0], idx[len(idx)-1]
	}
	for _, c := range f.Columns() {
		if fc, ok := c.(*frame.Float); ok {
			if n := fc.Missing(); n > 0 {
				m.Missing[c.Name()] = n
			}
		}
	}
	return m
}

func (r *Refiner) recordStage(dataset, stage string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordStage(dataset, stage, d.Seconds())
	}
}

func (r *Refiner) recordError(stage string, err error) {
	if r.metrics != nil {
		r.metrics.RecordError(stage, faults.Kind(err))
	}
}
