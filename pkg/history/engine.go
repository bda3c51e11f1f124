// Package history computes causal history features over the resampled
// avg_load column: lags, rolling statistics, least-squares slopes and
// deltas between lags.
//
// Features are addressed by bin position and assume a uniform bin width.
// No feature at row i reads avg_load beyond what its definition allows:
// lags read row i-steps, slopes read rows up to i-1, and rolling statistics
// read the trailing window ending at i.
//
// Every feature is a pure function of the immutable avg_load column, so
// columns are computed concurrently and appended in a fixed order:
// lags, rolling statistics, deltas, slopes.
package history

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/silverline/pkg/frame"
	"github.com/HatiCode/silverline/pkg/resample"
)

// Engine appends history features to resampled frames.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine for it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Columns returns the names of the columns Apply appends, in order.
func (e *Engine) Columns() []string {
	return e.cfg.Columns()
}

// Apply computes every configured feature from the avg_load column of f and
// appends them to f.
func (e *Engine) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	src, err := f.Float(resample.AvgLoadColumn)
	if err != nil {
		return nil, err
	}

	lags := make([]*frame.Float, len(e.cfg.Lags))
	rolling := make([][]*frame.Float, len(e.cfg.RollingWindows))
	slopes := make([]*frame.Float, len(e.cfg.SlopeWindows))

	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Parallelism > 0 {
		g.SetLimit(e.cfg.Parallelism)
	}

	for i, k := range e.cfg.Lags {
		i, k := i, k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			steps, ok := LagSteps(k, e.cfg.BinMinutes)
			if !ok {
				steps = 0
			}
			lags[i] = Lag(LagName(k), src, steps)
			return nil
		})
	}

	for i, w := range e.cfg.RollingWindows {
		i, w := i, w
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rolling[i] = Rolling(src, w, e.cfg.BinMinutes)
			return nil
		})
	}

	for i, w := range e.cfg.SlopeWindows {
		i, w := i, w
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slopes[i] = Slope(SlopeName(w*e.cfg.BinMinutes), src, w, e.cfg.BinMinutes)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	cols := make([]frame.Column, 0, len(e.cfg.Columns()))
	var lag1 *frame.Float
	for i, k := range e.cfg.Lags {
		cols = append(cols, lags[i])
		if k == 1 {
			lag1 = lags[i]
		}
	}
	for _, stats := range rolling {
		for _, c := range stats {
			cols = append(cols, c)
		}
	}
	if e.cfg.Deltas {
		for i, k := range e.cfg.Lags {
			if k == 1 {
				continue
			}
			cols = append(cols, Delta(DeltaName(k), lags[i], lag1))
		}
	}
	for _, c := range slopes {
		cols = append(cols, c)
	}

	if err := f.Append(cols...); err != nil {
		return nil, err
	}
	return f, nil
}
