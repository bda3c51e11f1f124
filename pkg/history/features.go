package history

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/silverline/pkg/frame"
)

// LagSteps converts a lag horizon in minutes into a bin count. ok is false
// when the horizon is not an exact multiple of the bin width.
func LagSteps(lagMinutes, binMinutes int) (steps int, ok bool) {
	if binMinutes <= 0 || lagMinutes <= 0 || lagMinutes%binMinutes != 0 {
		return 0, false
	}
	return lagMinutes / binMinutes, true
}

// Lag returns src shifted forward by steps bins: out[i] = src[i-steps].
// Rows before steps, and all rows when steps < 1, are missing.
func Lag(name string, src *frame.Float, steps int) *frame.Float {
	n := src.Len()
	out := frame.NewFloat(name, n)
	if steps < 1 {
		return out
	}
	for i := steps; i < n; i++ {
		if v, ok := src.At(i - steps); ok {
			out.Set(i, v)
		}
	}
	return out
}

// Rolling computes mean, sample std, max and min over the trailing window
// of w bins ending at and including each row. A row is missing unless all
// w values in its window are present. Columns are returned in RollingStats
// order and named for a span of w*binMinutes minutes.
func Rolling(src *frame.Float, w, binMinutes int) []*frame.Float {
	n := src.Len()
	span := w * binMinutes
	mean := frame.NewFloat(RollingName("mean", span), n)
	std := frame.NewFloat(RollingName("std", span), n)
	hi := frame.NewFloat(RollingName("max", span), n)
	lo := frame.NewFloat(RollingName("min", span), n)

	buf := make([]float64, w)
	for i := w - 1; i < n; i++ {
		if !src.Window(buf, i-w+1, i+1) {
			continue
		}
		m, s := stat.MeanStdDev(buf, nil)
		mean.Set(i, m)
		std.Set(i, s)
		hi.Set(i, floats.Max(buf))
		lo.Set(i, floats.Min(buf))
	}

	return []*frame.Float{mean, std, hi, lo}
}

// Slope fits a least-squares line to each trailing window of w values
// against bin offsets 0..w-1 and returns the slopes in load per minute,
// shifted forward by one bin so row i only reflects values up to row i-1.
// Windows with a missing value produce a missing slope.
func Slope(name string, src *frame.Float, w, binMinutes int) *frame.Float {
	n := src.Len()
	out := frame.NewFloat(name, n)

	xs := make([]float64, w)
	for i := range xs {
		xs[i] = float64(i)
	}
	ys := make([]float64, w)

	// end is the last row of the fitted window; the result lands on end+1.
	for end := w - 1; end+1 < n; end++ {
		if !src.Window(ys, end-w+1, end+1) {
			continue
		}
		_, beta := stat.LinearRegression(xs, ys, nil, false)
		out.Set(end+1, beta/float64(binMinutes))
	}
	return out
}

// Delta returns lagK - lag1 row by row, missing where either side is missing.
func Delta(name string, lagK, lag1 *frame.Float) *frame.Float {
	n := lagK.Len()
	out := frame.NewFloat(name, n)
	for i := 0; i < n; i++ {
		a, okA := lagK.At(i)
		b, okB := lag1.At(i)
		if okA && okB {
			out.Set(i, a-b)
		}
	}
	return out
}
