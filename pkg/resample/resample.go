// Package resample collapses a second-resolution load series into
// contiguous fixed-width bins.
//
// Each bin is a left-closed interval [start, start+width). Widths must
// divide a day, so bins tile every UTC day starting at midnight and never
// straddle two calendar days. Its avg_load is
// the arithmetic mean of the samples inside it, and its workday code comes
// from the day-class calendar for the bin's civil date. A bin without
// samples keeps a missing avg_load; nothing is interpolated here.
package resample

import (
	"time"

	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/frame"
	"github.com/HatiCode/silverline/pkg/workday"
)

// Column names produced by Aggregate.
const (
	AvgLoadColumn = "avg_load"
	WorkdayColumn = "workday"
)

const day = 24 * time.Hour

// Sample is a single raw load observation.
type Sample struct {
	Timestamp time.Time
	Load      float64
}

// Floor truncates t to the origin of its width-sized bin, measured from the
// Unix epoch: t - (t mod width).
func Floor(t time.Time, width time.Duration) time.Time {
	ns := t.UnixNano()
	w := int64(width)
	r := ns % w
	if r < 0 {
		r += w
	}
	return time.Unix(0, ns-r).UTC()
}

// Aggregate buckets samples into width-sized bins spanning
// floor(first, width) through the bin containing the last sample.
//
// Samples must be strictly increasing. The returned frame carries the
// avg_load and workday columns in that order.
func Aggregate(samples []Sample, width time.Duration, cal *workday.Calendar) (*frame.Frame, error) {
	if width <= 0 {
		return nil, faults.Configuration("bin width must be positive, got %v", width)
	}
	if day%width != 0 {
		return nil, faults.Configuration("bin width %v does not divide a day", width)
	}
	if len(samples) == 0 {
		return nil, faults.Schema("no samples to resample")
	}
	if cal == nil {
		return nil, faults.Schema("no day-class calendar")
	}

	for i := 1; i < len(samples); i++ {
		if !samples[i].Timestamp.After(samples[i-1].Timestamp) {
			return nil, faults.Ordering("sample %d at %s does not follow %s",
				i, samples[i].Timestamp.UTC().Format(time.RFC3339Nano), samples[i-1].Timestamp.UTC().Format(time.RFC3339Nano))
		}
	}

	first := Floor(samples[0].Timestamp, width)
	last := Floor(samples[len(samples)-1].Timestamp, width)
	n := int(last.Sub(first)/width) + 1

	sums := make([]float64, n)
	counts := make([]int, n)
	for _, s := range samples {
		b := int(Floor(s.Timestamp, width).Sub(first) / width)
		sums[b] += s.Load
		counts[b]++
	}

	index := make([]time.Time, n)
	avg := frame.NewFloat(AvgLoadColumn, n)
	codes := frame.NewInt(WorkdayColumn, n)

	for b := 0; b < n; b++ {
		start := first.Add(time.Duration(b) * width)
		index[b] = start

		if counts[b] > 0 {
			avg.Set(b, sums[b]/float64(counts[b]))
		}

		class, err := cal.Code(start)
		if err != nil {
			return nil, err
		}
		codes.Set(b, int64(class))
	}

	f := frame.New(index)
	if err := f.Append(avg, codes); err != nil {
		return nil, err
	}
	return f, nil
}
