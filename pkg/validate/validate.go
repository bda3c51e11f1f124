// Package validate asserts the table contracts between silverline stages.
//
// A Validator runs after every stage and fails the run on the first
// violation. It never repairs data: callers fix the upstream input or the
// configuration and rerun.
package validate

import (
	"math"
	"slices"
	"time"

	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/frame"
	"github.com/HatiCode/silverline/pkg/resample"
	"github.com/HatiCode/silverline/pkg/temporal"
	"github.com/HatiCode/silverline/pkg/workday"
)

// SampleInterval is the cadence of the raw load series.
const SampleInterval = time.Second

type codeRange struct {
	min, max int64
}

// domains bounds the categorical and calendar integer columns.
var domains = map[string]codeRange{
	resample.WorkdayColumn:   {int64(workday.None), int64(workday.Full)},
	temporal.QuarterColumn:   {1, 4},
	temporal.MonthColumn:     {1, 12},
	temporal.DayColumn:       {1, 31},
	temporal.HourColumn:      {0, 23},
	temporal.DayOfWeekColumn: {0, 6},
	temporal.SeasonColumn:    {temporal.Winter, temporal.Fall},
	temporal.TimeOfDayColumn: {temporal.Morning, temporal.Night},
	temporal.IsWorkdayColumn: {0, 1},
}

// Validator checks raw inputs and stage outputs.
type Validator struct {
	// Width is the expected bin width of stage frames. Zero skips the
	// spacing check.
	Width time.Duration

	// StrictCadence requires raw samples exactly one SampleInterval apart.
	StrictCadence bool
}

// New returns a validator for frames binned at width.
func New(width time.Duration, strictCadence bool) *Validator {
	return &Validator{Width: width, StrictCadence: strictCadence}
}

// BinColumns is the column set produced by the resampling stage.
func BinColumns() []string {
	return []string{frame.IndexColumn, resample.AvgLoadColumn, resample.WorkdayColumn}
}

// TemporalColumns is the column set after the temporal stage.
func TemporalColumns() []string {
	return append(BinColumns(), temporal.Columns...)
}

// FeatureColumns is the column set after the history stage.
func FeatureColumns(history []string) []string {
	return append(TemporalColumns(), history...)
}

// Raw checks the sample series and the day-class table against the input
// contract.
func (v *Validator) Raw(samples []resample.Sample, days []workday.Day) error {
	if len(samples) == 0 {
		return faults.Schema("sample table is empty")
	}

	sampleDates := make(map[string]bool)
	for i, s := range samples {
		if s.Timestamp.IsZero() {
			return faults.Schema("sample %d has no timestamp", i)
		}
		if math.IsNaN(s.Load) || math.IsInf(s.Load, 0) {
			return faults.Schema("sample %d at %s has non-finite load %v", i, stamp(s.Timestamp), s.Load)
		}
		if i > 0 {
			prev := samples[i-1].Timestamp
			if !s.Timestamp.After(prev) {
				return faults.Ordering("sample %d at %s does not follow %s", i, stamp(s.Timestamp), stamp(prev))
			}
			if v.StrictCadence {
				if gap := s.Timestamp.Sub(prev); gap != SampleInterval {
					return faults.Ordering("sample %d at %s is %v after the previous one, want %v",
						i, stamp(s.Timestamp), gap, SampleInterval)
				}
			}
		}
		sampleDates[s.Timestamp.UTC().Format(time.DateOnly)] = true
	}

	if len(days) == 0 {
		return faults.Schema("day-class table is empty")
	}

	dayDates := make(map[string]bool, len(days))
	for i, d := range days {
		if !d.Class.Valid() {
			return faults.Domain("day %d has class code %d", i, int(d.Class))
		}
		key := d.Date.UTC().Format(time.DateOnly)
		if i > 0 && key <= days[i-1].Date.UTC().Format(time.DateOnly) {
			return faults.Ordering("day-class row %d (%s) is not after %s", i, key, days[i-1].Date.UTC().Format(time.DateOnly))
		}
		if !sampleDates[key] {
			return faults.Schema("day-class date %s has no samples", key)
		}
		dayDates[key] = true
	}

	for date := range sampleDates {
		if !dayDates[date] {
			return faults.Schema("no day class for sample date %s", date)
		}
	}

	return nil
}

// Frame checks a stage output against the expected column list (including
// the bin_start index), the index ordering and cadence, and the domains of
// integer columns.
func (v *Validator) Frame(f *frame.Frame, expected []string) error {
	if err := checkColumns(f.Names(), expected); err != nil {
		return err
	}
	if err := v.checkIndex(f.Index()); err != nil {
		return err
	}

	for _, c := range f.Columns() {
		switch col := c.(type) {
		case *frame.Int:
			if err := checkDomain(col); err != nil {
				return err
			}
		case *frame.Float:
			if err := checkFinite(col); err != nil {
				return err
			}
		default:
			return faults.Schema("column %q has unsupported type %T", c.Name(), c)
		}
	}

	if f.Has(resample.AvgLoadColumn) {
		if _, err := f.Float(resample.AvgLoadColumn); err != nil {
			return err
		}
	}
	if f.Has(resample.WorkdayColumn) {
		if _, err := f.Int(resample.WorkdayColumn); err != nil {
			return err
		}
	}
	return nil
}

func checkColumns(got, want []string) error {
	for _, name := range want {
		if !slices.Contains(got, name) {
			return faults.Schema("missing column %q", name)
		}
	}
	for _, name := range got {
		if !slices.Contains(want, name) {
			return faults.Schema("unexpected column %q", name)
		}
	}
	if !slices.Equal(got, want) {
		return faults.Schema("column order %v, want %v", got, want)
	}
	return nil
}

func (v *Validator) checkIndex(index []time.Time) error {
	for i, ts := range index {
		if ts.IsZero() {
			return faults.Schema("bin %d has no bin_start", i)
		}
		if i == 0 {
			continue
		}
		prev := index[i-1]
		if !ts.After(prev) {
			return faults.Ordering("bin %d at %s does not follow %s", i, stamp(ts), stamp(prev))
		}
		if v.Width > 0 && ts.Sub(prev) != v.Width {
			return faults.Ordering("bin %d at %s is %v after the previous bin, want %v", i, stamp(ts), ts.Sub(prev), v.Width)
		}
	}
	return nil
}

func checkDomain(c *frame.Int) error {
	r, ok := domains[c.Name()]
	if !ok {
		return nil
	}
	for i := 0; i < c.Len(); i++ {
		if v := c.At(i); v < r.min || v > r.max {
			return faults.Domain("%s[%d] = %d outside [%d, %d]", c.Name(), i, v, r.min, r.max)
		}
	}
	return nil
}

func checkFinite(c *frame.Float) error {
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.At(i); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return faults.Schema("%s[%d] holds %v instead of a missing marker", c.Name(), i, v)
		}
	}
	return nil
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
