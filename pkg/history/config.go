package history

import (
	"fmt"
	"slices"

	"github.com/HatiCode/silverline/pkg/faults"
)

// MinutesPerDay bounds the bin width: widths must divide it.
const MinutesPerDay = 24 * 60

// Config selects the history features computed by an Engine.
type Config struct {
	// BinMinutes is the width of one bin in minutes. It must divide a day
	// so that every bin starts on the calendar day it belongs to.
	BinMinutes int

	// Lags are lag horizons in minutes. A horizon that is not a multiple of
	// BinMinutes yields an entirely missing column.
	Lags []int

	// RollingWindows are trailing window sizes in bins.
	RollingWindows []int

	// SlopeWindows are trailing lookback sizes in bins.
	SlopeWindows []int

	// Deltas enables delta_k = lag_k - lag_1 for every lag k != 1.
	// Requires 1 in Lags and 1-minute bins.
	Deltas bool

	// Parallelism bounds the number of columns computed concurrently.
	// Zero or negative means unbounded.
	Parallelism int
}

// DefaultConfig returns the 1-minute feature set of the silver dataset.
func DefaultConfig() Config {
	return Config{
		BinMinutes:     1,
		Lags:           []int{1, 5, 15, 60, 1440},
		RollingWindows: []int{5, 15, 60, 240, 1440},
		SlopeWindows:   []int{5, 15, 60},
		Deltas:         true,
	}
}

// Validate checks the configuration once, before any computation.
func (c Config) Validate() error {
	if c.BinMinutes < 1 {
		return faults.Configuration("bin width must be at least 1 minute, got %d", c.BinMinutes)
	}
	if MinutesPerDay%c.BinMinutes != 0 {
		return faults.Configuration("bin width %d minutes does not divide a day of %d minutes", c.BinMinutes, MinutesPerDay)
	}
	if err := checkList("lag", c.Lags, 1); err != nil {
		return err
	}
	if err := checkList("rolling window", c.RollingWindows, 2); err != nil {
		return err
	}
	if err := checkList("slope window", c.SlopeWindows, 2); err != nil {
		return err
	}
	if c.Deltas && !slices.Contains(c.Lags, 1) {
		return faults.Configuration("delta features require the 1-minute lag, lags are %v", c.Lags)
	}
	if c.Deltas && c.BinMinutes != 1 {
		return faults.Configuration("delta features need 1-minute bins, the 1-minute lag is undefined at %d-minute bins", c.BinMinutes)
	}
	return nil
}

func checkList(what string, values []int, min int) error {
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if v < min {
			return faults.Configuration("%s %d is below the minimum of %d", what, v, min)
		}
		if seen[v] {
			return faults.Configuration("duplicate %s %d", what, v)
		}
		seen[v] = true
	}
	return nil
}

// LagName returns the column name of the lag at k minutes.
func LagName(k int) string { return fmt.Sprintf("lag_%dm", k) }

// DeltaName returns the column name of the delta at k minutes.
func DeltaName(k int) string { return fmt.Sprintf("delta_%dm", k) }

// RollingName returns the column name of a rolling statistic over the given
// span in minutes.
func RollingName(stat string, minutes int) string {
	return fmt.Sprintf("rolling_%s_%dm", stat, minutes)
}

// SlopeName returns the column name of the slope over the given span in minutes.
func SlopeName(minutes int) string { return fmt.Sprintf("slope_%dm", minutes) }

// RollingStats lists the statistics computed for every rolling window.
var RollingStats = []string{"mean", "std", "max", "min"}

// Columns lists the feature columns for this configuration in the order
// Engine.Apply appends them.
func (c Config) Columns() []string {
	var names []string
	for _, k := range c.Lags {
		names = append(names, LagName(k))
	}
	for _, w := range c.RollingWindows {
		for _, stat := range RollingStats {
			names = append(names, RollingName(stat, w*c.BinMinutes))
		}
	}
	if c.Deltas {
		for _, k := range c.Lags {
			if k != 1 {
				names = append(names, DeltaName(k))
			}
		}
	}
	for _, w := range c.SlopeWindows {
		names = append(names, SlopeName(w*c.BinMinutes))
	}
	return names
}
