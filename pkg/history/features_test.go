package history

import (
	"math"
	"testing"

	"github.com/HatiCode/silverline/pkg/frame"
)

const eps = 1e-9

func column(values ...float64) *frame.Float {
	return frame.FloatFrom("avg_load", values)
}

// withGap returns values as a column with row gap marked missing.
func withGap(gap int, values ...float64) *frame.Float {
	c := frame.NewFloat("avg_load", len(values))
	for i, v := range values {
		if i != gap {
			c.Set(i, v)
		}
	}
	return c
}

func assertMissing(t *testing.T, c *frame.Float, rows ...int) {
	t.Helper()
	for _, i := range rows {
		if v, ok := c.At(i); ok {
			t.Errorf("%s[%d] = %v, want missing", c.Name(), i, v)
		}
	}
}

func assertValue(t *testing.T, c *frame.Float, i int, want float64) {
	t.Helper()
	got, ok := c.At(i)
	if !ok {
		t.Errorf("%s[%d] missing, want %v", c.Name(), i, want)
		return
	}
	if math.Abs(got-want) > eps {
		t.Errorf("%s[%d] = %v, want %v", c.Name(), i, got, want)
	}
}

func TestLagSteps(t *testing.T) {
	tests := []struct {
		lag, bin  int
		wantSteps int
		wantOK    bool
	}{
		{1, 1, 1, true},
		{15, 5, 3, true},
		{1440, 10, 144, true},
		{5, 10, 0, false},
		{1, 5, 0, false},
		{7, 5, 0, false},
		{0, 1, 0, false},
	}

	for _, tt := range tests {
		steps, ok := LagSteps(tt.lag, tt.bin)
		if steps != tt.wantSteps || ok != tt.wantOK {
			t.Errorf("LagSteps(%d, %d) = (%d, %v), want (%d, %v)",
				tt.lag, tt.bin, steps, ok, tt.wantSteps, tt.wantOK)
		}
	}
}

func TestLag(t *testing.T) {
	src := column(10, 20, 30, 40, 50)
	lag := Lag("lag_2m", src, 2)

	assertMissing(t, lag, 0, 1)
	assertValue(t, lag, 2, 10)
	assertValue(t, lag, 3, 20)
	assertValue(t, lag, 4, 30)
}

func TestLag_PropagatesMissing(t *testing.T) {
	src := withGap(1, 10, 20, 30, 40)
	lag := Lag("lag_1m", src, 1)

	assertMissing(t, lag, 0, 2)
	assertValue(t, lag, 3, 30)
}

func TestLag_ZeroStepsAllMissing(t *testing.T) {
	lag := Lag("lag_5m", column(1, 2, 3), 0)
	if lag.Missing() != 3 {
		t.Errorf("Missing() = %d, want 3", lag.Missing())
	}
}

func TestRolling_Sufficiency(t *testing.T) {
	src := withGap(4, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	stats := Rolling(src, 3, 1)

	for _, c := range stats {
		// first w-1 rows, and every window touching row 4
		assertMissing(t, c, 0, 1, 4, 5, 6)
	}

	mean, std, hi, lo := stats[0], stats[1], stats[2], stats[3]
	assertValue(t, mean, 2, 2)
	assertValue(t, std, 2, 1)
	assertValue(t, hi, 2, 3)
	assertValue(t, lo, 2, 1)

	assertValue(t, mean, 7, 7)
	assertValue(t, hi, 8, 9)
	assertValue(t, lo, 8, 7)
}

func TestRolling_Constant(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 42.5
	}
	stats := Rolling(column(values...), 5, 1)

	for i := 4; i < len(values); i++ {
		assertValue(t, stats[0], i, 42.5)
		assertValue(t, stats[1], i, 0)
		assertValue(t, stats[2], i, 42.5)
		assertValue(t, stats[3], i, 42.5)
	}
}

func TestRolling_SampleStd(t *testing.T) {
	// 2, 4, 4, 4, 5, 5, 7, 9: population std 2, sample std sqrt(32/7)
	stats := Rolling(column(2, 4, 4, 4, 5, 5, 7, 9), 8, 1)
	assertValue(t, stats[1], 7, math.Sqrt(32.0/7.0))
}

func TestRolling_Names(t *testing.T) {
	stats := Rolling(column(1, 2, 3), 3, 5)
	want := []string{"rolling_mean_15m", "rolling_std_15m", "rolling_max_15m", "rolling_min_15m"}
	for i, c := range stats {
		if c.Name() != want[i] {
			t.Errorf("name[%d] = %q, want %q", i, c.Name(), want[i])
		}
	}
}

func TestSlope_ShiftedLine(t *testing.T) {
	// y = 3 + 2x
	values := make([]float64, 10)
	for i := range values {
		values[i] = 3 + 2*float64(i)
	}
	slope := Slope("slope_3m", column(values...), 3, 1)

	// the first full window ends at row 2, so its slope lands on row 3
	assertMissing(t, slope, 0, 1, 2)
	for i := 3; i < len(values); i++ {
		assertValue(t, slope, i, 2)
	}
}

func TestSlope_KnownFit(t *testing.T) {
	// fit of (0,1) (1,3) (2,2): slope 0.5
	slope := Slope("slope_3m", column(1, 3, 2, 100), 3, 1)
	assertValue(t, slope, 3, 0.5)
}

func TestSlope_PerMinute(t *testing.T) {
	// 5-minute bins rising 10 per bin rise 2 per minute
	values := []float64{0, 10, 20, 30, 40, 50}
	tests := []struct {
		binMinutes int
		want       float64
	}{
		{1, 10},
		{5, 2},
		{15, 10.0 / 15},
	}
	for _, tt := range tests {
		slope := Slope("slope", column(values...), 3, tt.binMinutes)
		if v, ok := slope.At(4); !ok || math.Abs(v-tt.want) > 1e-12 {
			t.Errorf("binMinutes=%d: slope[4] = %v, %v; want %v", tt.binMinutes, v, ok, tt.want)
		}
	}
}

func TestSlope_GapMakesMissing(t *testing.T) {
	src := withGap(3, 1, 2, 3, 4, 5, 6, 7, 8)
	slope := Slope("slope_2m", src, 2, 1)

	// windows ending at 3 or 4 include the gap; they land on rows 4 and 5
	assertMissing(t, slope, 0, 1, 4, 5)
	assertValue(t, slope, 2, 1)
	assertValue(t, slope, 6, 1)
}

func TestDelta(t *testing.T) {
	src := column(5, 8, 13, 21, 34)
	lag1 := Lag("lag_1m", src, 1)
	lag3 := Lag("lag_3m", src, 3)
	delta := Delta("delta_3m", lag3, lag1)

	assertMissing(t, delta, 0, 1, 2)
	// row 3: src[0] - src[2] = 5 - 13
	assertValue(t, delta, 3, -8)
	// row 4: src[1] - src[3] = 8 - 21
	assertValue(t, delta, 4, -13)
}
