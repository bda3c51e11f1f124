// Package temporal derives calendar and time-of-day fields from bin start
// instants. All fields are taken from the instant's civil calendar in UTC.
package temporal

import (
	"time"

	"github.com/HatiCode/silverline/pkg/frame"
)

// Column names appended by Extend, in order.
const (
	YearColumn      = "year"
	QuarterColumn   = "quarter"
	MonthColumn     = "month"
	DayColumn       = "day"
	HourColumn      = "hour"
	DayOfWeekColumn = "day_of_week"
	SeasonColumn    = "season"
	TimeOfDayColumn = "time_of_day"
	IsWorkdayColumn = "is_workday"
)

// Columns lists the columns appended by Extend.
var Columns = []string{
	YearColumn,
	QuarterColumn,
	MonthColumn,
	DayColumn,
	HourColumn,
	DayOfWeekColumn,
	SeasonColumn,
	TimeOfDayColumn,
	IsWorkdayColumn,
}

// Season codes.
const (
	Winter = 1 // Dec, Jan, Feb
	Spring = 2 // Mar, Apr, May
	Summer = 3 // Jun, Jul, Aug
	Fall   = 4 // Sep, Oct, Nov
)

// Time-of-day codes.
const (
	Morning   = 0 // 06-11
	Afternoon = 1 // 12-16
	Evening   = 2 // 17-21
	Night     = 3 // 22-05
)

// Fields holds the calendar features of one instant.
type Fields struct {
	Year      int
	Quarter   int
	Month     int
	Day       int
	Hour      int
	DayOfWeek int // 0=Sunday ... 6=Saturday
	Season    int
	TimeOfDay int
	IsWorkday int // 1 for Monday-Friday
}

// Extract computes the calendar fields of t.
func Extract(t time.Time) Fields {
	t = t.UTC()
	month := int(t.Month())
	dow := int(t.Weekday()) // time.Weekday is already Sunday-based

	return Fields{
		Year:      t.Year(),
		Quarter:   (month-1)/3 + 1,
		Month:     month,
		Day:       t.Day(),
		Hour:      t.Hour(),
		DayOfWeek: dow,
		Season:    Season(t.Month()),
		TimeOfDay: TimeOfDay(t.Hour()),
		IsWorkday: IsWorkday(dow),
	}
}

// FromMondayBased converts a weekday numbered 0=Monday..6=Sunday to the
// 0=Sunday..6=Saturday convention.
func FromMondayBased(weekday int) int {
	return (weekday + 1) % 7
}

// Season maps a month to its meteorological season code.
func Season(m time.Month) int {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// TimeOfDay maps an hour (0-23) to its part-of-day code. Night wraps midnight.
func TimeOfDay(hour int) int {
	switch {
	case hour >= 6 && hour <= 11:
		return Morning
	case hour >= 12 && hour <= 16:
		return Afternoon
	case hour >= 17 && hour <= 21:
		return Evening
	default:
		return Night
	}
}

// IsWorkday returns 1 when dayOfWeek (0=Sunday) is Monday through Friday.
func IsWorkday(dayOfWeek int) int {
	if dayOfWeek >= 1 && dayOfWeek <= 5 {
		return 1
	}
	return 0
}

// Extend appends the calendar columns derived from the frame index.
func Extend(f *frame.Frame) (*frame.Frame, error) {
	n := f.Len()
	cols := make([]*frame.Int, len(Columns))
	for i, name := range Columns {
		cols[i] = frame.NewInt(name, n)
	}

	for i, ts := range f.Index() {
		fs := Extract(ts)
		values := [...]int{
			fs.Year, fs.Quarter, fs.Month, fs.Day, fs.Hour,
			fs.DayOfWeek, fs.Season, fs.TimeOfDay, fs.IsWorkday,
		}
		for c, v := range values {
			cols[c].Set(i, int64(v))
		}
	}

	appended := make([]frame.Column, len(cols))
	for i, c := range cols {
		appended[i] = c
	}
	if err := f.Append(appended...); err != nil {
		return nil, err
	}
	return f, nil
}
