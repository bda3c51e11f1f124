// Package workday maps calendar days to the three-level workday code used by
// the silver dataset.
//
// The code is label driven (holidays, half days) and is distinct from the
// pure Monday-Friday flag produced by the temporal package.
package workday

import (
	"fmt"
	"time"

	"github.com/HatiCode/silverline/pkg/faults"
)

// Class is the workday classification of a calendar day.
type Class int

const (
	None Class = 0
	Half Class = 1
	Full Class = 2
)

// ParseClass converts a day-class label into its Class.
// Labels other than "none", "half" and "full" are rejected.
func ParseClass(label string) (Class, error) {
	switch label {
	case "none":
		return None, nil
	case "half":
		return Half, nil
	case "full":
		return Full, nil
	default:
		return None, faults.Domain("unrecognized day class %q", label)
	}
}

// Valid reports whether c is one of the defined codes.
func (c Class) Valid() bool {
	switch c {
	case None, Half, Full:
		return true
	default:
		return false
	}
}

func (c Class) String() string {
	switch c {
	case None:
		return "none"
	case Half:
		return "half"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Day is one row of the day-class table.
type Day struct {
	Date  time.Time
	Class Class
}

// Calendar resolves instants to workday codes.
type Calendar struct {
	days map[civilDate]Class
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.UTC().Date()
	return civilDate{y, m, d}
}

// NewCalendar indexes days by civil date (UTC). Duplicate dates are rejected.
func NewCalendar(days []Day) (*Calendar, error) {
	c := &Calendar{days: make(map[civilDate]Class, len(days))}
	for i, d := range days {
		if !d.Class.Valid() {
			return nil, faults.Domain("day %d: invalid class code %d", i, int(d.Class))
		}
		key := dateOf(d.Date)
		if _, dup := c.days[key]; dup {
			return nil, faults.Ordering("duplicate day class for %s", d.Date.UTC().Format(time.DateOnly))
		}
		c.days[key] = d.Class
	}
	return c, nil
}

// Code returns the class of the civil day containing t.
func (c *Calendar) Code(t time.Time) (Class, error) {
	class, ok := c.days[dateOf(t)]
	if !ok {
		return None, faults.Schema("no day class for %s", t.UTC().Format(time.DateOnly))
	}
	return class, nil
}

// Len returns the number of days in the calendar.
func (c *Calendar) Len() int {
	return len(c.days)
}
