package domain

import (
	"fmt"
	"time"
)

// DayLayout is the wire format of a calendar date.
const DayLayout = "2006-01-02"

// DateEntry is one stored per-day count. The backend keeps at most one entry
// per date.
type DateEntry struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Day is a calendar date with day precision and no time zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the local calendar date of t.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// Today returns the local calendar date of the current time.
func Today() Day {
	return DayOf(time.Now())
}

func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func ParseDay(raw string) (Day, error) {
	t, err := time.Parse(DayLayout, raw)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", raw, err)
	}
	return DayOf(t), nil
}

func (d Day) String() string {
	return d.utc().Format(DayLayout)
}

func (d Day) IsZero() bool {
	return d == Day{}
}

func (d Day) Weekday() time.Weekday {
	return d.utc().Weekday()
}

func (d Day) AddDays(n int) Day {
	return DayOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or
// after other.
func (d Day) Compare(other Day) int {
	return d.utc().Compare(other.utc())
}

func (d Day) Before(other Day) bool { return d.Compare(other) < 0 }

func (d Day) After(other Day) bool { return d.Compare(other) > 0 }

func (d Day) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// DayCell is one render-only cell of a month grid.
type DayCell struct {
	Date           Day
	Count          int
	IsCurrentMonth bool
	IsFuture       bool
	IsToday        bool
}
