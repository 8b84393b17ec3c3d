package calendar

import (
	"fmt"
	"time"
)

var WeekdayHeaders = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func MonthName(month time.Month) string {
	return month.String()
}

// Shift moves a year/month pair by delta months, carrying into the year.
func Shift(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// YearOptions lists the selectable years around year (year-5 .. year+5).
func YearOptions(year int) []int {
	years := make([]int, 0, 11)
	for y := year - 5; y <= year+5; y++ {
		years = append(years, y)
	}
	return years
}

// ReportFilename is the file name of a month's PDF export.
func ReportFilename(year int, month time.Month) string {
	return fmt.Sprintf("%s_%d_Report.pdf", MonthName(month), year)
}

// ParseMonth accepts "YYYY-MM" and returns the year and month.
func ParseMonth(raw string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("parse month %q: %w", raw, err)
	}
	return t.Year(), t.Month(), nil
}
