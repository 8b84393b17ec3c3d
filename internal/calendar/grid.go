// Package calendar builds the fixed six-week month view used by every
// renderer (terminal grid, TUI and PDF report).
package calendar

import (
	"time"

	"github.com/sandeepkv93/datetally/internal/domain"
)

// GridSize is the number of cells in a month view: six full weeks.
const GridSize = 42

// Generate returns the 42 cells of the month view starting on the Sunday on or
// before the first of the month. Counts come from entries by exact date
// equality; days without an entry have count 0.
func Generate(year int, month time.Month, entries []domain.DateEntry, today domain.Day) [GridSize]domain.DayCell {
	first := domain.NewDay(year, month, 1)
	month = first.Month
	start := first.AddDays(-int(first.Weekday()))

	counts := indexEntries(entries)

	var cells [GridSize]domain.DayCell
	for i := range cells {
		d := start.AddDays(i)
		cells[i] = domain.DayCell{
			Date:           d,
			Count:          counts[d.String()],
			IsCurrentMonth: d.Month == month,
			IsFuture:       d.After(today),
			IsToday:        d == today,
		}
	}
	return cells
}

// indexEntries maps normalized dates to counts. Entries whose date does not
// parse are skipped. When the backend returns duplicates the last one wins.
func indexEntries(entries []domain.DateEntry) map[string]int {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		d, err := domain.ParseDay(e.Date)
		if err != nil {
			continue
		}
		counts[d.String()] = e.Count
	}
	return counts
}

// Editable reports whether a cell accepts input: it must belong to the
// displayed month, not be in the future and not have a commit in flight.
func Editable(cell domain.DayCell, updating bool) bool {
	return cell.IsCurrentMonth && !cell.IsFuture && !updating
}

// InMonth returns the cells belonging to the displayed month in order.
func InMonth(cells []domain.DayCell) []domain.DayCell {
	out := make([]domain.DayCell, 0, 31)
	for _, c := range cells {
		if c.IsCurrentMonth {
			out = append(out, c)
		}
	}
	return out
}

// Total sums the counts of the fetched entries.
func Total(entries []domain.DateEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	return total
}
