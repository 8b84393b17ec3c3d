package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/datetally/internal/calendar"
	"github.com/sandeepkv93/datetally/internal/service"
)

const columnWidth = 6

// writeMonth prints the grid as two lines per week: day numbers, then the
// counts of in-month days that are not in the future.
func writeMonth(w io.Writer, view service.MonthView) {
	title := fmt.Sprintf("%s %d", calendar.MonthName(view.Month), view.Year)
	fmt.Fprintf(w, "%s    Total: %d\n", title, view.Total)
	if view.Stale {
		fmt.Fprintf(w, "(offline, showing counts saved %s)\n", view.FetchedAt.Local().Format(time.DateTime))
	}

	var b strings.Builder
	for _, h := range calendar.WeekdayHeaders {
		b.WriteString(pad(h))
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))

	for week := 0; week < calendar.GridSize/7; week++ {
		var days, counts strings.Builder
		for _, cell := range view.Grid[week*7 : week*7+7] {
			if !cell.IsCurrentMonth {
				days.WriteString(pad(""))
				counts.WriteString(pad(""))
				continue
			}
			day := strconv.Itoa(cell.Date.Day)
			if cell.IsToday {
				day = "[" + day + "]"
			}
			days.WriteString(pad(day))
			if cell.IsFuture {
				counts.WriteString(pad(""))
			} else {
				counts.WriteString(pad(strconv.Itoa(cell.Count)))
			}
		}
		line := strings.TrimRight(days.String(), " ")
		if line == "" {
			continue
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, strings.TrimRight(counts.String(), " "))
	}
}

func pad(s string) string {
	if len(s) >= columnWidth {
		return s + " "
	}
	return s + strings.Repeat(" ", columnWidth-len(s))
}
