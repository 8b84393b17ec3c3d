package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sandeepkv93/datetally/internal/calendar"
)

const cellWidth = 7

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	badgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("86")).Padding(0, 1)
	staleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle   = lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center).Foreground(lipgloss.Color("245"))
	cellStyle     = lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center)
	outsideStyle  = cellStyle.Foreground(lipgloss.Color("240"))
	futureStyle   = cellStyle.Foreground(lipgloss.Color("242")).Italic(true)
	todayStyle    = cellStyle.Bold(true).Underline(true).Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m *Model) View() string {
	var sections []string

	title := titleStyle.Render(fmt.Sprintf("%s %d", calendar.MonthName(m.month), m.year))
	badge := badgeStyle.Render("Total: " + strconv.Itoa(m.view.Total))
	head := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", badge)
	if m.view.Stale {
		head = lipgloss.JoinHorizontal(lipgloss.Center, head, " ", staleStyle.Render("(cached)"))
	}
	sections = append(sections, head)

	if !m.loaded {
		sections = append(sections, "Loading...")
	} else {
		sections = append(sections, m.renderGrid())
	}

	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.status))
	}
	sections = append(sections, helpStyle.Render("←↑↓→ move  0-9/⌫ edit  x discard  n/p month  N/P year  t today  e export  r reload  q quit"))
	return strings.Join(sections, "\n\n")
}

func (m *Model) renderGrid() string {
	headers := make([]string, 0, 7)
	for _, h := range calendar.WeekdayHeaders {
		headers = append(headers, headerStyle.Render(h))
	}
	rows := []string{lipgloss.JoinHorizontal(lipgloss.Top, headers...)}

	for week := 0; week < calendar.GridSize/7; week++ {
		days := make([]string, 0, 7)
		counts := make([]string, 0, 7)
		for i := week * 7; i < week*7+7; i++ {
			day, count := m.renderCell(i)
			days = append(days, day)
			counts = append(counts, count)
		}
		rows = append(rows,
			lipgloss.JoinHorizontal(lipgloss.Top, days...),
			lipgloss.JoinHorizontal(lipgloss.Top, counts...),
		)
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderCell(i int) (string, string) {
	cell := m.view.Grid[i]
	style := cellStyle
	switch {
	case !cell.IsCurrentMonth:
		style = outsideStyle
	case cell.IsToday:
		style = todayStyle
	case cell.IsFuture:
		style = futureStyle
	}

	day := strconv.Itoa(cell.Date.Day)
	count := ""
	if cell.IsCurrentMonth {
		date := cell.Date.String()
		switch {
		case m.buffer.Updating(date):
			count = pendingStyle.Render("…")
		default:
			if text, ok := m.buffer.Pending(date); ok {
				count = pendingStyle.Render(text + "*")
			} else {
				count = m.buffer.Display(date, cell.Count)
			}
		}
	}
	if i == m.cursor {
		style = style.Inherit(selectedStyle)
	}
	return style.Render(day), cellStyle.Render(count)
}
