// Package tui hosts the Bubble Tea program for the interactive calendar.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/datetally/internal/api"
	"github.com/sandeepkv93/datetally/internal/calendar"
	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/editbuf"
	"github.com/sandeepkv93/datetally/internal/gate"
	"github.com/sandeepkv93/datetally/internal/service"
)

// Dates is what the calendar needs from the date service.
type Dates interface {
	Month(ctx context.Context, year int, month time.Month) (service.MonthView, error)
	Commit(ctx context.Context, date string, count int) error
	ExportView(ctx context.Context, view service.MonthView) (string, error)
}

type monthLoadedMsg struct {
	seq  int
	view service.MonthView
	err  error
}

type committedMsg struct {
	date  string
	count int
	err   error
}

type exportedMsg struct {
	location string
	err      error
}

type Model struct {
	ctx    context.Context
	dates  Dates
	buffer *editbuf.Buffer
	today  func() domain.Day
	logger *slog.Logger
	send   func(tea.Msg)

	year    int
	month   time.Month
	view    service.MonthView
	loaded  bool
	loading bool
	seq     int
	cursor  int

	status    string
	statusErr bool
	reauth    bool
	width     int
}

type Option func(*Model)

func WithToday(today func() domain.Day) Option {
	return func(m *Model) { m.today = today }
}

func WithDebounce(d time.Duration) Option {
	return func(m *Model) {
		m.buffer = m.newBuffer(d)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

// New returns a calendar opened on the month containing today.
func New(ctx context.Context, dates Dates, opts ...Option) *Model {
	m := &Model{
		ctx:    ctx,
		dates:  dates,
		today:  domain.Today,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.buffer == nil {
		m.buffer = m.newBuffer(editbuf.DefaultDelay)
	}
	today := m.today()
	m.year, m.month = today.Year, today.Month
	return m
}

func (m *Model) newBuffer(delay time.Duration) *editbuf.Buffer {
	return editbuf.New(m.ctx, func(ctx context.Context, date string, count int) error {
		return m.dates.Commit(ctx, date, count)
	},
		editbuf.WithDelay(delay),
		editbuf.WithLogger(m.logger),
		editbuf.WithOnSettled(func(date string, count int, err error) {
			m.post(committedMsg{date: date, count: count, err: err})
		}),
	)
}

// post delivers a message produced outside the update loop.
func (m *Model) post(msg tea.Msg) {
	if m.send != nil {
		m.send(msg)
	}
}

// ReauthRequired reports whether the program ended because the session
// could not be refreshed.
func (m *Model) ReauthRequired() bool { return m.reauth }

func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	m.seq++
	m.loading = true
	seq, year, month := m.seq, m.year, m.month
	return func() tea.Msg {
		view, err := m.dates.Month(m.ctx, year, month)
		return monthLoadedMsg{seq: seq, view: view, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case monthLoadedMsg:
		if msg.seq != m.seq {
			break
		}
		m.loading = false
		m.view = msg.view
		if !m.loaded || !m.cursorInMonth() {
			m.cursor = m.initialCursor()
		}
		m.loaded = true
		switch {
		case msg.err != nil && m.handleReauth(msg.err, &cmds):
		case msg.err != nil && msg.view.Stale:
			m.setError(fmt.Sprintf("%s Showing cached data from %s.", api.Message(msg.err), msg.view.FetchedAt.Local().Format("Jan 2 15:04")))
		case msg.err != nil:
			m.setError(api.Message(msg.err))
		}
	case committedMsg:
		if msg.err != nil {
			if !m.handleReauth(msg.err, &cmds) {
				m.setError(fmt.Sprintf("Could not save %s: %s", msg.date, api.Message(msg.err)))
			}
			break
		}
		m.setStatus(fmt.Sprintf("Saved %d for %s", msg.count, msg.date))
		cmds = append(cmds, m.load())
	case exportedMsg:
		if msg.err != nil {
			if !m.handleReauth(msg.err, &cmds) {
				m.setError("Export failed: " + api.Message(msg.err))
			}
			break
		}
		m.setStatus("Report saved to " + msg.location)
	case tea.KeyMsg:
		m.handleKeyPress(msg, &cmds)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleReauth(err error, cmds *[]tea.Cmd) bool {
	if !errors.Is(err, gate.ErrReauthRequired) {
		return false
	}
	m.reauth = true
	m.setError(api.Message(err))
	m.buffer.Close()
	*cmds = append(*cmds, tea.Quit)
	return true
}

func (m *Model) handleKeyPress(msg tea.KeyMsg, cmds *[]tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q", "esc":
		m.buffer.Close()
		*cmds = append(*cmds, tea.Quit)
	case "left", "h":
		m.moveCursor(-1)
	case "right", "l":
		m.moveCursor(1)
	case "up", "k":
		m.moveCursor(-7)
	case "down", "j":
		m.moveCursor(7)
	case "n", "pgdown":
		m.shiftMonth(1, cmds)
	case "p", "pgup":
		m.shiftMonth(-1, cmds)
	case "N":
		m.shiftYear(1, cmds)
	case "P":
		m.shiftYear(-1, cmds)
	case "x":
		if cell, ok := m.selected(); ok {
			m.buffer.Cancel(cell.Date.String())
		}
	case "t":
		today := m.today()
		m.jumpTo(today.Year, today.Month, cmds)
	case "r":
		*cmds = append(*cmds, m.load())
	case "e":
		m.export(cmds)
	case "backspace":
		m.editSelected(func(text string) string {
			if len(text) == 0 {
				return text
			}
			return text[:len(text)-1]
		})
	default:
		if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
			m.editSelected(func(text string) string {
				if text == "0" {
					return key
				}
				return text + key
			})
		}
	}
}

func (m *Model) moveCursor(delta int) {
	next := m.cursor + delta
	if next < 0 || next >= calendar.GridSize {
		return
	}
	m.cursor = next
}

func (m *Model) shiftMonth(delta int, cmds *[]tea.Cmd) {
	year, month := calendar.Shift(m.year, m.month, delta)
	m.jumpTo(year, month, cmds)
}

// shiftYear moves within the years offered around the current one.
func (m *Model) shiftYear(delta int, cmds *[]tea.Cmd) {
	target := m.year + delta
	for _, year := range calendar.YearOptions(m.today().Year) {
		if year == target {
			m.jumpTo(target, m.month, cmds)
			return
		}
	}
	m.setError(fmt.Sprintf("%d is outside the selectable years", target))
}

func (m *Model) jumpTo(year int, month time.Month, cmds *[]tea.Cmd) {
	if year == m.year && month == m.month {
		return
	}
	m.year, m.month = year, month
	m.status = ""
	*cmds = append(*cmds, m.load())
}

func (m *Model) export(cmds *[]tea.Cmd) {
	if !m.loaded || m.loading {
		m.setError("Wait for the month to load before exporting")
		return
	}
	view := m.view
	m.setStatus("Exporting...")
	*cmds = append(*cmds, func() tea.Msg {
		loc, err := m.dates.ExportView(m.ctx, view)
		return exportedMsg{location: loc, err: err}
	})
}

func (m *Model) editSelected(edit func(string) string) {
	cell, ok := m.selected()
	if !ok {
		return
	}
	date := cell.Date.String()
	if !calendar.Editable(cell, m.buffer.Updating(date)) {
		return
	}
	text, pending := m.buffer.Pending(date)
	if !pending {
		text = strconv.Itoa(cell.Count)
	}
	m.buffer.OnKeystroke(date, edit(text))
}

func (m *Model) selected() (domain.DayCell, bool) {
	if !m.loaded || m.cursor < 0 || m.cursor >= calendar.GridSize {
		return domain.DayCell{}, false
	}
	return m.view.Grid[m.cursor], true
}

func (m *Model) cursorInMonth() bool {
	return m.view.Grid[m.cursor].IsCurrentMonth
}

func (m *Model) initialCursor() int {
	first := -1
	for i, cell := range m.view.Grid {
		if cell.IsToday && cell.IsCurrentMonth {
			return i
		}
		if first < 0 && cell.IsCurrentMonth {
			first = i
		}
	}
	if first < 0 {
		return 0
	}
	return first
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}
