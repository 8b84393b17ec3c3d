// Package report renders a month's counts as a PDF and stores it.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/sandeepkv93/datetally/internal/calendar"
	"github.com/sandeepkv93/datetally/internal/domain"
)

const ContentType = "application/pdf"

// Page geometry in millimetres on A4 portrait.
const (
	pageCenterX  = 105.0
	dateColumnX  = 40.0
	countColumnX = 120.0
	topY         = 20.0
	rowStep      = 7.0
	bottomY      = 280.0
)

type Row struct {
	Date  string
	Count int
}

type Report struct {
	Year  int
	Month time.Month
	Rows  []Row
	Total int
}

// FromGrid builds a report from the in-month cells of a calendar grid.
func FromGrid(year int, month time.Month, cells []domain.DayCell) Report {
	r := Report{Year: year, Month: month}
	for _, cell := range calendar.InMonth(cells) {
		r.Rows = append(r.Rows, Row{Date: cell.Date.String(), Count: cell.Count})
		r.Total += cell.Count
	}
	return r
}

func (r Report) Title() string {
	return fmt.Sprintf("%s %d", calendar.MonthName(r.Month), r.Year)
}

func (r Report) Filename() string {
	return calendar.ReportFilename(r.Year, r.Month)
}

type textLine struct {
	page     int
	x, y     float64
	size     float64
	centered bool
	text     string
}

func layout(r Report) []textLine {
	page := 1
	y := topY
	lines := []textLine{{page: page, x: pageCenterX, y: y, size: 16, centered: true, text: r.Title()}}
	y += 10
	lines = append(lines,
		textLine{page: page, x: dateColumnX, y: y, size: 12, text: "Date"},
		textLine{page: page, x: countColumnX, y: y, size: 12, text: "Count"},
	)
	y += rowStep
	for _, row := range r.Rows {
		lines = append(lines,
			textLine{page: page, x: dateColumnX, y: y, size: 12, text: row.Date},
			textLine{page: page, x: countColumnX, y: y, size: 12, text: strconv.Itoa(row.Count)},
		)
		y += rowStep
		if y > bottomY {
			page++
			y = topY
		}
	}
	y += 10
	return append(lines, textLine{page: page, x: pageCenterX, y: y, size: 14, centered: true, text: fmt.Sprintf("Total Count: %d", r.Total)})
}

// Render writes r as a PDF document to w.
func Render(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Title(), true)
	pdf.SetCreator("datetally", true)
	page := 0
	for _, line := range layout(r) {
		for page < line.page {
			pdf.AddPage()
			page++
		}
		pdf.SetFont("Helvetica", "", line.size)
		x := line.x
		if line.centered {
			x -= pdf.GetStringWidth(line.text) / 2
		}
		pdf.Text(x, line.y, line.text)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func RenderBytes(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
