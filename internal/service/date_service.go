package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/datetally/internal/api"
	"github.com/sandeepkv93/datetally/internal/calendar"
	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/entrycache"
	"github.com/sandeepkv93/datetally/internal/observability"
	"github.com/sandeepkv93/datetally/internal/report"
	"github.com/sandeepkv93/datetally/internal/session"
	"github.com/sandeepkv93/datetally/internal/validation"
)

type MonthView struct {
	Year    int
	Month   time.Month
	Entries []domain.DateEntry
	Grid    [calendar.GridSize]domain.DayCell
	Total   int
	// Stale is set when Entries came from the local cache.
	Stale     bool
	FetchedAt time.Time
}

type DateService struct {
	api      DatesAPI
	sessions *session.Store
	cache    entrycache.Cache
	sink     report.Sink
	today    func() domain.Day
	logger   *slog.Logger
}

type DateOption func(*DateService)

func WithToday(today func() domain.Day) DateOption {
	return func(s *DateService) { s.today = today }
}

func NewDateService(datesAPI DatesAPI, sessions *session.Store, cache entrycache.Cache, sink report.Sink, logger *slog.Logger, opts ...DateOption) *DateService {
	if cache == nil {
		cache = entrycache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &DateService{api: datesAPI, sessions: sessions, cache: cache, sink: sink, today: domain.Today, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Month fetches a month and lays it out. When the fetch fails the view is
// still usable: it holds the cached copy for transport failures, or no
// entries otherwise, and the error is returned alongside it.
func (s *DateService) Month(ctx context.Context, year int, month time.Month) (MonthView, error) {
	entries, err := s.api.ListDates(ctx, year, month)
	owner := s.owner()
	view := MonthView{Year: year, Month: month, FetchedAt: time.Now()}
	if err == nil {
		if owner != "" {
			if cerr := s.cache.ReplaceMonth(ctx, owner, year, month, entries); cerr != nil {
				s.logger.WarnContext(ctx, "could not cache month", "month", calendar.MonthName(month), "year", year, "err", cerr)
			}
		}
		return s.build(view, entries), nil
	}

	s.logger.WarnContext(ctx, "fetching month failed", "year", year, "month", int(month), "class", api.Classify(err), "err", err)
	entries = []domain.DateEntry{}
	if api.Classify(err) == api.ClassTransport && owner != "" {
		cached, fetchedAt, ok, cerr := s.cache.Month(ctx, owner, year, month)
		if cerr == nil && ok {
			entries = cached
			view.Stale = true
			view.FetchedAt = fetchedAt
		}
	}
	return s.build(view, entries), err
}

func (s *DateService) build(view MonthView, entries []domain.DateEntry) MonthView {
	view.Entries = entries
	view.Grid = calendar.Generate(view.Year, view.Month, entries, s.today())
	view.Total = calendar.Total(entries)
	return view
}

// Commit stores count for date. It is the edit buffer's commit function.
func (s *DateService) Commit(ctx context.Context, date string, count int) error {
	if err := s.api.AddDate(ctx, date, count); err != nil {
		observability.RecordDateCommit(api.Classify(err))
		return err
	}
	observability.RecordDateCommit("success")
	s.logger.InfoContext(ctx, "count committed", "date", date, "count", count)
	return nil
}

// Set commits a count for a past or present day and returns the refreshed
// month containing it.
func (s *DateService) Set(ctx context.Context, rawDate string, count int) (MonthView, error) {
	day, err := domain.ParseDay(rawDate)
	if err != nil {
		return MonthView{}, validation.NewError("date", "date must be a date formatted as 2006-01-02")
	}
	if count < 0 {
		return MonthView{}, validation.NewError("count", "count must be greater than or equal to 0")
	}
	if day.After(s.today()) {
		return MonthView{}, validation.NewError("date", "future days cannot be edited")
	}
	if err := s.Commit(ctx, day.String(), count); err != nil {
		return MonthView{}, err
	}
	return s.Month(ctx, day.Year, day.Month)
}

// Export renders the month report and stores it in the configured sink.
func (s *DateService) Export(ctx context.Context, year int, month time.Month) (string, error) {
	view, err := s.Month(ctx, year, month)
	if err != nil && !view.Stale {
		observability.RecordReportExport(s.sink.Name(), "fetch_failed")
		return "", err
	}
	return s.ExportView(ctx, view)
}

// ExportView renders an already fetched month.
func (s *DateService) ExportView(ctx context.Context, view MonthView) (string, error) {
	r := report.FromGrid(view.Year, view.Month, view.Grid[:])
	data, err := report.RenderBytes(r)
	if err != nil {
		observability.RecordReportExport(s.sink.Name(), "render_failed")
		return "", err
	}
	location, err := s.sink.Put(ctx, r.Filename(), data)
	if err != nil {
		observability.RecordReportExport(s.sink.Name(), "store_failed")
		return "", fmt.Errorf("store report: %w", err)
	}
	observability.RecordReportExport(s.sink.Name(), "success")
	s.logger.InfoContext(ctx, "report exported", "location", location, "total", r.Total)
	return location, nil
}

func (s *DateService) owner() string {
	snap := s.sessions.Snapshot()
	if snap.Identity == nil {
		return ""
	}
	return snap.Identity.Email
}
