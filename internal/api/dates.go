package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/validation"
)

type addDateRequest struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Count int    `json:"count" validate:"gte=0"`
}

// DatesClient talks to the dates endpoints through an authenticating
// transport (normally the gate).
type DatesClient struct {
	*client
	validator *validation.Validator
}

func NewDatesClient(opts Options, v *validation.Validator) (*DatesClient, error) {
	c, err := newClient(opts, opts.Transport)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = validation.New()
	}
	return &DatesClient{client: c, validator: v}, nil
}

// ListDates returns the stored entries for a month. month is 1-based.
func (c *DatesClient) ListDates(ctx context.Context, year int, month time.Month) ([]domain.DateEntry, error) {
	query := url.Values{}
	query.Set("year", strconv.Itoa(year))
	query.Set("month", strconv.Itoa(int(month)))
	var out []domain.DateEntry
	if err := c.do(ctx, call{method: http.MethodGet, path: "dates/stored/", query: query, out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.DateEntry{}
	}
	return out, nil
}

// AddDate upserts the count for one day.
func (c *DatesClient) AddDate(ctx context.Context, date string, count int) error {
	req := addDateRequest{Date: date, Count: count}
	if err := c.validator.Struct(req); err != nil {
		return err
	}
	return c.do(ctx, call{method: http.MethodPost, path: "dates/add-date/", in: req, event: "dates.commit"})
}
