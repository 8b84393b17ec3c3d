// Package clock tracks when the current access credential must be treated as
// stale. The marker lives in a MarkerStore so it survives process restarts.
package clock

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTTL is how long an issued or refreshed access token is trusted.
const DefaultTTL = 5 * time.Minute

// MarkerKey names the persisted expiry marker.
const MarkerKey = "expiryTime"

type Clock struct {
	store  MarkerStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Clock)

func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Clock) { c.logger = logger }
}

func New(store MarkerStore, ttl time.Duration, opts ...Option) *Clock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Clock{store: store, ttl: ttl, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MarkIssued sets the marker to now + TTL.
func (c *Clock) MarkIssued(ctx context.Context) error {
	expiry := c.now().Add(c.ttl).UnixMilli()
	if err := c.store.Save(ctx, expiry); err != nil {
		c.logger.WarnContext(ctx, "expiry marker save failed", "err", err)
		return err
	}
	return nil
}

// IsExpired reports true when no marker is set or now is at or past it. A
// store that cannot be read counts as having no marker.
func (c *Clock) IsExpired(ctx context.Context) bool {
	expiry, ok, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "expiry marker load failed", "err", err)
		return true
	}
	if !ok {
		return true
	}
	return c.now().UnixMilli() >= expiry
}

// ExpiresAt returns the marker, if any.
func (c *Clock) ExpiresAt(ctx context.Context) (time.Time, bool) {
	expiry, ok, err := c.store.Load(ctx)
	if err != nil || !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(expiry), true
}

func (c *Clock) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "expiry marker clear failed", "err", err)
		return err
	}
	return nil
}
