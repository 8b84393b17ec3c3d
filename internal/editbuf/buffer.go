// Package editbuf coalesces rapid edits of a day's count into a single commit
// per quiet period.
package editbuf

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultDelay = time.Second

// CommitFunc persists the settled count for date.
type CommitFunc func(ctx context.Context, date string, count int) error

// SettledFunc is told about every commit once it has returned.
type SettledFunc func(date string, count int, err error)

type pending struct {
	text  string
	timer *time.Timer
	gen   uint64
}

type Buffer struct {
	ctx       context.Context
	delay     time.Duration
	commit    CommitFunc
	onSettled SettledFunc
	logger    *slog.Logger

	mu       sync.Mutex
	pending  map[string]*pending
	updating map[string]bool
	gen      uint64
	closed   bool
	inflight sync.WaitGroup
}

type Option func(*Buffer)

func WithDelay(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.delay = d
		}
	}
}

func WithOnSettled(fn SettledFunc) Option {
	return func(b *Buffer) { b.onSettled = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffer) { b.logger = logger }
}

// New returns a buffer whose commits run with ctx.
func New(ctx context.Context, commit CommitFunc, opts ...Option) *Buffer {
	b := &Buffer{
		ctx:      ctx,
		delay:    DefaultDelay,
		commit:   commit,
		logger:   slog.Default(),
		pending:  map[string]*pending{},
		updating: map[string]bool{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnKeystroke records text for date and restarts its timer. Ignored after Close.
func (b *Buffer) OnKeystroke(date, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	p, ok := b.pending[date]
	if ok {
		p.timer.Stop()
	} else {
		p = &pending{}
		b.pending[date] = p
	}
	b.gen++
	gen := b.gen
	p.text = text
	p.gen = gen
	p.timer = time.AfterFunc(b.delay, func() { b.fire(date, gen) })
}

// Display is what the cell for date shows: buffered text if any, otherwise
// the committed count.
func (b *Buffer) Display(date string, committed int) string {
	if text, ok := b.Pending(date); ok {
		return text
	}
	return strconv.Itoa(committed)
}

func (b *Buffer) Pending(date string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[date]
	if !ok {
		return "", false
	}
	return p.text, true
}

// Updating reports whether a commit for date is in flight.
func (b *Buffer) Updating(date string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updating[date]
}

// Cancel drops the buffered edit for date without committing it.
func (b *Buffer) Cancel(date string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pending[date]; ok {
		p.timer.Stop()
		delete(b.pending, date)
	}
}

// Close stops every pending timer without committing. Commits already in
// flight are left to finish; Wait blocks for them.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for date, p := range b.pending {
		p.timer.Stop()
		delete(b.pending, date)
	}
}

func (b *Buffer) Wait() {
	b.inflight.Wait()
}

func (b *Buffer) fire(date string, gen uint64) {
	b.mu.Lock()
	p, ok := b.pending[date]
	if b.closed || !ok || p.gen != gen {
		b.mu.Unlock()
		return
	}
	text := p.text
	b.updating[date] = true
	b.inflight.Add(1)
	b.mu.Unlock()
	defer b.inflight.Done()

	count := ParseCount(text)
	err := b.commit(b.ctx, date, count)
	if err != nil {
		b.logger.Warn("commit failed", "date", date, "count", count, "err", err)
	}

	b.mu.Lock()
	delete(b.updating, date)
	if cur, ok := b.pending[date]; ok && cur.gen == gen {
		delete(b.pending, date)
	}
	b.mu.Unlock()

	if b.onSettled != nil {
		b.onSettled(date, count, err)
	}
}

// ParseCount reads text as a non-negative integer. Empty, malformed and
// negative input all count as zero.
func ParseCount(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
