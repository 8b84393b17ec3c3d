// Package gate attaches bearer credentials to outgoing requests and refreshes
// an expired credential before the request leaves the process.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/sandeepkv93/datetally/internal/clock"
	"github.com/sandeepkv93/datetally/internal/observability"
	"github.com/sandeepkv93/datetally/internal/session"
)

// ErrReauthRequired means the credential could not be refreshed and the
// session was ended. The user has to sign in again.
var ErrReauthRequired = errors.New("re-authentication required")

var errEmptyRefresh = errors.New("refresh returned no access token")

// Backend is the capability the Gate is handed at construction: a refresh
// call backed by whatever long-lived credential the environment holds, and a
// best-effort logout notification.
type Backend interface {
	RefreshAccessToken(ctx context.Context) (string, error)
	NotifyLogout(ctx context.Context) error
}

type Gate struct {
	sessions     *session.Store
	clock        *clock.Clock
	backend      Backend
	base         http.RoundTripper
	logger       *slog.Logger
	singleFlight bool
	group        singleflight.Group
}

type Option func(*Gate)

// WithBase sets the transport requests are forwarded to.
func WithBase(rt http.RoundTripper) Option {
	return func(g *Gate) { g.base = rt }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithSingleFlight shares one in-flight refresh between concurrent callers
// that observe an expired credential. Off by default: each caller refreshes.
func WithSingleFlight(enabled bool) Option {
	return func(g *Gate) { g.singleFlight = enabled }
}

func New(sessions *session.Store, clk *clock.Clock, backend Backend, opts ...Option) *Gate {
	g := &Gate{
		sessions: sessions,
		clock:    clk,
		backend:  backend,
		base:     http.DefaultTransport,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Token returns the credential to attach to the next request. A nil token
// with a nil error means the session is anonymous and nothing is attached.
func (g *Gate) Token(ctx context.Context) (*oauth2.Token, error) {
	snap := g.sessions.Snapshot()
	if snap.Anonymous() {
		return nil, nil
	}
	if !g.clock.IsExpired(ctx) {
		return bearer(snap.AccessToken), nil
	}

	g.logger.InfoContext(ctx, "access token expired, refreshing")
	access, err := g.refresh(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "token refresh failed, logging out", "err", err)
		g.Logout(ctx)
		return nil, fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	return bearer(access), nil
}

// RoundTrip implements http.RoundTripper.
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := g.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	if tok == nil {
		return g.base.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	tok.SetAuthHeader(out)
	return g.base.RoundTrip(out)
}

// Logout ends the session: best-effort backend notification, then the expiry
// marker and the session store are cleared. It never fails.
func (g *Gate) Logout(ctx context.Context) {
	if err := g.backend.NotifyLogout(ctx); err != nil {
		g.logger.WarnContext(ctx, "logout notification failed", "err", err)
		observability.RecordAuthLogout("notify_failed")
	} else {
		observability.RecordAuthLogout("success")
	}
	_ = g.clock.Clear(ctx)
	g.sessions.Logout(ctx)
}

func (g *Gate) refresh(ctx context.Context) (string, error) {
	if !g.singleFlight {
		return g.doRefresh(ctx)
	}
	v, err, shared := g.group.Do("refresh", func() (any, error) {
		return g.doRefresh(ctx)
	})
	if shared {
		g.logger.DebugContext(ctx, "joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gate) doRefresh(ctx context.Context) (string, error) {
	access, err := g.backend.RefreshAccessToken(ctx)
	if err == nil && access == "" {
		err = errEmptyRefresh
	}
	if err != nil {
		observability.RecordAuthRefresh("failure")
		return "", err
	}
	g.sessions.SetAccessToken(ctx, access)
	_ = g.clock.MarkIssued(ctx)
	observability.RecordAuthRefresh("success")
	g.logger.InfoContext(ctx, "access token refreshed")
	return access, nil
}

func bearer(access string) *oauth2.Token {
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
}
