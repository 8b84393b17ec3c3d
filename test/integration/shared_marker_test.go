package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/sandeepkv93/datetally/internal/app"
	"github.com/sandeepkv93/datetally/internal/backendtest"
	"github.com/sandeepkv93/datetally/internal/clock"
	"github.com/sandeepkv93/datetally/internal/config"
	"github.com/sandeepkv93/datetally/internal/gate"
)

const refreshPath = "/accounts/api/token/refresh/"

type env struct {
	backend  *backendtest.Backend
	redis    *miniredis.Miniredis
	cfg      *config.Config
	markerID string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	b := backendtest.New(backendtest.Options{})
	srv := b.Start()
	t.Cleanup(srv.Close)
	b.RegisterUser("alice@example.com", "User")
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		Profile:        "integration",
		APIBaseURL:     srv.URL,
		RequestTimeout: 5 * time.Second,
		AccessTTL:      5 * time.Minute,
		DebounceDelay:  10 * time.Millisecond,
		StateDir:       t.TempDir(),
		MarkerStore:    "redis",
		RedisAddr:      mr.Addr(),
		RedisPrefix:    "itest",
		ReportSink:     "file",
		ReportDir:      t.TempDir(),
		LogLevel:       "error",
		LogFormat:      "text",
	}
	return &env{backend: b, redis: mr, cfg: cfg, markerID: "itest:" + clock.MarkerKey}
}

// shell starts one client process against the shared state.
func (e *env) shell(t *testing.T) *app.App {
	t.Helper()
	a, err := app.Build(context.Background(), e.cfg)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func (e *env) signIn(t *testing.T, a *app.App) {
	t.Helper()
	ctx := context.Background()
	if _, err := a.Auth.RequestSignInOTP(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if _, err := a.Auth.VerifySignIn(ctx, "alice@example.com", backendtest.DefaultOTP); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestRefreshByOneShellRearmsMarkerForOthers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.shell(t)
	e.signIn(t, first)
	second := e.shell(t)

	if !e.redis.Exists(e.markerID) {
		t.Fatal("expected marker in redis after sign in")
	}
	e.redis.Del(e.markerID)

	if _, err := second.Dates.Month(ctx, 2024, time.March); err != nil {
		t.Fatalf("second shell month: %v", err)
	}
	if _, err := first.Dates.Month(ctx, 2024, time.March); err != nil {
		t.Fatalf("first shell month: %v", err)
	}
	if got := e.backend.Calls(refreshPath); got != 1 {
		t.Fatalf("expected the marker re-armed by one refresh to serve both shells, got %d refreshes", got)
	}
}

func TestLogoutInOneShellEndsTheOther(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.shell(t)
	e.signIn(t, first)
	second := e.shell(t)

	first.Auth.Logout(ctx)
	if e.redis.Exists(e.markerID) {
		t.Fatal("expected shared marker cleared by logout")
	}

	_, err := second.Dates.Month(ctx, 2024, time.March)
	if !errors.Is(err, gate.ErrReauthRequired) {
		t.Fatalf("expected re-authentication required, got %v", err)
	}
	if second.Sessions.IsAuthenticated() {
		t.Fatal("expected second shell signed out")
	}
}

func TestSingleFlightRefreshUnderConcurrency(t *testing.T) {
	e := newEnv(t)
	e.cfg.RefreshSingleFlight = true
	ctx := context.Background()
	a := e.shell(t)
	e.signIn(t, a)
	e.backend.SetRefreshDelay(50 * time.Millisecond)
	e.redis.Del(e.markerID)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Dates.Month(ctx, 2024, time.March); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent month: %v", err)
	}
	if got := e.backend.Calls(refreshPath); got != 1 {
		t.Fatalf("expected one shared refresh, got %d", got)
	}
}
