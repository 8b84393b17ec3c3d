package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/datetally/internal/backendtest"
	"github.com/sandeepkv93/datetally/internal/clock"
	"github.com/sandeepkv93/datetally/internal/config"
	"github.com/sandeepkv93/datetally/internal/entrycache"
)

func testConfig(t *testing.T, baseURL, stateDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Profile:         "test",
		APIBaseURL:      baseURL,
		RequestTimeout:  5 * time.Second,
		AccessTTL:       5 * time.Minute,
		DebounceDelay:   10 * time.Millisecond,
		StateDir:        stateDir,
		MarkerStore:     "file",
		ReportSink:      "file",
		ReportDir:       t.TempDir(),
		LogLevel:        "error",
		LogFormat:       "text",
		OTELServiceName: "datetally-test",
	}
}

func build(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewAssignsDependencies(t *testing.T) {
	cfg := &config.Config{Profile: "test"}
	a := New(cfg, nil, nil, nil, nil, nil)
	if a.Config != cfg {
		t.Fatal("expected config assigned")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close without cleanup: %v", err)
	}
	var nilApp *App
	if err := nilApp.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	b := backendtest.New(backendtest.Options{})
	srv := b.Start()
	defer srv.Close()
	b.RegisterUser("alice@example.com", "User")
	stateDir := t.TempDir()
	cfg := testConfig(t, srv.URL, stateDir)
	ctx := context.Background()

	first := build(t, cfg)
	if _, err := first.Auth.RequestSignInOTP(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if _, err := first.Auth.VerifySignIn(ctx, "alice@example.com", backendtest.DefaultOTP); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := first.Dates.Set(ctx, time.Now().Format("2006-01-02"), 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = first.Close()

	second := build(t, cfg)
	if !second.Sessions.IsAuthenticated() {
		t.Fatal("expected session restored from state dir")
	}
	now := time.Now()
	view, err := second.Dates.Month(ctx, now.Year(), now.Month())
	if err != nil || view.Total != 4 {
		t.Fatalf("expected restored session to read total 4, got %d err=%v", view.Total, err)
	}

	second.Auth.Logout(ctx)
	if _, err := os.Stat(filepath.Join(stateDir, "cookies.json")); !os.IsNotExist(err) {
		t.Fatalf("expected cookie file removed on logout, stat err=%v", err)
	}
	third := build(t, cfg)
	if third.Sessions.IsAuthenticated() {
		t.Fatal("expected anonymous session after logout")
	}
}

func TestExpiredMarkerRefreshesThroughSavedCookie(t *testing.T) {
	b := backendtest.New(backendtest.Options{})
	srv := b.Start()
	defer srv.Close()
	b.RegisterUser("alice@example.com", "User")
	stateDir := t.TempDir()
	cfg := testConfig(t, srv.URL, stateDir)
	ctx := context.Background()

	first := build(t, cfg)
	_, _ = first.Auth.RequestSignInOTP(ctx, "alice@example.com")
	if _, err := first.Auth.VerifySignIn(ctx, "alice@example.com", backendtest.DefaultOTP); err != nil {
		t.Fatalf("verify: %v", err)
	}
	_ = first.Close()

	if err := clock.NewFileMarkerStore(stateDir).Clear(ctx); err != nil {
		t.Fatalf("clear marker: %v", err)
	}
	second := build(t, cfg)
	now := time.Now()
	if _, err := second.Dates.Month(ctx, now.Year(), now.Month()); err != nil {
		t.Fatalf("expected refresh to succeed, got %v", err)
	}
	if b.Calls("/accounts/api/token/refresh/") != 1 {
		t.Fatalf("expected one refresh, got %d", b.Calls("/accounts/api/token/refresh/"))
	}
}

func TestSealedStateHidesTokens(t *testing.T) {
	b := backendtest.New(backendtest.Options{})
	srv := b.Start()
	defer srv.Close()
	b.RegisterUser("alice@example.com", "User")
	stateDir := t.TempDir()
	cfg := testConfig(t, srv.URL, stateDir)
	cfg.StateKey = "correct horse battery staple"
	ctx := context.Background()

	a := build(t, cfg)
	_, _ = a.Auth.RequestSignInOTP(ctx, "alice@example.com")
	if _, err := a.Auth.VerifySignIn(ctx, "alice@example.com", backendtest.DefaultOTP); err != nil {
		t.Fatalf("verify: %v", err)
	}
	token := a.Sessions.AccessToken()
	for _, name := range []string{"session.json", "cookies.json"} {
		raw, err := os.ReadFile(filepath.Join(stateDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if strings.Contains(string(raw), token) || strings.Contains(string(raw), "refresh_token") {
			t.Fatalf("%s holds plaintext credentials", name)
		}
	}
}

func TestProvideMarkerStore(t *testing.T) {
	for _, tc := range []struct {
		kind    string
		wantErr bool
	}{
		{"memory", false},
		{"file", false},
		{"redis", false},
		{"etcd", true},
	} {
		cfg := &config.Config{MarkerStore: tc.kind, StateDir: t.TempDir(), RedisAddr: "127.0.0.1:0"}
		store, cleanup, err := provideMarkerStore(cfg)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: unexpected err %v", tc.kind, err)
		}
		if err == nil {
			if store == nil {
				t.Fatalf("%s: nil store", tc.kind)
			}
			cleanup()
		}
	}
}

func TestProvideEntryCacheDefaultsToNop(t *testing.T) {
	cache, cleanup, err := provideEntryCache(&config.Config{}, nil)
	if err != nil {
		t.Fatalf("provide cache: %v", err)
	}
	defer cleanup()
	if _, ok := cache.(entrycache.Nop); !ok {
		t.Fatalf("expected nop cache, got %T", cache)
	}
}
