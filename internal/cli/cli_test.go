package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sandeepkv93/datetally/internal/api"
	"github.com/sandeepkv93/datetally/internal/app"
	"github.com/sandeepkv93/datetally/internal/backendtest"
	"github.com/sandeepkv93/datetally/internal/calendar"
	"github.com/sandeepkv93/datetally/internal/config"
	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/gate"
	"github.com/sandeepkv93/datetally/internal/service"
	"github.com/sandeepkv93/datetally/internal/validation"
)

type harness struct {
	backend   *backendtest.Backend
	v         *viper.Viper
	reportDir string
	stop      func()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	b := backendtest.New(backendtest.Options{})
	srv := b.Start()
	t.Cleanup(srv.Close)
	b.RegisterUser("alice@example.com", "User")

	h := &harness{backend: b, v: config.NewViper(), reportDir: t.TempDir(), stop: srv.Close}
	h.v.Set("api_base_url", srv.URL)
	h.v.Set("state_dir", t.TempDir())
	h.v.Set("report_dir", h.reportDir)
	h.v.Set("log_level", "error")
	return h
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&options{v: h.v, build: app.Build})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	out, err := h.run(t, backendtest.DefaultOTP+"\n", "signin", "alice@example.com")
	if err != nil {
		t.Fatalf("signin: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Enter the code:") || !strings.Contains(out, "Signed in as alice@example.com (User)") {
		t.Fatalf("unexpected signin output:\n%s", out)
	}
}

func TestSignInSetMonthExportLogout(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	out, err := h.run(t, "", "set", "2024-03-01", "3")
	if err != nil {
		t.Fatalf("set: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Saved 3 for 2024-03-01") || !strings.Contains(out, "Total: 3") {
		t.Fatalf("unexpected set output:\n%s", out)
	}

	out, err = h.run(t, "", "month", "2024-03", "--json")
	if err != nil {
		t.Fatalf("month: %v", err)
	}
	if !strings.Contains(out, `"date": "2024-03-01"`) {
		t.Fatalf("unexpected month json:\n%s", out)
	}

	out, err = h.run(t, "", "export", "2024-03")
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(h.reportDir, "March_2024_Report.pdf")); err != nil {
		t.Fatalf("expected report file: %v (output %q)", err, out)
	}

	out, err = h.run(t, "", "status")
	if err != nil || !strings.Contains(out, "Signed in as alice@example.com (User)") {
		t.Fatalf("unexpected status: %v\n%s", err, out)
	}

	if _, err := h.run(t, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	out, _ = h.run(t, "", "status")
	if !strings.Contains(out, "Not signed in.") {
		t.Fatalf("expected signed out status, got:\n%s", out)
	}
}

func TestSignInWithOTPFlagVerifiesPendingCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "signin", "alice@example.com")
	if code := ExitCode(err); code != ExitValidation {
		t.Fatalf("empty code: expected exit %d, got %d (%v)", ExitValidation, code, err)
	}

	out, err := h.run(t, "", "signin", "alice@example.com", "--otp", backendtest.DefaultOTP)
	if err != nil {
		t.Fatalf("signin: %v\n%s", err, out)
	}
	if strings.Contains(out, "Enter the code:") {
		t.Fatal("did not expect a prompt when --otp is given")
	}
	if h.backend.Calls("/accounts/sign-in/") != 1 {
		t.Fatal("expected no further OTP request with --otp")
	}
}

func TestExitCodes(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	_, err := h.run(t, "", "set", "--", "2024-03-01", "-2")
	if code := ExitCode(err); code != ExitValidation {
		t.Fatalf("negative count: expected exit %d, got %d (%v)", ExitValidation, code, err)
	}
	_, err = h.run(t, "", "month", "March")
	if code := ExitCode(err); code != ExitValidation {
		t.Fatalf("bad month: expected exit %d, got %d (%v)", ExitValidation, code, err)
	}
	_, err = h.run(t, "000000\n", "signin", "bob@example.com")
	if code := ExitCode(err); code != ExitBackend {
		t.Fatalf("unknown user: expected exit %d, got %d (%v)", ExitBackend, code, err)
	}
	if msg := ErrorMessage(err); msg != "User not found" {
		t.Fatalf("unexpected message %q", msg)
	}
	_, err = h.run(t, "", "set", "2024-03-01")
	if code := ExitCode(err); code != ExitFailure {
		t.Fatalf("usage error: expected exit %d, got %d", ExitFailure, code)
	}

	h.stop()
	_, err = h.run(t, "", "set", "2024-03-01", "1")
	if code := ExitCode(err); code != ExitTransport {
		t.Fatalf("backend down: expected exit %d, got %d (%v)", ExitTransport, code, err)
	}
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"startup", errors.New("validate config: bad"), ExitFailure},
		{"validation", &opError{err: validation.NewError("date", "bad")}, ExitValidation},
		{"backend", &opError{err: &api.Error{Status: 400, Message: "nope"}}, ExitBackend},
		{"reauth", &opError{err: fmt.Errorf("list: %w", gate.ErrReauthRequired)}, ExitReauth},
		{"transport", &opError{err: errors.New("dial tcp: refused")}, ExitTransport},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestWriteMonth(t *testing.T) {
	entries := []domain.DateEntry{{Date: "2024-03-01", Count: 2}, {Date: "2024-03-20", Count: 7}}
	view := service.MonthView{Year: 2024, Month: time.March, Entries: entries, Total: 9}
	view.Grid = calendar.Generate(2024, time.March, entries, domain.NewDay(2024, time.March, 20))

	var out bytes.Buffer
	writeMonth(&out, view)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if lines[0] != "March 2024    Total: 9" {
		t.Fatalf("unexpected title %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Sun   Mon   Tue") {
		t.Fatalf("unexpected header %q", lines[1])
	}
	if strings.TrimSpace(lines[2]) != "1     2" || strings.TrimSpace(lines[3]) != "2     0" {
		t.Fatalf("unexpected first week %q / %q", lines[2], lines[3])
	}
	if !strings.Contains(out.String(), "[20]") {
		t.Fatal("expected today marked")
	}
	// 2024-03-21 onwards is in the future and has no count shown.
	if strings.TrimSpace(lines[9]) != "0     0     0     7" {
		t.Fatalf("future days must not show counts: %q", lines[9])
	}
}
