package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/sandeepkv93/datetally/internal/security"
)

const CookieFile = "cookies.json"

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (c storedCookie) key() string {
	return c.Domain + ";" + c.Path + ";" + c.Name
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// PersistentJar is a cookie jar that mirrors the cookies the backend sets
// into a file, each with its own path and expiry, so the refresh cookie
// survives restarts. With an empty path it is memory only.
type PersistentJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	path    string
	site    *url.URL
	records map[string]storedCookie
	sealer  *security.Sealer
	logger  *slog.Logger
}

func NewPersistentJar(dir, baseURL string, sealer *security.Sealer, logger *slog.Logger) (*PersistentJar, error) {
	site, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	site = &url.URL{Scheme: site.Scheme, Host: site.Host, Path: "/"}
	if logger == nil {
		logger = slog.Default()
	}
	j := &PersistentJar{site: site, sealer: sealer, logger: logger}
	if dir != "" {
		j.path = filepath.Join(dir, CookieFile)
	}
	if err := j.reset(); err != nil {
		return nil, err
	}
	if err := j.load(); err != nil {
		logger.Warn("ignoring unreadable cookie file", "path", j.path, "err", err)
	}
	return j, nil
}

func (j *PersistentJar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	j.jar = jar
	j.records = make(map[string]storedCookie)
	return nil
}

func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	if !strings.EqualFold(u.Host, j.site.Host) {
		return
	}
	now := time.Now()
	for _, c := range cookies {
		j.record(u, c, now)
	}
	if err := j.saveLocked(); err != nil {
		j.logger.Warn("cookie persist failed", "path", j.path, "err", err)
	}
}

// record applies one Set-Cookie to the mirror using the same path and
// expiry rules as the jar (RFC 6265 section 5.3).
func (j *PersistentJar) record(u *url.URL, c *http.Cookie, now time.Time) {
	rec := storedCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	if rec.Path == "" || rec.Path[0] != '/' {
		rec.Path = defaultCookiePath(u.Path)
	}
	switch {
	case c.MaxAge < 0:
		rec.Expires = now
	case c.MaxAge > 0:
		rec.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		rec.Expires = c.Expires
	}
	if rec.expired(now) {
		delete(j.records, rec.key())
		return
	}
	j.records[rec.key()] = rec
}

func defaultCookiePath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}

func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie and removes the file.
func (j *PersistentJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.reset(); err != nil {
		return err
	}
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (j *PersistentJar) load() error {
	if j.path == "" {
		return nil
	}
	raw, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if j.sealer.Enabled() {
		if raw, err = j.sealer.Open(raw); err != nil {
			return err
		}
	}
	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return err
	}
	now := time.Now()
	for _, c := range stored {
		if c.Name == "" || c.expired(now) {
			continue
		}
		if c.Path == "" {
			c.Path = "/"
		}
		origin := &url.URL{Scheme: j.site.Scheme, Host: j.site.Host, Path: c.Path}
		j.jar.SetCookies(origin, []*http.Cookie{{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}})
		j.records[c.key()] = c
	}
	return nil
}

func (j *PersistentJar) saveLocked() error {
	if j.path == "" {
		return nil
	}
	now := time.Now()
	stored := make([]storedCookie, 0, len(j.records))
	for k, c := range j.records {
		if c.expired(now) {
			delete(j.records, k)
			continue
		}
		stored = append(stored, c)
	}
	sort.Slice(stored, func(a, b int) bool { return stored[a].key() < stored[b].key() })
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	if j.sealer.Enabled() {
		if raw, err = j.sealer.Seal(raw); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}
