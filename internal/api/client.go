// Package api is the typed client for the date tally backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/datetally/internal/gate"
	"github.com/sandeepkv93/datetally/internal/observability"
)

// Options configure both clients. Jar is the ambient credential store shared
// by every request.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Jar       http.CookieJar
	Transport http.RoundTripper
	Logger    *slog.Logger
}

type client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

func newClient(opts Options, transport http.RoundTripper) (*client, error) {
	raw := opts.BaseURL
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		base: base,
		http: &http.Client{
			Transport: transport,
			Jar:       opts.Jar,
			Timeout:   opts.Timeout,
		},
		logger: logger,
	}, nil
}

func (c *client) url(path string, query url.Values) *url.URL {
	u := c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

type call struct {
	method string
	path   string
	query  url.Values
	in     any
	out    any
	event  string
}

func (c *client) do(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.in != nil {
		buf, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", cl.path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.url(cl.path, cl.query).String(), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", cl.path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, gate.ErrReauthRequired) {
			return fmt.Errorf("%s %s: %w", cl.method, cl.path, gate.ErrReauthRequired)
		}
		c.logger.WarnContext(ctx, "backend request failed", "method", cl.method, "path", cl.path, "err", err)
		return fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", cl.path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := parseError(resp.StatusCode, payload)
		c.logger.InfoContext(ctx, "backend rejected request",
			"method", cl.method,
			"path", cl.path,
			"status", resp.StatusCode,
			"request_id", req.Header.Get(RequestIDHeader),
		)
		return apiErr
	}
	if cl.event != "" {
		observability.Audit(c.logger, req, cl.event, "status", resp.StatusCode)
	}
	if cl.out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, cl.out); err != nil {
		return fmt.Errorf("decode %s response: %w", cl.path, err)
	}
	return nil
}
