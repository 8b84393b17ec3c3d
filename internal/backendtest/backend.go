// Package backendtest is an in-process double of the date tally backend. It
// serves the account and dates endpoints over a chi router so clients can be
// tested end to end with httptest.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/security"
)

const (
	RefreshCookieName = "refresh_token"
	DefaultOTP        = "123456"
)

type Options struct {
	// OTP is the code every issued OTP is set to. Defaults to DefaultOTP.
	OTP string
	// AccessTTL bounds the lifetime of minted access tokens server side.
	AccessTTL time.Duration
}

type user struct {
	identity domain.Identity
	entries  map[string]int
}

type Backend struct {
	signer    *security.TokenSigner
	otp       string
	accessTTL time.Duration

	mu             sync.Mutex
	users          map[string]*user
	pendingOTP     map[string]string
	refreshTokens  map[string]string
	mintedAccess   []string
	revokedAccess  map[string]bool
	calls          map[string]int
	failRefresh    bool
	failLogout     bool
	failAddDate    bool
	refreshDelay   time.Duration
	lastRequestIDs []string
}

func New(opts Options) *Backend {
	if opts.OTP == "" {
		opts.OTP = DefaultOTP
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	return &Backend{
		signer:        security.NewTokenSigner("backendtest", uuid.NewString()),
		otp:           opts.OTP,
		accessTTL:     opts.AccessTTL,
		users:         map[string]*user{},
		pendingOTP:    map[string]string{},
		refreshTokens: map[string]string{},
		revokedAccess: map[string]bool{},
		calls:         map[string]int{},
	}
}

// Start serves the backend on a loopback listener until the returned server is closed.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b.Router())
}

func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(b.countCalls)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/sign-up/", b.signUp)
		r.Post("/sign-up/verify-otp/", b.verifySignUp)
		r.Post("/sign-in/", b.signIn)
		r.Post("/verify-otp/", b.verifySignIn)
		r.Post("/api/token/refresh/", b.refresh)
		r.Post("/logout/", b.logout)
	})
	r.Route("/dates", func(r chi.Router) {
		r.Use(b.requireBearer)
		r.Get("/stored/", b.listDates)
		r.Post("/add-date/", b.addDate)
	})
	return r
}

func (b *Backend) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.lastRequestIDs = append(b.lastRequestIDs, r.Header.Get("X-Request-Id"))
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Calls reports how many requests hit path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lastRequestIDs...)
}

func (b *Backend) SetFailRefresh(fail bool) {
	b.mu.Lock()
	b.failRefresh = fail
	b.mu.Unlock()
}

func (b *Backend) SetFailLogout(fail bool) {
	b.mu.Lock()
	b.failLogout = fail
	b.mu.Unlock()
}

func (b *Backend) SetFailAddDate(fail bool) {
	b.mu.Lock()
	b.failAddDate = fail
	b.mu.Unlock()
}

// SetRefreshDelay holds every refresh response for d.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	b.refreshDelay = d
	b.mu.Unlock()
}

// RegisterUser creates an active account without going through the OTP flow.
func (b *Backend) RegisterUser(email, role string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[strings.ToLower(email)] = &user{
		identity: domain.Identity{Email: email, Username: usernameOf(email), Role: role, IsActive: true},
		entries:  map[string]int{},
	}
}

// Entries returns a copy of the stored counts for email.
func (b *Backend) Entries(email string) map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]int{}
	if u, ok := b.users[strings.ToLower(email)]; ok {
		for k, v := range u.entries {
			out[k] = v
		}
	}
	return out
}

// RevokeAccessTokens makes every access token minted so far fail validation.
func (b *Backend) RevokeAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, jti := range b.mintedAccess {
		b.revokedAccess[jti] = true
	}
}

func (b *Backend) revoked(jti string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revokedAccess[jti]
}

func (b *Backend) mint(subject, role string) (string, error) {
	access, err := b.signer.SignAccessToken(subject, role, b.accessTTL)
	if err != nil {
		return "", err
	}
	claims, err := b.signer.ParseAccessToken(access)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.mintedAccess = append(b.mintedAccess, claims.ID)
	b.mu.Unlock()
	return access, nil
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Role  string `json:"role,omitempty"`
}

type userBody struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
	Role     string `json:"role"`
}

type authBody struct {
	Access string   `json:"access"`
	User   userBody `json:"user"`
}

func (b *Backend) signUp(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	key := strings.ToLower(req.Email)
	b.mu.Lock()
	_, exists := b.users[key]
	if !exists {
		b.pendingOTP[key] = b.otp
	}
	b.mu.Unlock()
	if exists {
		writeError(w, http.StatusBadRequest, "User with this email already exists")
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "OTP sent to your email"})
}

func (b *Backend) signIn(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	key := strings.ToLower(req.Email)
	b.mu.Lock()
	_, exists := b.users[key]
	if exists {
		b.pendingOTP[key] = b.otp
	}
	b.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "OTP sent to your email"})
}

func (b *Backend) verifySignUp(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	key := strings.ToLower(req.Email)
	b.mu.Lock()
	if !b.consumeOTPLocked(key, req.OTP) {
		b.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	role := req.Role
	if role == "" {
		role = "User"
	}
	u := &user{
		identity: domain.Identity{Email: req.Email, Username: usernameOf(req.Email), Role: role, IsActive: true},
		entries:  map[string]int{},
	}
	b.users[key] = u
	b.mu.Unlock()
	b.issueSession(w, key, u.identity)
}

func (b *Backend) verifySignIn(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	key := strings.ToLower(req.Email)
	b.mu.Lock()
	u, exists := b.users[key]
	if !exists || !b.consumeOTPLocked(key, req.OTP) {
		b.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	identity := u.identity
	b.mu.Unlock()
	b.issueSession(w, key, identity)
}

func (b *Backend) consumeOTPLocked(key, otp string) bool {
	want, ok := b.pendingOTP[key]
	if !ok || want != otp {
		return false
	}
	delete(b.pendingOTP, key)
	return true
}

func (b *Backend) issueSession(w http.ResponseWriter, key string, identity domain.Identity) {
	access, err := b.mint(key, identity.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	refresh := uuid.NewString()
	b.mu.Lock()
	b.refreshTokens[refresh] = key
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, authBody{
		Access: access,
		User: userBody{
			Email:    identity.Email,
			Username: identity.Username,
			IsActive: identity.IsActive,
			Role:     identity.Role,
		},
	})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	fail, delay := b.failRefresh, b.refreshDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		writeError(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}
	b.mu.Lock()
	key, ok := b.refreshTokens[c.Value]
	var identity domain.Identity
	if ok {
		identity = b.users[key].identity
	}
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	access, err := b.mint(key, identity.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	fail := b.failLogout
	if c, err := r.Cookie(RefreshCookieName); err == nil && !fail {
		delete(b.refreshTokens, c.Value)
	}
	b.mu.Unlock()
	if fail {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, messageBody{Message: "Logged out successfully"})
}

func (b *Backend) listDates(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	month, errM := strconv.Atoi(r.URL.Query().Get("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "year and month are required")
		return
	}
	prefix := domain.NewDay(year, time.Month(month), 1).String()[:8]

	b.mu.Lock()
	out := []domain.DateEntry{}
	if u, ok := b.users[claims.Subject]; ok {
		for date, count := range u.entries {
			if strings.HasPrefix(date, prefix) {
				out = append(out, domain.DateEntry{Date: date, Count: count})
			}
		}
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) addDate(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req domain.DateEntry
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := domain.ParseDay(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "Date has wrong format. Use YYYY-MM-DD.")
		return
	}
	if req.Count < 0 {
		writeError(w, http.StatusBadRequest, "Count must be non-negative")
		return
	}
	b.mu.Lock()
	fail := b.failAddDate
	if !fail {
		if u, ok := b.users[claims.Subject]; ok {
			u.entries[req.Date] = req.Count
		}
	}
	b.mu.Unlock()
	if fail {
		writeError(w, http.StatusInternalServerError, "Could not save entry")
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func usernameOf(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
