package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/datetally/internal/api"
	"github.com/sandeepkv93/datetally/internal/clock"
	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/entrycache"
	"github.com/sandeepkv93/datetally/internal/observability"
	"github.com/sandeepkv93/datetally/internal/security"
	"github.com/sandeepkv93/datetally/internal/session"
)

type AuthService struct {
	api      AuthAPI
	sessions *session.Store
	clock    *clock.Clock
	ender    SessionEnder
	cache    entrycache.Cache
	logger   *slog.Logger
}

func NewAuthService(authAPI AuthAPI, sessions *session.Store, clk *clock.Clock, ender SessionEnder, cache entrycache.Cache, logger *slog.Logger) *AuthService {
	if cache == nil {
		cache = entrycache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{api: authAPI, sessions: sessions, clock: clk, ender: ender, cache: cache, logger: logger}
}

func (s *AuthService) RequestSignUpOTP(ctx context.Context, email string) (string, error) {
	return s.api.SignUp(ctx, normalizeEmail(email))
}

// RequestSignInOTP asks for a sign-in code. A successful request also arms
// the expiry marker.
func (s *AuthService) RequestSignInOTP(ctx context.Context, email string) (string, error) {
	msg, err := s.api.SignIn(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if err := s.clock.MarkIssued(ctx); err != nil {
		s.logger.WarnContext(ctx, "could not set expiry marker", "err", err)
	}
	return msg, nil
}

func (s *AuthService) VerifySignUp(ctx context.Context, email, otp, role string) (domain.Identity, error) {
	res, err := s.api.VerifySignUpOTP(ctx, normalizeEmail(email), strings.TrimSpace(otp), role)
	return s.establish(ctx, "signup", res, err)
}

func (s *AuthService) VerifySignIn(ctx context.Context, email, otp string) (domain.Identity, error) {
	res, err := s.api.VerifyOTP(ctx, normalizeEmail(email), strings.TrimSpace(otp))
	return s.establish(ctx, "signin", res, err)
}

func (s *AuthService) establish(ctx context.Context, flow string, res *api.AuthResult, err error) (domain.Identity, error) {
	if err != nil {
		observability.RecordAuthLogin(flow, api.Classify(err))
		return domain.Identity{}, err
	}
	s.sessions.SetUser(ctx, res.User, res.Access)
	if err := s.clock.MarkIssued(ctx); err != nil {
		s.logger.WarnContext(ctx, "could not set expiry marker", "err", err)
	}
	observability.RecordAuthLogin(flow, "success")
	s.logger.InfoContext(ctx, "signed in", "flow", flow, "username", res.User.Username, "role", res.User.Role)
	return res.User, nil
}

// Logout ends the session and drops cached months for the signed-in user.
func (s *AuthService) Logout(ctx context.Context) {
	snap := s.sessions.Snapshot()
	s.ender.Logout(ctx)
	if snap.Identity != nil {
		if err := s.cache.Forget(ctx, snap.Identity.Email); err != nil {
			s.logger.WarnContext(ctx, "could not clear cached months", "err", err)
		}
	}
}

type Status struct {
	Authenticated bool
	Identity      *domain.Identity
	Admin         bool
	ExpiresAt     time.Time
	HasMarker     bool
	Expired       bool
	// Claims are read from the access token without verification.
	Claims *security.Claims
}

func (s *AuthService) Status(ctx context.Context) Status {
	snap := s.sessions.Snapshot()
	st := Status{
		Authenticated: !snap.Anonymous(),
		Identity:      snap.Identity,
		Admin:         snap.IsAdmin(),
		Expired:       s.clock.IsExpired(ctx),
	}
	st.ExpiresAt, st.HasMarker = s.clock.ExpiresAt(ctx)
	if snap.AccessToken != "" {
		if claims, err := security.InspectAccessToken(snap.AccessToken); err == nil {
			st.Claims = claims
		}
	}
	return st
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
