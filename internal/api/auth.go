package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/validation"
)

const DefaultSignUpRole = "User"

// AuthResult is the body of a successful OTP verification.
type AuthResult struct {
	Access string          `json:"access"`
	User   domain.Identity `json:"user"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,otp"`
	Role  string `json:"role,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// AuthClient talks to the account endpoints. It never attaches a bearer
// token; the only credential it carries is the cookie jar.
type AuthClient struct {
	*client
	validator *validation.Validator
}

func NewAuthClient(opts Options, v *validation.Validator) (*AuthClient, error) {
	c, err := newClient(opts, opts.Transport)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = validation.New()
	}
	return &AuthClient{client: c, validator: v}, nil
}

// SignUp asks the backend to email a sign-up OTP and returns its message.
func (c *AuthClient) SignUp(ctx context.Context, email string) (string, error) {
	return c.requestOTP(ctx, "accounts/sign-up/", "auth.signup.otp_requested", email)
}

// SignIn asks the backend to email a sign-in OTP and returns its message.
func (c *AuthClient) SignIn(ctx context.Context, email string) (string, error) {
	return c.requestOTP(ctx, "accounts/sign-in/", "auth.signin.otp_requested", email)
}

func (c *AuthClient) requestOTP(ctx context.Context, path, event, email string) (string, error) {
	req := emailRequest{Email: email}
	if err := c.validator.Struct(req); err != nil {
		return "", err
	}
	var resp messageResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: path, in: req, out: &resp, event: event}); err != nil {
		return "", err
	}
	if resp.Message == "" {
		resp.Message = "OTP sent successfully"
	}
	return resp.Message, nil
}

// VerifySignUpOTP completes sign-up. An empty role is sent as DefaultSignUpRole.
func (c *AuthClient) VerifySignUpOTP(ctx context.Context, email, otp, role string) (*AuthResult, error) {
	if role == "" {
		role = DefaultSignUpRole
	}
	return c.verify(ctx, "accounts/sign-up/verify-otp/", "auth.signup.verified", verifyRequest{Email: email, OTP: otp, Role: role})
}

func (c *AuthClient) VerifyOTP(ctx context.Context, email, otp string) (*AuthResult, error) {
	return c.verify(ctx, "accounts/verify-otp/", "auth.signin.verified", verifyRequest{Email: email, OTP: otp})
}

func (c *AuthClient) verify(ctx context.Context, path, event string, req verifyRequest) (*AuthResult, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, err
	}
	var resp AuthResult
	if err := c.do(ctx, call{method: http.MethodPost, path: path, in: req, out: &resp, event: event}); err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, &Error{Status: http.StatusOK, Message: "server response did not include an access token"}
	}
	return &resp, nil
}

var errNoAccess = errors.New("refresh response did not include an access token")

// RefreshAccessToken exchanges the ambient refresh cookie for a new access token.
func (c *AuthClient) RefreshAccessToken(ctx context.Context) (string, error) {
	var resp refreshResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "accounts/api/token/refresh/", out: &resp}); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errNoAccess
	}
	return resp.Access, nil
}

func (c *AuthClient) NotifyLogout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "accounts/logout/", in: struct{}{}, event: "auth.logout"})
}
