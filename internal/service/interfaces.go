package service

import (
	"context"
	"time"

	"github.com/sandeepkv93/datetally/internal/api"
	"github.com/sandeepkv93/datetally/internal/domain"
)

type AuthAPI interface {
	SignUp(ctx context.Context, email string) (string, error)
	SignIn(ctx context.Context, email string) (string, error)
	VerifySignUpOTP(ctx context.Context, email, otp, role string) (*api.AuthResult, error)
	VerifyOTP(ctx context.Context, email, otp string) (*api.AuthResult, error)
}

type DatesAPI interface {
	ListDates(ctx context.Context, year int, month time.Month) ([]domain.DateEntry, error)
	AddDate(ctx context.Context, date string, count int) error
}

// SessionEnder runs the logout procedure.
type SessionEnder interface {
	Logout(ctx context.Context)
}
