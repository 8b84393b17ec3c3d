package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the subset of the backend's access-token claims the client reads.
type Claims struct {
	TokenType string `json:"token_type"`
	UserID    any    `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var ErrMalformedToken = errors.New("malformed access token")

// InspectAccessToken decodes an access token without verifying its signature.
// The client cannot verify backend tokens; the result is for display only.
func InspectAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// TokenSigner mints HS256 access tokens shaped like the backend's. It backs
// the in-process backend double.
type TokenSigner struct {
	issuer string
	secret []byte
}

func NewTokenSigner(issuer, secret string) *TokenSigner {
	return &TokenSigner{issuer: issuer, secret: []byte(secret)}
}

func (s *TokenSigner) SignAccessToken(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: "access",
		UserID:    subject,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenSigner) ParseAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != "access" {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}
