package backendtest

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandeepkv93/datetally/internal/security"
)

type contextKey string

const claimsContextKey contextKey = "claims"

func (b *Backend) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ""
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			raw = strings.TrimSpace(auth[7:])
		}
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		claims, err := b.signer.ParseAccessToken(raw)
		if err != nil || b.revoked(claims.ID) {
			writeError(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*security.Claims)
	return c, ok
}
