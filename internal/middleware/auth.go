package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tphummel/lab_inventory/internal/models"
)

// TokenVerifier resolves a bearer token to the session it was issued for.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*models.Session, error)
}

type sessionKey struct{}

// SessionFrom returns the session attached by Auth, if any.
func SessionFrom(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*models.Session)
	return s, ok
}

// WithSession attaches s to ctx the way Auth does.
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}

// Auth returns a handler that requires a valid Bearer token before
// delegating to next. Responds with 401 if the header is missing, malformed,
// unknown or expired.
func Auth(v TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(w)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || strings.TrimSpace(token) != token {
			unauthorized(w)
			return
		}
		s, err := v.VerifyAccessToken(token)
		if err != nil || s == nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
