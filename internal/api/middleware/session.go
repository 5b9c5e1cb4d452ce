package middleware

import (
	"context"
	"net/http"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
)

type sessionContextKey struct{}

// Sessions loads the request's session and attaches it to the context.
// Nothing is written to the store here; handlers commit through the Manager.
func Sessions(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := manager.Load(r)
			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the request's session.
// Outside the Sessions middleware it returns a fresh anonymous session.
func SessionFromContext(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(sessionContextKey{}).(*session.Session); ok && sess != nil {
		return sess
	}
	return &session.Session{}
}

// IdentityFromContext returns the authenticated identity, or nil
func IdentityFromContext(ctx context.Context) *session.Identity {
	return SessionFromContext(ctx).Identity
}
