package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/papertrade/api/internal/api"
	"github.com/papertrade/api/internal/metrics"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/store"
)

type contextKey struct{}

var userKey contextKey

// UserFromContext returns the authenticated user set by Middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// WithUser returns a context carrying the user. Exported for tests.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Middleware validates the bearer token and resolves the user from the
// store, so revoked/deleted accounts fail even with a valid signature.
func Middleware(issuer *Issuer, st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				metrics.AuthFailures.Inc()
				api.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := issuer.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				metrics.AuthFailures.Inc()
				api.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user, err := st.GetUser(r.Context(), userID)
			if err != nil {
				metrics.AuthFailures.Inc()
				api.Error(w, http.StatusUnauthorized, "unknown user")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin gates a route group to admin users. Must run after
// Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if user.Role != model.RoleAdmin {
			api.Error(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
