// Package identity carries the caller identity asserted by the upstream auth
// gateway.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/ashureev/veltrix/internal/domain"
)

const (
	UserIDHeader = "X-User-ID"
	RoleHeader   = "X-User-Role"

	// Query fallbacks, honoured only when the middleware allows them. Browsers
	// cannot set headers on a WebSocket upgrade.
	UserIDQueryParam = "user_id"
	RoleQueryParam   = "role"
)

type contextKey int

const (
	userIDKey contextKey = iota
	roleKey
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext extracts the caller role, defaulting to customer.
func RoleFromContext(ctx context.Context) domain.Role {
	if v, ok := ctx.Value(roleKey).(domain.Role); ok {
		return v
	}
	return domain.RoleCustomer
}

// WithIdentity returns ctx carrying userID and role.
func WithIdentity(ctx context.Context, userID string, role domain.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// ValidUserID reports whether id is an acceptable opaque user identifier.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func fromRequest(r *http.Request, allowQuery bool) (string, domain.Role) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	role := r.Header.Get(RoleHeader)
	if userID == "" && allowQuery {
		q := r.URL.Query()
		userID = strings.TrimSpace(q.Get(UserIDQueryParam))
		role = q.Get(RoleQueryParam)
	}
	return userID, domain.ParseRole(strings.ToLower(strings.TrimSpace(role)))
}

// Middleware rejects requests without a valid gateway identity and injects
// it into the request context. allowQuery enables the query-string fallback
// for local development.
func Middleware(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, role := fromRequest(r, allowQuery)
			if !ValidUserID(userID) {
				http.Error(w, `{"success":false,"message":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, role)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
