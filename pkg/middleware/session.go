package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/logger"
)

// SessionHeader names the browser session a cart belongs to.
const SessionHeader = "X-Session-ID"

const maxSessionIDLen = 128

type sessionKey struct{}

// Session resolves the caller's session ID from SessionHeader. A missing or
// malformed ID is replaced with a fresh UUID. The ID in use is always echoed
// back in the response header.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if !ValidSessionID(id) {
				id = uuid.NewString()
			}

			w.Header().Set(SessionHeader, id)

			ctx := context.WithValue(r.Context(), sessionKey{}, id)
			ctx = logger.WithSessionID(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext returns the ID set by Session, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// ValidSessionID reports whether id may be used as a session key: 1 to 128
// characters drawn from letters, digits, '-' and '_'.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
