// Package middleware provides the HTTP guard chain: bearer authentication,
// permission and ownership checks, and rate limiting. Guards short-circuit
// with the standard response envelope so unauthenticated requests never
// reach a handler.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/gatehouse-labs/gatehouse"
)

// Authenticator verifies a bearer token and resolves it to an identity.
// Implemented by [gatehouse.Engine].
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*gatehouse.Identity, error)
}

type contextKey struct{}

// IdentityFromContext returns the identity attached by [RequireAuth], or nil
// when the request did not pass through it.
func IdentityFromContext(ctx context.Context) *gatehouse.Identity {
	id, _ := ctx.Value(contextKey{}).(*gatehouse.Identity)
	return id
}

// BearerToken extracts the token from an Authorization header. It returns
// the empty string when the header is missing or not a bearer scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// RequireAuth authenticates the bearer token and attaches the resulting
// identity to the request context.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				writeError(w, gatehouse.E(gatehouse.CodeUnauthorized, "Authentication required"))
				return
			}
			id, err := auth.Authenticate(r.Context(), tok)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), contextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission enforces a permission on an already-authenticated
// request. Order matters: it must run after [RequireAuth].
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gatehouse.CheckPermission(IdentityFromContext(r.Context()), permission); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership enforces that the caller owns the addressed resource,
// with the usual admin bypass. resolve maps the request to the owning user
// id; returning "" rejects non-admin callers.
func RequireOwnership(resolve func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gatehouse.CheckOwnership(IdentityFromContext(r.Context()), resolve(r)); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gatehouse.StatusOf(err))
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": gatehouse.PublicMessage(err),
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
