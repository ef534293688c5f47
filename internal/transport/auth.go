package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/blossom/internal/ledger"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// MSPHeader overrides the caller's organization when authentication is off.
const MSPHeader = "X-Blossom-MSP"

type identityKey struct{}

// IdentityResolver resolves a caller identity from a bearer token.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (ledger.Identity, error)
}

// WithIdentity returns a copy of ctx carrying caller.
func WithIdentity(ctx context.Context, caller ledger.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, caller)
}

// IdentityFromContext returns the caller identity from context, if present.
func IdentityFromContext(ctx context.Context) (ledger.Identity, bool) {
	caller, ok := ctx.Value(identityKey{}).(ledger.Identity)
	return caller, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			caller, err := resolver.ResolveIdentity(r.Context(), token)
			if err != nil || caller.MSPID == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), caller)))
		})
	}
}

// HeaderMiddleware trusts the MSPHeader, falling back to defaultMSP.
// Only for loopback use with authentication disabled. An empty defaultMSP
// leaves header-less requests without an identity.
func HeaderMiddleware(defaultMSP string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			msp := strings.TrimSpace(r.Header.Get(MSPHeader))
			if msp == "" {
				msp = defaultMSP
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ledger.Identity{MSPID: msp})))
		})
	}
}
