package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gyansetu/pulse/internal/domain/shared"
	"github.com/gyansetu/pulse/internal/infrastructure/external/directory"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier verifies a bearer credential with the directory
// service. Satisfied by the directory client.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*directory.Identity, error)
}

// TokenAuth authenticates requests against the directory service and
// injects the resolved identity into the request context.
type TokenAuth struct {
	verifier TokenVerifier
}

// NewTokenAuth creates a new bearer token authenticator.
func NewTokenAuth(verifier TokenVerifier) *TokenAuth {
	return &TokenAuth{verifier: verifier}
}

// Middleware returns an HTTP middleware that verifies the bearer token
// and stores the identity in the request context.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing_token","message":"Bearer token is required"}`, http.StatusUnauthorized)
			return
		}

		identity, err := a.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			if shared.IsUnauthorized(err) {
				http.Error(w, `{"error":"invalid_token","message":"Token was rejected"}`, http.StatusUnauthorized)
				return
			}
			http.Error(w, `{"error":"directory_unavailable","message":"Could not verify token"}`, http.StatusBadGateway)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireStaff returns a middleware that rejects non-staff identities.
// Must run after the token middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFrom(r.Context())
		if identity == nil || !identity.Role.IsStaff() {
			http.Error(w, `{"error":"forbidden","message":"Staff role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT INJECTION
// ══════════════════════════════════════════════════════════════════════════════

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ContextKeyIdentity is the context key for the verified identity.
	ContextKeyIdentity ContextKey = "identity"

	// ContextKeyRequestStart is the context key for request start time.
	ContextKeyRequestStart ContextKey = "request_start"
)

// IdentityFrom extracts the verified identity from the context, or nil.
func IdentityFrom(ctx context.Context) *directory.Identity {
	if identity, ok := ctx.Value(ContextKeyIdentity).(*directory.Identity); ok {
		return identity
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERIC MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, `{"error":"payload_too_large","message":"Request body too large"}`,
					http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// TimeoutMiddleware adds a timeout to request contexts. The websocket
// route must not be wrapped with it.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
