package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/auth"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/logging"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/ratelimit"
)

type contextKey string

// identityKey is the context key for the authenticated identity.
const identityKey contextKey = "identity"

// logEntryKey is the context key for the per-request log entry.
const logEntryKey contextKey = "logEntry"

// logEntry is mutable per-request state shared between the logging
// middleware and stages deeper in the chain. Context values only flow
// downstream, so the auth stage reports the identity back through this
// pointer rather than through a derived context the logger never sees.
type logEntry struct {
	identity auth.Identity
}

// GetIdentity extracts the authenticated identity from the context.
func GetIdentity(ctx context.Context) auth.Identity {
	if v, ok := ctx.Value(identityKey).(auth.Identity); ok {
		return v
	}
	return ""
}

// AuthMiddleware authenticates the bearer credential and stores the
// identity in the request context. Failures short-circuit with 401 and a
// WWW-Authenticate challenge before any downstream stage runs.
func AuthMiddleware(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := gate.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, unauthenticatedDetail(err))
				return
			}

			ctx := r.Context()
			if entry, ok := ctx.Value(logEntryKey).(*logEntry); ok {
				entry.identity = identity
			}

			ctx = context.WithValue(ctx, identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware enforces the sliding-window limit per authenticated
// identity. Limit and window are passed explicitly so the rejection detail
// can state them; they must match the limiter's construction.
func RateLimitMiddleware(limiter *ratelimit.Limiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())

			decision := limiter.Allow(string(identity))
			if !decision.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests,
					fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %d seconds.",
						limit, int(window.Seconds())))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs each request with the identity redacted.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			entry := &logEntry{}
			ctx := context.WithValue(r.Context(), logEntryKey, entry)

			next.ServeHTTP(rw, r.WithContext(ctx))

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Dur("duration", time.Since(start)).
				Str("identity", logging.Redact(string(entry.identity), 10)).
				Msg("http request")
		})
	}
}

// RecoverMiddleware converts panics into generic 500 responses without
// leaking internals.
func RecoverMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Msg("panic recovered")
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
