// Package auth implements the bearer-token gate in front of the gateway.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/logging"
)

var authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_auth_failures_total",
	Help: "Total rejected authentication attempts by reason",
}, []string{"reason"})

// ErrUnauthenticated is returned for any failed authentication attempt.
// The wrapped message carries the specific reason for logging and the
// client-facing detail.
var ErrUnauthenticated = errors.New("unauthenticated")

// redactPrefix bounds how much of a presented token may reach the logs.
const redactPrefix = 10

// Identity is the opaque credential a caller authenticated with.
// It doubles as the rate-limit key and is never persisted.
type Identity string

// Gate verifies bearer credentials against the configured secret.
type Gate struct {
	secret string
	logger zerolog.Logger
}

// NewGate creates an authentication gate for the given shared secret.
func NewGate(secret string, logger zerolog.Logger) *Gate {
	return &Gate{secret: secret, logger: logger}
}

// Authenticate validates a raw Authorization header value.
//
// The header must consist of exactly two whitespace-separated tokens:
// the scheme "Bearer" (case-insensitive, an optional trailing colon is
// tolerated) followed by a non-empty token equal to the configured secret.
func (g *Gate) Authenticate(rawHeader string) (Identity, error) {
	if strings.TrimSpace(rawHeader) == "" {
		g.logger.Warn().Msg("Missing Authorization header")
		authFailuresTotal.WithLabelValues("missing_header").Inc()
		return "", fmt.Errorf("%w: missing Authorization header", ErrUnauthenticated)
	}

	parts := strings.Fields(rawHeader)
	if len(parts) != 2 {
		g.logger.Warn().
			Str("header", logging.Redact(rawHeader, redactPrefix)).
			Msg("Malformed Authorization header")
		authFailuresTotal.WithLabelValues("malformed").Inc()
		return "", fmt.Errorf("%w: invalid Authorization header format, expected 'Bearer <token>'", ErrUnauthenticated)
	}

	scheme, token := parts[0], parts[1]

	if !strings.EqualFold(strings.TrimSuffix(scheme, ":"), "bearer") {
		g.logger.Warn().
			Str("scheme", scheme).
			Msg("Invalid authorization scheme")
		authFailuresTotal.WithLabelValues("bad_scheme").Inc()
		return "", fmt.Errorf("%w: invalid authorization scheme, expected 'Bearer'", ErrUnauthenticated)
	}

	if token == "" {
		g.logger.Warn().Msg("Empty token in Authorization header")
		authFailuresTotal.WithLabelValues("empty_token").Inc()
		return "", fmt.Errorf("%w: empty token provided", ErrUnauthenticated)
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(g.secret)) != 1 {
		g.logger.Warn().
			Str("token", logging.Redact(token, redactPrefix)).
			Msg("Invalid token attempt")
		authFailuresTotal.WithLabelValues("wrong_token").Inc()
		return "", fmt.Errorf("%w: invalid authentication token", ErrUnauthenticated)
	}

	g.logger.Debug().Msg("Token validated successfully")
	return Identity(token), nil
}
