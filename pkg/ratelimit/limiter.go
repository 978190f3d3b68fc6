// Package ratelimit implements per-identity sliding-window admission control.
//
// Each identity carries an ordered list of recent admission timestamps.
// An admission is granted only while the number of timestamps inside the
// trailing window is below the configured limit; rejected requests are not
// recorded. All read-modify-write access to the window state is serialized,
// so two concurrent admissions can never both claim the last remaining slot.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/logging"
)

var (
	admissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limit_admissions_total",
		Help: "Total requests admitted by the sliding-window limiter",
	})

	rejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limit_rejections_total",
		Help: "Total requests rejected by the sliding-window limiter",
	})

	trackedIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_rate_limit_tracked_identities",
		Help: "Number of identities with at least one admission in the current window",
	})
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the number of admissions left in the current window.
	Remaining int

	// RetryAfter is how long a rejected caller should wait before retrying.
	// Always the full window length.
	RetryAfter time.Duration
}

// Limiter is a sliding-window rate limiter keyed by identity.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	windows map[string][]time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for simulated-clock tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter admitting at most limit requests per
// identity within the trailing window.
func NewLimiter(limit int, window time.Duration, logger zerolog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		logger:  logger,
		windows: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks whether the identity may be admitted right now, recording
// the admission when it is.
func (l *Limiter) Allow(identity string) Decision {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.prune(identity, cutoff)
	count := len(timestamps)

	if count >= l.limit {
		rejectionsTotal.Inc()
		l.logger.Warn().
			Str("identity", logging.Redact(identity, 10)).
			Int("count", count).
			Int("limit", l.limit).
			Msg("Rate limit exceeded")
		return Decision{Allowed: false, Remaining: 0, RetryAfter: l.window}
	}

	l.windows[identity] = append(timestamps, now)
	admissionsTotal.Inc()
	trackedIdentities.Set(float64(len(l.windows)))

	l.logger.Debug().
		Str("identity", logging.Redact(identity, 10)).
		Int("count", count+1).
		Int("limit", l.limit).
		Msg("Rate limit check passed")

	return Decision{Allowed: true, Remaining: l.limit - count - 1, RetryAfter: 0}
}

// Len reports the number of admissions currently inside the window for
// the identity.
func (l *Limiter) Len(identity string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.prune(identity, now.Add(-l.window)))
}

// prune drops timestamps at or before the cutoff and returns what remains.
// Identities whose window empties are removed entirely so the map does not
// grow unbounded. Caller must hold l.mu.
func (l *Limiter) prune(identity string, cutoff time.Time) []time.Time {
	timestamps := l.windows[identity]

	// Timestamps are appended in order, so find the first one still inside
	// the window and slice from there.
	keep := 0
	for keep < len(timestamps) && !timestamps[keep].After(cutoff) {
		keep++
	}

	if keep == len(timestamps) {
		delete(l.windows, identity)
		return nil
	}
	if keep > 0 {
		timestamps = append([]time.Time(nil), timestamps[keep:]...)
		l.windows[identity] = timestamps
	}
	return timestamps
}
