// Package insights implements the gateway's request orchestrator: cache
// lookup, upstream fetch on miss, and cache store, behind the auth and
// rate-limit stages handled at the HTTP layer.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/cache"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/provider"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/symbols"
)

// ErrNotFound is returned when no cached insight exists for a request ID.
var ErrNotFound = errors.New("no cached insight found")

// Store is the cache surface the orchestrator depends on.
// *cache.Manager satisfies it.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*cache.Entry, string, error)
	GetByRequestID(ctx context.Context, requestID string) (*cache.Entry, error)
	Set(ctx context.Context, fingerprint, requestID string, entry *cache.Entry, ttl time.Duration) error
}

// Fetcher is the upstream client surface the orchestrator depends on.
// *provider.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*provider.Insight, error)
}

// Result is the outcome of an insight request.
type Result struct {
	RequestID string
	Symbol    string
	Data      provider.Insight
	Cached    bool
	FetchedAt time.Time
}

// Service orchestrates insight requests against the cache and the provider.
type Service struct {
	store   Store
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the orchestrator. Cache entries written on fetch carry
// the given TTL.
func NewService(store Store, fetcher Fetcher, ttl time.Duration, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create handles a "create insight" request for a raw symbol: validate,
// look up the two-level cache by fingerprint, and on miss mint a fresh
// request ID, fetch from the provider, and store the result.
//
// A cache write failure is logged and swallowed; caching reduces cost, it
// is never required for a correct response.
func (s *Service) Create(ctx context.Context, rawSymbol string) (*Result, error) {
	symbol, err := symbols.Validate(rawSymbol)
	if err != nil {
		return nil, err
	}

	fingerprint := cache.Fingerprint(symbol)
	s.logger.Info().Str("symbol", symbol).Msg("Insight request")

	if entry, requestID, err := s.store.Get(ctx, fingerprint); err == nil {
		s.logger.Info().
			Str("symbol", symbol).
			Str("request_id", requestID).
			Msg("Returning cached insight")
		return &Result{
			RequestID: requestID,
			Symbol:    symbol,
			Data:      entry.Data,
			Cached:    true,
			FetchedAt: entry.FetchedAt,
		}, nil
	}

	requestID := uuid.New().String()

	insight, err := s.fetcher.Fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	fetchedAt := s.now()
	entry := &cache.Entry{Data: *insight, FetchedAt: fetchedAt}

	if err := s.store.Set(ctx, fingerprint, requestID, entry, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache insight")
	}

	s.logger.Info().
		Str("symbol", symbol).
		Str("request_id", requestID).
		Msg("Insight request processed")

	return &Result{
		RequestID: requestID,
		Symbol:    symbol,
		Data:      *insight,
		Cached:    false,
		FetchedAt: fetchedAt,
	}, nil
}

// GetByID retrieves a previously fetched insight directly by request ID.
// Results on this path always report Cached=true, however recently the
// record was created.
func (s *Service) GetByID(ctx context.Context, requestID string) (*Result, error) {
	entry, err := s.store.GetByRequestID(ctx, requestID)
	if err != nil {
		s.logger.Warn().Str("request_id", requestID).Msg("No cached insight for request_id")
		return nil, fmt.Errorf("%w for request_id %q", ErrNotFound, requestID)
	}

	return &Result{
		RequestID: requestID,
		Symbol:    entry.Data.Symbol,
		Data:      entry.Data,
		Cached:    true,
		FetchedAt: entry.FetchedAt,
	}, nil
}
