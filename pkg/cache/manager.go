package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested entry was not found. Backend
	// failures on the read path are reported as misses too, so callers
	// never have to distinguish an outage from an absent key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles two-level caching operations with a Redis backend.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a cache manager with a Redis backend.
func NewManager(redisClient *redis.Client, logger zerolog.Logger) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient, logger: logger}
}

// Get retrieves an entry by query fingerprint, resolving the alias record
// to the payload record. Returns the entry and the request ID it is stored
// under, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, fingerprint string) (*Entry, string, error) {
	requestID, err := m.redis.Get(ctx, queryKey(fingerprint)).Result()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			m.logger.Debug().Str("fingerprint", fingerprint).Msg("Cache miss")
		} else {
			CacheErrors.WithLabelValues("get").Inc()
			m.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache get degraded to miss")
		}
		return nil, "", ErrCacheMiss
	}

	entry, err := m.getPayload(ctx, requestID, "query")
	if err != nil {
		return nil, "", err
	}

	CacheHits.WithLabelValues("query").Inc()
	return entry, requestID, nil
}

// GetByRequestID retrieves a payload entry directly by request ID,
// independent of the alias record's own expiry.
func (m *Manager) GetByRequestID(ctx context.Context, requestID string) (*Entry, error) {
	entry, err := m.getPayload(ctx, requestID, "request_id")
	if err != nil {
		return nil, err
	}

	CacheHits.WithLabelValues("request_id").Inc()
	return entry, nil
}

// getPayload reads and decodes a payload record. The originating lookup
// path labels the error and miss accounting; hits are counted by the
// callers so each lookup records exactly one hit under its own path.
func (m *Manager) getPayload(ctx context.Context, requestID, path string) (*Entry, error) {
	data, err := m.redis.Get(ctx, resultKey(requestID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			m.logger.Debug().
				Str("request_id", requestID).
				Str("path", path).
				Msg("Cache miss on payload record")
		} else {
			CacheErrors.WithLabelValues("get_" + path).Inc()
			m.logger.Warn().Err(err).
				Str("request_id", requestID).
				Str("path", path).
				Msg("Cache get degraded to miss")
		}
		return nil, ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get_" + path).Inc()
		m.logger.Error().Err(err).Str("request_id", requestID).Msg("Corrupt cache entry")
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Set stores an entry under both levels: the payload record first, then
// the alias record, each with its own TTL countdown starting at write time.
// The two writes are not atomic; a failure or crash between them leaves an
// orphan payload reachable only by request ID.
func (m *Manager) Set(ctx context.Context, fingerprint, requestID string, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, resultKey(requestID), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		m.logger.Warn().Err(err).Str("request_id", requestID).Msg("Cache set skipped")
		return fmt.Errorf("redis set payload: %w", err)
	}

	if err := m.redis.Set(ctx, queryKey(fingerprint), requestID, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		m.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache alias write failed, payload reachable by id only")
		return fmt.Errorf("redis set alias: %w", err)
	}

	m.logger.Debug().
		Str("fingerprint", fingerprint).
		Str("request_id", requestID).
		Dur("ttl", ttl).
		Msg("Cache set")

	return nil
}

// Delete removes the alias record for a fingerprint and the payload record
// it points to.
func (m *Manager) Delete(ctx context.Context, fingerprint string) error {
	requestID, err := m.redis.Get(ctx, queryKey(fingerprint)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		CacheErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache delete failed")
		return fmt.Errorf("redis get alias: %w", err)
	}

	if err := m.redis.Del(ctx, queryKey(fingerprint), resultKey(requestID)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache delete failed")
		return fmt.Errorf("redis del: %w", err)
	}

	m.logger.Debug().Str("fingerprint", fingerprint).Msg("Cache deleted")
	return nil
}

// Clear removes every alias and payload key this cache manages and returns
// the number of keys deleted. Keys outside the gateway's prefixes are
// never touched.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	deleted := 0

	for _, pattern := range []string{queryKeyPrefix + "*", resultKeyPrefix + "*"} {
		iter := m.redis.Scan(ctx, 0, pattern, 0).Iterator()
		var keys []string
		for iter.Next(ctx) {
			if key := iter.Val(); isManagedKey(key) {
				keys = append(keys, key)
			}
		}
		if err := iter.Err(); err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			m.logger.Warn().Err(err).Msg("Cache clear scan failed")
			return deleted, fmt.Errorf("redis scan: %w", err)
		}

		if len(keys) == 0 {
			continue
		}
		count, err := m.redis.Del(ctx, keys...).Result()
		if err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			m.logger.Warn().Err(err).Msg("Cache clear delete failed")
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += int(count)
	}

	CacheClearedKeys.Add(float64(deleted))
	m.logger.Info().Int("keys", deleted).Msg("Cache cleared")
	return deleted, nil
}

// HealthCheck reports whether the Redis backend is reachable.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		m.logger.Warn().Err(err).Msg("Cache backend unreachable")
		return false
	}
	return true
}
