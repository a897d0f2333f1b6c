package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
	"github.com/wonny/finfetch/pkg/redis"
)

// CachedSource caches another source's per-symbol results in redis
// ⭐ SSOT: 수집 결과 캐시는 여기서만 (키: source/symbol/기간)
// 캐시 오류는 미스로 취급하고 원본 소스로 진행
type CachedSource struct {
	inner  contracts.Source
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedSource wraps inner with a redis cache
func NewCachedSource(inner contracts.Source, cache *redis.Cache, log *logger.Logger) *CachedSource {
	return &CachedSource{
		inner:  inner,
		cache:  cache,
		ttl:    redis.TTLDaily,
		logger: log.WithField("source", inner.Name()),
	}
}

// WithTTL overrides the cache TTL
func (s *CachedSource) WithTTL(ttl time.Duration) *CachedSource {
	s.ttl = ttl
	return s
}

// Name returns the wrapped source's name
func (s *CachedSource) Name() string {
	return s.inner.Name()
}

// Enabled reports whether the wrapped source is enabled
func (s *CachedSource) Enabled() bool {
	return s.inner.Enabled()
}

// Validate validates the wrapped source
func (s *CachedSource) Validate() error {
	return s.inner.Validate()
}

// Collect serves hits from cache and fetches the misses in one call
func (s *CachedSource) Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.PriceRecord, error) {
	if !s.cache.Enabled() {
		return s.inner.Collect(ctx, symbols, from, to)
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	normalized := NormalizeSymbols(symbols)
	results := make(map[string]*contracts.PriceRecord, len(normalized))
	misses := make([]string, 0, len(normalized))

	for _, symbol := range normalized {
		var record contracts.PriceRecord
		found, err := s.cache.Get(ctx, s.key(symbol, from, to), &record)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Cache read failed")
		}
		if found && err == nil {
			results[symbol] = &record
			continue
		}
		misses = append(misses, symbol)
	}

	s.logger.WithFields(map[string]interface{}{
		"hits":   len(results),
		"misses": len(misses),
	}).Debug("Cache lookup")

	if len(misses) == 0 {
		return results, nil
	}

	fetched, err := s.inner.Collect(ctx, misses, from, to)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", s.inner.Name(), err)
	}

	for symbol, record := range fetched {
		results[symbol] = record
		if err := s.cache.Set(ctx, s.key(symbol, from, to), record, s.ttl); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Cache write failed")
		}
	}

	return results, nil
}

func (s *CachedSource) key(symbol string, from, to time.Time) string {
	return redis.PriceHistoryKey(s.inner.Name(), symbol, from, to)
}
