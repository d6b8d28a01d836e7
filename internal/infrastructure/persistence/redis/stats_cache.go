package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/mentorship-engine/internal/application/query"
)

// StatsCache implements query.StatsCache.
type StatsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewStatsCache creates a new StatsCache. ttl <= 0 uses TTLStatsCache.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = TTLStatsCache
	}
	return &StatsCache{cache: cache, ttl: ttl}
}

// GetStats implements query.StatsCache.
func (s *StatsCache) GetStats(ctx context.Context, programID string) (*query.ProgramStatsDTO, bool, error) {
	var stats query.ProgramStatsDTO
	if err := s.cache.Get(ctx, StatsKey(programID), &stats); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &stats, true, nil
}

// SetStats implements query.StatsCache.
func (s *StatsCache) SetStats(ctx context.Context, stats *query.ProgramStatsDTO) error {
	if stats == nil {
		return ErrCacheNilValue
	}
	return s.cache.Set(ctx, StatsKey(stats.ProgramID), stats, s.ttl)
}

// InvalidateStats implements query.StatsCache.
func (s *StatsCache) InvalidateStats(ctx context.Context, programID string) error {
	return s.cache.Delete(ctx, StatsKey(programID))
}
