package invoicing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsCacheKey = "caoba:invoicing:stats"

// StatsCache keeps the aggregated invoice figures in redis so the
// dashboard does not re-scan the invoice book on every load.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache builds a cache with the given TTL.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// Get returns the cached stats, or false on miss or any redis error.
func (c *StatsCache) Get(ctx context.Context) (Stats, bool) {
	if c == nil || c.client == nil {
		return Stats{}, false
	}
	raw, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return Stats{}, false
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return Stats{}, false
	}
	return stats, true
}

// Set stores the stats for the configured TTL. Best effort.
func (c *StatsCache) Set(ctx context.Context, stats Stats) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsCacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached figures after a mutating operation.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, statsCacheKey).Err()
}
