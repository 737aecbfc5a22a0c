package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/updownlabs/pairbot/internal/domain"
)

// tickTTL bounds how long a stale tick survives after its market goes quiet.
const tickTTL = 10 * time.Minute

// TickCache implements domain.TickCache. The latest tick result per market is
// stored JSON-encoded at key "tick:{marketID}" for display-cadence polling.
type TickCache struct {
	rdb *redis.Client
}

// NewTickCache creates a TickCache backed by the given client.
func NewTickCache(rdb *redis.Client) *TickCache {
	return &TickCache{rdb: rdb}
}

func tickKey(marketID string) string {
	return "tick:" + marketID
}

// SetTick stores the latest tick result for the market.
func (tc *TickCache) SetTick(ctx context.Context, result domain.TickResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis: marshal tick %s: %w", result.MarketID, err)
	}
	if err := tc.rdb.Set(ctx, tickKey(result.MarketID), data, tickTTL).Err(); err != nil {
		return fmt.Errorf("redis: set tick %s: %w", result.MarketID, err)
	}
	return nil
}

// GetTick retrieves the latest tick result for a market. It returns
// domain.ErrNotFound when the key does not exist.
func (tc *TickCache) GetTick(ctx context.Context, marketID string) (domain.TickResult, error) {
	data, err := tc.rdb.Get(ctx, tickKey(marketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TickResult{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TickResult{}, fmt.Errorf("redis: get tick %s: %w", marketID, err)
	}

	var result domain.TickResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.TickResult{}, fmt.Errorf("redis: unmarshal tick %s: %w", marketID, err)
	}
	return result, nil
}

// Compile-time interface check.
var _ domain.TickCache = (*TickCache)(nil)
