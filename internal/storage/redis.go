package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/game-sync-engine/internal/config"
	"github.com/game-sync-engine/internal/types"
)

// RedisCache caches resolved game contract addresses so the hot path
// does not hit the registry contract for games it has already seen. The
// cache duplicates database state and is safe to lose.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// addressTTL is how long a resolved contract address stays cached.
// Addresses never change once assigned, but a bounded TTL keeps the
// keyspace from growing without limit.
const addressTTL = 24 * time.Hour

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	return &RedisCache{client: client, ttl: addressTTL}, nil
}

// NewRedisCacheWithClient wraps an existing client. Tests use this with
// miniredis.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, ttl: addressTTL}
}

func gameAddressKey(chainID types.ChainID, intID int64) string {
	return fmt.Sprintf("game:addr:%d:%d", chainID, intID)
}

// GetGameAddress returns the cached contract address for a game, or ""
// on a miss. Cache failures degrade to a miss.
func (c *RedisCache) GetGameAddress(ctx context.Context, chainID types.ChainID, intID int64) string {
	addr, err := c.client.Get(ctx, gameAddressKey(chainID, intID)).Result()
	if err != nil {
		// a broken cache is a miss, not an error
		return ""
	}
	return addr
}

// SetGameAddress caches a resolved contract address.
func (c *RedisCache) SetGameAddress(ctx context.Context, chainID types.ChainID, intID int64, address string) error {
	if types.IsZeroAddress(address) {
		return nil
	}
	return c.client.Set(ctx, gameAddressKey(chainID, intID), types.NormalizeAddress(address), c.ttl).Err()
}

// Ping checks if the cache is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the cache connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
