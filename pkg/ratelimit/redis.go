package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared across gateway instances.
// Each window lives in one counter key with a TTL equal to the window; the
// INCR/PEXPIRE pair keeps the check to a single round trip per request.
type RedisLimiter struct {
	config Config
	client redis.UniversalClient
}

// NewRedisLimiter creates a Redis-backed limiter from a connection URL.
func NewRedisLimiter(config Config, redisURL string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisLimiter{
		config: config.withDefaults(),
		client: redis.NewClient(opts),
	}, nil
}

// NewRedisLimiterWithClient wraps an existing client, for tests and shared pools.
func NewRedisLimiterWithClient(config Config, client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{config: config.withDefaults(), client: client}
}

// Allow counts one request against the shared window for the given key.
func (l *RedisLimiter) Allow(ctx context.Context, organizationID, webhookID string) (Decision, error) {
	key := "ratelimit:" + organizationID + ":" + webhookID

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX: only the request that opens the window sets the expiry.
	pipe.ExpireNX(ctx, key, l.config.Window)
	ttl := pipe.PTTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incr.Val()

	resetAt := time.Now().Add(l.config.Window)
	if remaining := ttl.Val(); remaining > 0 {
		resetAt = time.Now().Add(remaining)
	}

	decision := Decision{
		Limit:   l.config.MaxRequests,
		ResetAt: resetAt,
	}

	if count > l.config.MaxRequests {
		decision.Remaining = 0

		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = l.config.MaxRequests - count

	return decision, nil
}

// Close releases the underlying client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
