package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_Deterministic(t *testing.T) {
	limiter := NewMemoryLimiter(Config{Window: time.Minute, MaxRequests: 3})

	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()

	for i := range 3 {
		decision, err := limiter.Allow(ctx, "org-a", "wh-1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(3), decision.Limit)
		assert.Equal(t, int64(2-i), decision.Remaining)
	}

	// The (N+1)th request inside the window is rejected with remaining=0.
	decision, err := limiter.Allow(ctx, "org-a", "wh-1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(0), decision.Remaining)
	assert.Equal(t, now.Add(time.Minute), decision.ResetAt)
}

func TestMemoryLimiter_WindowReset(t *testing.T) {
	limiter := NewMemoryLimiter(Config{Window: time.Minute, MaxRequests: 1})

	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()

	first, err := limiter.Allow(ctx, "org-a", "wh-1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	blocked, err := limiter.Allow(ctx, "org-a", "wh-1")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	// First request after the window elapses is accepted again.
	now = now.Add(time.Minute + time.Second)

	after, err := limiter.Allow(ctx, "org-a", "wh-1")
	require.NoError(t, err)
	assert.True(t, after.Allowed)
}

func TestMemoryLimiter_KeysAreIsolated(t *testing.T) {
	limiter := NewMemoryLimiter(Config{Window: time.Minute, MaxRequests: 1})
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "org-a", "wh-1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	// A different webhook and a different tenant each get their own window.
	otherHook, err := limiter.Allow(ctx, "org-a", "wh-2")
	require.NoError(t, err)
	assert.True(t, otherHook.Allowed)

	otherOrg, err := limiter.Allow(ctx, "org-b", "wh-1")
	require.NoError(t, err)
	assert.True(t, otherOrg.Allowed)
}

func TestConfig_Defaults(t *testing.T) {
	limiter := NewMemoryLimiter(Config{})

	assert.Equal(t, DefaultWindow, limiter.config.Window)
	assert.Equal(t, int64(DefaultMaxRequests), limiter.config.MaxRequests)
}
