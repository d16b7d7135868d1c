// Package ratelimit enforces per-webhook request caps over a fixed window.
// Keys are (organization id, webhook id) so one noisy tenant cannot starve
// another. Two backends exist: an in-process store for single-instance
// deployments and tests, and a Redis store for fleets.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Defaults applied when a Config field is zero.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 100
)

// Config bounds the limiter. Built once at startup; never mutated.
type Config struct {
	Window      time.Duration
	MaxRequests int64
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}

	return c
}

// Decision is the outcome of one rate-limit check. Callers can always tell
// the sender deterministically when to come back.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Limiter answers whether one more request fits into the current window.
type Limiter interface {
	Allow(ctx context.Context, organizationID, webhookID string) (Decision, error)
}

type windowState struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter is a fixed-window limiter backed by process memory.
type MemoryLimiter struct {
	config  Config
	mu      sync.Mutex
	windows map[string]*windowState
	now     func() time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(config Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  config.withDefaults(),
		windows: make(map[string]*windowState),
		now:     time.Now,
	}
}

// Allow counts one request against the window for the given key.
func (l *MemoryLimiter) Allow(_ context.Context, organizationID, webhookID string) (Decision, error) {
	key := organizationID + ":" + webhookID
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.windows[key]
	if !ok || !now.Before(state.resetAt) {
		state = &windowState{resetAt: now.Add(l.config.Window)}
		l.windows[key] = state
	}

	decision := Decision{
		Limit:   l.config.MaxRequests,
		ResetAt: state.resetAt,
	}

	if state.count >= l.config.MaxRequests {
		decision.Remaining = 0

		return decision, nil
	}

	state.count++
	decision.Allowed = true
	decision.Remaining = l.config.MaxRequests - state.count

	return decision, nil
}
