// Package retry wraps remote calls with bounded exponential-backoff retry.
// Transient failures are retried with jittered delays; permanent failures
// (authentication, authorization) are returned immediately.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Defaults applied when a Config field is zero.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	DefaultFactor     = 2.0
)

// Config bounds the retry behaviour. Built once and passed in; never mutated.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64
	Jitter     bool
}

// DefaultConfig returns the standard retry policy with jitter enabled.
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Factor:     DefaultFactor,
		Jitter:     true,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}

	if c.Factor <= 1 {
		c.Factor = DefaultFactor
	}

	return c
}

// Error carries a remote error code so the client can decide eligibility.
// Code may be an HTTP status rendered as text ("429") or a provider string
// ("rate_limited").
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}

	return e.Code
}

// NewError creates a coded remote error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Transient remote error codes that are worth retrying. Auth failures need
// human intervention (reconnect the account), not backoff, so they are absent.
var retryableCodes = map[string]struct{}{
	"429":                     {},
	"500":                     {},
	"502":                     {},
	"503":                     {},
	"504":                     {},
	"rate_limited":            {},
	"throttled":               {},
	"timeout":                 {},
	"service_unavailable":     {},
	"temporarily_unavailable": {},
}

// Permanent remote error codes that must never be retried.
var permanentCodes = map[string]struct{}{
	"401":                  {},
	"403":                  {},
	"unauthorized":         {},
	"forbidden":            {},
	"invalid_credentials":  {},
	"account_disconnected": {},
}

// Retryable reports whether an error is worth another attempt. Errors without
// a code are treated as network-level failures, which always retry.
func Retryable(err error) bool {
	var coded *Error
	if !errors.As(err, &coded) {
		return true
	}

	if _, permanent := permanentCodes[coded.Code]; permanent {
		return false
	}

	_, ok := retryableCodes[coded.Code]

	return ok
}

// Operation is one attempt of a remote call.
type Operation func(ctx context.Context) (map[string]any, error)

// Result is the uniform outcome of a retried call. Callers never need to
// distinguish "never attempted" from "failed after retries" except through
// these fields.
type Result struct {
	Success   bool
	Data      map[string]any
	Err       error
	Retries   int
	TotalTime time.Duration
}

// Client retries operations according to its config.
type Client struct {
	config Config
	// rand source for jitter; swapped in tests for determinism.
	randFloat func() float64
}

// NewClient creates a retry client.
func NewClient(config Config) *Client {
	return &Client{
		config:    config.withDefaults(),
		randFloat: rand.Float64,
	}
}

// Delay returns the backoff before retrying after attempt n (0-indexed):
// min(base * factor^n, max), multiplied by a uniform value in [0.5, 1.0]
// when jitter is on. Jitter keeps many concurrently failing calls from
// hammering the remote in lockstep.
func (c *Client) Delay(attempt int) time.Duration {
	delay := float64(c.config.BaseDelay) * math.Pow(c.config.Factor, float64(attempt))
	if delay > float64(c.config.MaxDelay) {
		delay = float64(c.config.MaxDelay)
	}

	if c.config.Jitter {
		delay *= 0.5 + c.randFloat()*0.5
	}

	return time.Duration(delay)
}

// Do runs the operation with up to MaxRetries re-attempts. The context
// cancels both in-flight attempts and backoff waits.
func (c *Client) Do(ctx context.Context, op Operation) Result {
	start := time.Now()

	var (
		lastErr error
		retries int
	)

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			retries = attempt

			select {
			case <-ctx.Done():
				return Result{Err: ctx.Err(), Retries: retries - 1, TotalTime: time.Since(start)}
			case <-time.After(c.Delay(attempt - 1)):
			}
		}

		data, err := op(ctx)
		if err == nil {
			return Result{Success: true, Data: data, Retries: retries, TotalTime: time.Since(start)}
		}

		lastErr = err

		if !Retryable(err) {
			break
		}
	}

	return Result{Err: lastErr, Retries: retries, TotalTime: time.Since(start)}
}
