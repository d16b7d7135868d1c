// Package config loads optional gateway limit settings from a YAML file.
// Flags and environment variables stay authoritative for wiring (ports,
// URLs); the file covers the operational limits operators tune per
// deployment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/atlasfit/automation/pkg/ratelimit"
	"gopkg.in/yaml.v3"
)

// GatewayLimits is the structure of the limits YAML file.
type GatewayLimits struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// MaxPayloadBytes caps request bodies for webhooks that do not set
	// their own limit. Zero keeps the built-in default.
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`

	// TimestampToleranceSec bounds replay windows for webhooks that do not
	// set their own. Zero keeps the built-in default.
	TimestampToleranceSec int `yaml:"timestamp_tolerance_sec"`
}

type RateLimitConfig struct {
	MaxRequests int64 `yaml:"max_requests"`
	WindowSec   int   `yaml:"window_sec"`
}

// RateLimiterConfig converts the file settings into a limiter config. Zero
// fields fall back to the limiter's defaults.
func (g GatewayLimits) RateLimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests: g.RateLimit.MaxRequests,
		Window:      time.Duration(g.RateLimit.WindowSec) * time.Second,
	}
}

// TimestampTolerance returns the fallback replay window, zero when unset.
func (g GatewayLimits) TimestampTolerance() time.Duration {
	return time.Duration(g.TimestampToleranceSec) * time.Second
}

// LoadGatewayLimits reads and parses a limits file.
func LoadGatewayLimits(path string) (GatewayLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GatewayLimits{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var limits GatewayLimits
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return GatewayLimits{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if limits.RateLimit.MaxRequests < 0 {
		return GatewayLimits{}, fmt.Errorf("rate_limit.max_requests must not be negative, got %d", limits.RateLimit.MaxRequests)
	}

	if limits.RateLimit.WindowSec < 0 {
		return GatewayLimits{}, fmt.Errorf("rate_limit.window_sec must not be negative, got %d", limits.RateLimit.WindowSec)
	}

	if limits.MaxPayloadBytes < 0 {
		return GatewayLimits{}, fmt.Errorf("max_payload_bytes must not be negative, got %d", limits.MaxPayloadBytes)
	}

	if limits.TimestampToleranceSec < 0 {
		return GatewayLimits{}, fmt.Errorf("timestamp_tolerance_sec must not be negative, got %d", limits.TimestampToleranceSec)
	}

	return limits, nil
}
