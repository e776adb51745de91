package config

import "time"

// Rate limit key strategies.
const (
	RateKeyIP      = "ip"       // one budget per client address
	RateKeyIPRoute = "ip_route" // one budget per client address and route
)

// RateLimitConfig configures the Redis rate limiter in front of the API.
// A client may burst Capacity requests; after that one request is admitted
// every RefillInterval/RefillTokens.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	KeyStrategy    string
	Prefix         string
}

// Emission is the steady-state spacing between two admitted requests,
// never less than a millisecond.
func (c RateLimitConfig) Emission() time.Duration {
	if c.RefillTokens < 1 {
		return c.RefillInterval
	}
	if e := c.RefillInterval / time.Duration(c.RefillTokens); e >= time.Millisecond {
		return e
	}
	return time.Millisecond
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps nonsensical
// values to the smallest working configuration.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", RateKeyIPRoute),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "films:rl"),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.KeyStrategy != RateKeyIP {
		cfg.KeyStrategy = RateKeyIPRoute
	}
	return cfg
}
