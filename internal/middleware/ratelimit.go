package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/film-catalog/internal/config"
	"github.com/iliyamo/film-catalog/internal/problem"
)

// gcraScript implements the generic cell rate algorithm on a single key
// holding the theoretical arrival time (TAT) in milliseconds.
//
//	ARGV[1] now (ms)  ARGV[2] emission interval (ms)  ARGV[3] burst capacity
//
// Returns {allowed (0|1), remaining, retry_after_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local burst = tonumber(ARGV[3]) * emission

local tat = tonumber(redis.call('GET', KEYS[1])) or now
if tat < now then
	tat = now
end

local new_tat = tat + emission
local allow_at = new_tat - burst
if allow_at > now then
	return {0, 0, allow_at - now}
end

redis.call('SET', KEYS[1], new_tat, 'PX', new_tat - now)
return {1, math.floor((burst - (new_tat - now)) / emission), 0}
`)

// rateDecision is the parsed reply of gcraScript.
type rateDecision struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

func parseRateDecision(reply interface{}) (rateDecision, error) {
	vals, ok := reply.([]interface{})
	if !ok || len(vals) != 3 {
		return rateDecision{}, fmt.Errorf("unexpected rate limit reply %v", reply)
	}
	n := make([]int64, 3)
	for i, v := range vals {
		if n[i], ok = v.(int64); !ok {
			return rateDecision{}, fmt.Errorf("unexpected rate limit reply %v", reply)
		}
	}
	return rateDecision{
		allowed:   n[0] == 1,
		remaining: n[1],
		retry:     time.Duration(n[2]) * time.Millisecond,
	}, nil
}

// NewRateLimiter admits cfg.Capacity requests in a burst per client and
// then one every cfg.Emission().  The state lives in Redis so all instances
// share one budget.  Rejected requests get a 429 problem with Retry-After.
// Redis failures fail open.  With limiting disabled or no client it is a
// no-op.
func NewRateLimiter(cfg config.RateLimitConfig, rdb redis.UniversalClient, log *zap.SugaredLogger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = log.Named("ratelimit")
	emission := cfg.Emission().Milliseconds()
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			reply, err := gcraScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), emission, cfg.Capacity).Result()
			if err != nil {
				log.Warnw("redis error; allowing request", "key", key, "error", err)
				return next(c)
			}
			d, err := parseRateDecision(reply)
			if err != nil {
				log.Warnw("allowing request", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if d.allowed {
				return next(c)
			}

			secs := int((d.retry + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			p := problem.New(c, http.StatusTooManyRequests, problem.TypeRateLimited, "", "rate limit exceeded")
			p.RetryAfter = &secs
			return problem.Write(c, p)
		}
	}
}

// rateKey buckets requests by client address, and by route template too
// unless cfg.KeyStrategy is config.RateKeyIP.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	key := cfg.Prefix + ":ip:" + c.RealIP()
	if cfg.KeyStrategy == config.RateKeyIP {
		return key
	}
	return key + ":route:" + c.Path()
}
