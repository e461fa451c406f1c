package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/book-delivery/internal/config"
)

// Rate policies.  Each keeps its own bucket per caller, so a burst of
// logins does not eat into the same caller's catalog budget.
const (
	PolicyAPI    = "api"
	PolicyAuth   = "auth"
	PolicyOrders = "orders"
)

// bucketScript refills continuously at rate tokens per millisecond, then
// takes one token if a whole one is available.  It returns
// {allowed, whole tokens left, ms until the next token}.
var bucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local saved = redis.call('HMGET', KEYS[1], 'level', 'at')
local level = tonumber(saved[1]) or capacity
local at = tonumber(saved[2]) or now
if now > at then
  level = math.min(capacity, level + (now - at) * rate)
  at = now
end

local allowed, wait = 0, 0
if level >= 1 then
  allowed = 1
  level = level - 1
else
  wait = math.ceil((1 - level) / rate)
end

redis.call('HSET', KEYS[1], 'level', tostring(level), 'at', at)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, math.floor(level), wait}
`)

type bucketState struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

func parseBucket(v any) (bucketState, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return bucketState{}, false
	}
	var n [3]int64
	for i, x := range arr {
		if n[i], ok = x.(int64); !ok {
			return bucketState{}, false
		}
	}
	return bucketState{allowed: n[0] == 1, remaining: n[1], wait: time.Duration(n[2]) * time.Millisecond}, true
}

// NewTokenBucket limits requests under the named policy with a token bucket
// kept in Redis, shared by every replica.  Callers are keyed by principal
// once JWTAuth has run and by client address before that.  Redis failures
// let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, policy string, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	capacity := cfg.CapacityFor(policy)
	rate := float64(cfg.RefillTokens) / (float64(cfg.RefillInterval) / float64(time.Millisecond))
	limit := strconv.Itoa(capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.Prefix + ":" + policy + ":" + callerKey(c)
			res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				capacity, rate, time.Now().UnixMilli(), cfg.TTL.Milliseconds()).Result()
			if err != nil {
				log.Warn("ratelimit: redis error", slog.String("key", key), slog.String("error", err.Error()))
				return next(c)
			}
			b, ok := parseBucket(res)
			if !ok {
				log.Warn("ratelimit: unexpected script result", slog.String("key", key), slog.Any("result", res))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(b.remaining, 10))
			if b.allowed {
				return next(c)
			}

			secs := int((b.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Debug("ratelimit: blocked", slog.String("key", key), slog.Duration("wait", b.wait))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"kind":        "rate_limited",
				"retry_after": secs,
			})
		}
	}
}
