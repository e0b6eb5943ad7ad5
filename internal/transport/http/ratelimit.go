package http

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimitConfig tunes the per-client token bucket guarding mutating
// routes against hot-slot stampedes.
type RateLimitConfig struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// DefaultRateLimitConfig allows a burst of 30 with one token per
// second of refill per client IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Capacity:       30,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		Prefix:         "rl",
	}
}

// Bucket state lives in Redis so all replicas share one budget; the
// script refills and takes a token in a single atomic round trip.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
	tokens = math.min(capacity, tokens + (intervals * refill_tokens))
	last_refill = last_refill + (intervals * interval_ms)
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RateLimit enforces a Redis-backed token bucket keyed by client IP.
// When rdb is nil or Redis is unreachable the middleware passes
// requests through: reservation traffic must not depend on the
// limiter's availability.
func RateLimit(cfg RateLimitConfig, rdb *redis.Client, logger zerolog.Logger, next http.Handler) http.Handler {
	if rdb == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := cfg.Prefix + ":ip:" + clientIP(r)

		args := []interface{}{
			time.Now().UnixMilli(),
			cfg.Capacity,
			cfg.RefillTokens,
			cfg.RefillInterval.Milliseconds(),
			int64(cfg.TTL / time.Second),
		}

		vals, err := rateLimitScript.Run(r.Context(), rdb, []string{key}, args...).Int64Slice()
		if err != nil || len(vals) != 3 {
			logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, passing through")
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			retrySecs := int((retryMs + 999) / 1000)
			w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
			writeError(w, http.StatusTooManyRequests, codeTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
