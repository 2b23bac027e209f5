package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisLimitConfig struct {
	Client    *redis.Client
	Limit     int // requests per Window; <= 0 disables
	Window    time.Duration
	KeyPrefix string
	Logger    *zap.Logger
}

// RedisRateLimit is a fixed-window limiter shared across API replicas.
// Redis errors fail open.
func RedisRateLimit(cfg RedisLimitConfig) func(http.Handler) http.Handler {
	if cfg.Limit <= 0 || cfg.Client == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	limit := strconv.Itoa(cfg.Limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := clientIP(r)
			if id == "" {
				id = "anonymous"
			}
			key := cfg.KeyPrefix + id

			count, err := cfg.Client.Incr(ctx, key).Result()
			if err != nil {
				cfg.Logger.Warn("ratelimit_redis_error", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				cfg.Client.Expire(ctx, key, cfg.Window)
			}

			reset := 0
			if ttl, err := cfg.Client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				reset = int(ttl.Seconds())
			}
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))

			if count > int64(cfg.Limit) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":           "rate limit exceeded",
					"retry_after_sec": reset,
				})
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(cfg.Limit-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}
