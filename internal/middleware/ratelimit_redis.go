package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/huangang/taskboard/pkg/response"
	redis "github.com/redis/go-redis/v9"
)

const redisTimeout = 500 * time.Millisecond

// NewRedisClient connects to the configured Redis. It returns nil when Redis
// is disabled or unreachable so callers can fall back to in-process limiting.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	if cfg == nil || !cfg.Enabled || cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, using in-process rate limiting")
		_ = client.Close()
		return nil
	}
	return client
}

// RedisRateLimiter is a fixed-window limiter shared by every server instance.
// Keys have the form rl:<window_seconds>:<client ip>.
type RedisRateLimiter struct {
	client      redis.Cmdable
	maxRequests int
	window      time.Duration
}

func NewRedisRateLimiter(client redis.Cmdable, maxRequests int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, maxRequests: maxRequests, window: window}
}

func (rl *RedisRateLimiter) key(ident string) string {
	return "rl:" + strconv.FormatInt(int64(rl.window.Seconds()), 10) + ":" + ident
}

// Allow counts one request for ident. Redis errors are returned with allowed
// set to true.
func (rl *RedisRateLimiter) Allow(ctx context.Context, ident string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	key := rl.key(ident)
	val, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if val == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			return true, err
		}
	}
	return val <= int64(rl.maxRequests), nil
}

// Middleware fails open on Redis errors.
func (rl *RedisRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := rl.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn().Err(err).Str("request_id", logger.RequestID(c)).Msg("redis rate limiter error")
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		if !allowed {
			RLBlocked.WithLabelValues(routeLabel(c)).Inc()
			response.TooManyRequests(c, "rate limit exceeded")
			return
		}

		RLRequests.WithLabelValues(routeLabel(c)).Inc()
		c.Next()
	}
}

// AuthRateLimit picks the shared Redis limiter when a client is available and
// the in-process limiter otherwise.
func AuthRateLimit(client *redis.Client, cfg *config.RateLimitConfig) gin.HandlerFunc {
	if client != nil {
		return NewRedisRateLimiter(client, cfg.MaxRequests, time.Duration(cfg.WindowSeconds)*time.Second).Middleware()
	}
	return RateLimit(cfg.RPS, cfg.Burst)
}
