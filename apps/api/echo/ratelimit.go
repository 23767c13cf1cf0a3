package echoapi

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/kazimoto/mipango/core"
)

const rateLimitWindow = time.Minute

type (
	// RateLimiter counts requests per key over a fixed window.
	RateLimiter interface {
		Allow(key string, limit int) bool
		Close() error
	}

	redisRateLimiter struct {
		client  *redis.Client
		logger  core.Logger
		prefix  string
		timeout time.Duration
	}
)

var _ RateLimiter = (*redisRateLimiter)(nil)

func NewRedisRateLimiter(conf *core.Config, logger core.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &redisRateLimiter{
		client:  client,
		logger:  logger,
		prefix:  conf.AppName + ":ratelimit:",
		timeout: 250 * time.Millisecond,
	}, nil
}

// Allow fails open: a broken Redis never locks clients out.
func (rl *redisRateLimiter) Allow(key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logger.Error(fmt.Sprintf("rate limiter incr: %v", err), err)
		return true
	}
	if counter == 1 {
		if err = rl.client.Expire(ctx, redisKey, rateLimitWindow).Err(); err != nil {
			rl.logger.Error(fmt.Sprintf("rate limiter expire: %v", err), err)
		}
	}
	return int(counter) <= limit
}

func (rl *redisRateLimiter) Close() error {
	return rl.client.Close()
}

// memoryRateLimiter is a single-process fallback used in DEV and TEST.
type memoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]rateState
}

type rateState struct {
	count     int
	windowEnd time.Time
}

var _ RateLimiter = (*memoryRateLimiter)(nil)

func NewMemoryRateLimiter() RateLimiter {
	return &memoryRateLimiter{entries: make(map[string]rateState)}
}

func (rl *memoryRateLimiter) Allow(key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || now.After(state.windowEnd) {
		rl.entries[key] = rateState{count: 1, windowEnd: now.Add(rateLimitWindow)}
		return true
	}
	state.count++
	rl.entries[key] = state
	return state.count <= limit
}

func (rl *memoryRateLimiter) Close() error { return nil }

// rateLimitMiddleware throttles a route per client key; anonymous requests
// key on the client IP, authed requests on the user ID.
func rateLimitMiddleware(limiter RateLimiter, limit int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil {
				return next(ctx)
			}
			key := rateLimitKey(ctx)
			if !limiter.Allow(ctx.Path()+"|"+key, limit) {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

func rateLimitKey(ctx echo.Context) string {
	if claims, err := getContextClaims(ctx); err == nil && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(ctx.Request().RemoteAddr)
	if err != nil {
		host = ctx.Request().RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
