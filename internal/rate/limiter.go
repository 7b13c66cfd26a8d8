package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultMaxAttempts is the attempt budget per identifier and window.
	DefaultMaxAttempts = 10
	// DefaultWindow is the fixed window length.
	DefaultWindow = 15 * time.Minute
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter counts attempts per (scope, identifier) in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Allow records an attempt and reports whether it is within the window
// budget. Transport failures are wrapped in ErrUnavailable.
func (l *Limiter) Allow(ctx context.Context, scope, key string) (bool, error) {
	counter := counterKey(scope, key)

	count, err := l.redis.Incr(ctx, counter).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: the TTL starts with the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, counter, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count <= int64(l.config.MaxAttempts), nil
}

// Reset clears the counter after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, scope, key string) error {
	if err := l.redis.Del(ctx, counterKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func counterKey(scope, key string) string {
	return "rl:" + scope + ":" + key
}
