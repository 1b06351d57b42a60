// Package ratelimit throttles gateway-bound requests per caller with a token
// bucket, in Redis when configured and in process otherwise.
package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/huddle/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("rate_limit_not_configured")
	ErrEmptyKey      = errors.New("rate_limit_empty_key")
	ErrInvalidRate   = errors.New("rate_limit_invalid_rate")
)

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func newResult(allowed bool, tokens, rate float64, burst int) Result {
	result := Result{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(tokens),
	}
	if !allowed && tokens < 1 {
		result.RetryAfter = time.Duration((1 - tokens) / rate * float64(time.Second))
	}
	return result
}

func validate(rate float64, burst int) error {
	if rate <= 0 || burst <= 0 {
		return ErrInvalidRate
	}
	return nil
}

// NewLimiter returns nil when rate limiting is disabled.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Limiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		log.Info("rate limiting disabled")
		return nil, nil
	}

	if cfg.Redis.Addr == "" {
		return NewMemoryBucket(limitCfg.Rate, limitCfg.Burst, nil)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewTokenBucket(client, "huddle:ratelimit:", limitCfg.Rate, limitCfg.Burst)
}
