package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 10
	defaultCooldown    = 15 * time.Minute
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
	ThrottleIP  bool
}

// Limiter enforces per-identifier and per-IP failed-login budgets using
// Redis counters with a cooldown TTL.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	return &Limiter{redis: client, config: cfg}
}

func loginUserKey(identifier string) string { return "tenauth:login:user:" + identifier }
func loginIPKey(ip string) string           { return "tenauth:login:ip:" + ip }

// Check reports whether the identifier+IP pair is within its attempt
// budget. Returns ErrRateLimited when exhausted.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(identifier)); err != nil {
		return err
	}
	if l.config.ThrottleIP && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailure counts a failed attempt for the identifier+IP pair.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	if _, err := l.incrementWithTTL(ctx, loginUserKey(identifier)); err != nil {
		return err
	}
	if l.config.ThrottleIP && ip != "" {
		if _, err := l.incrementWithTTL(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier, ip string) error {
	keys := []string{loginUserKey(identifier)}
	if l.config.ThrottleIP && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return count, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
