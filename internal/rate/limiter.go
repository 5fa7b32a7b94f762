package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyLogin   = "credstore:rl:login:"
	keyLoginIP = "credstore:rl:login-ip:"
	keyReset   = "credstore:rl:reset:"
)

// Config holds limiter budgets. A zero budget disables that limit.
type Config struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
	EnableIPThrottle bool

	MaxResetRequests int
	ResetWindow      time.Duration
}

// Limiter keeps fixed-window counters in Redis for failed logins and
// reset-token requests.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Limiter over redisClient. The caller owns the client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin reports ErrRateLimited when identifier, or ip when IP
// throttling is on, has used up its failed-login budget. It does not count
// the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, loginKey(identifier), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, keyLoginIP+ip, l.config.MaxLoginAttempts)
	}
	return nil
}

// FailLogin counts one failed login.
func (l *Limiter) FailLogin(ctx context.Context, identifier, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if _, err := l.incrementWithTTL(ctx, loginKey(identifier), l.config.LoginWindow); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, keyLoginIP+ip, l.config.LoginWindow); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the identifier's failed-login counter after a
// successful login. The IP counter is left to expire.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AllowResetRequest counts a reset-token request for email and reports
// ErrRateLimited once the window's budget is exceeded.
func (l *Limiter) AllowResetRequest(ctx context.Context, email string) error {
	if l.config.MaxResetRequests <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, keyReset+normalize(email), l.config.ResetWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxResetRequests) {
		return ErrRateLimited
	}
	return nil
}

// LoginFailures returns the current failed-login count for identifier.
// Missing keys return zero.
func (l *Limiter) LoginFailures(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// normalize matches the engine's case-insensitive username and email
// lookups, so "Alice" and "alice" share a budget.
func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func loginKey(identifier string) string {
	return keyLogin + normalize(identifier)
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set by the first hit only.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
