package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/internal/rate"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

const rateLimitedBody = "rate_limited"

// Throttle limits failed logins and reset requests. Implementations return
// an error matching ErrRateLimited when a budget is used up.
type Throttle interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	FailLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier string) error
	AllowResetRequest(ctx context.Context, email string) error
}

// ErrRateLimited is returned by a Throttle that rejects a request.
var ErrRateLimited = rate.ErrRateLimited

// ThrottleConfig sets the Redis throttle budgets. A zero budget disables
// that limit.
type ThrottleConfig struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
	// PerIP also counts failed logins per client IP.
	PerIP bool

	MaxResetRequests int
	ResetWindow      time.Duration
}

// DefaultThrottleConfig allows 5 failed logins per 15 minutes and 3 reset
// requests per hour.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxLoginAttempts: 5,
		LoginWindow:      15 * time.Minute,
		MaxResetRequests: 3,
		ResetWindow:      time.Hour,
	}
}

// NewRedisThrottle keeps throttle counters in Redis. The caller owns client.
func NewRedisThrottle(client redis.UniversalClient, cfg ThrottleConfig) Throttle {
	return rate.New(client, rate.Config{
		MaxLoginAttempts: cfg.MaxLoginAttempts,
		LoginWindow:      cfg.LoginWindow,
		EnableIPThrottle: cfg.PerIP,
		MaxResetRequests: cfg.MaxResetRequests,
		ResetWindow:      cfg.ResetWindow,
	})
}

// WithThrottle enables rate limiting on /login and /password/reset-request.
func WithThrottle(t Throttle) Option {
	return func(s *Server) { s.throttle = t }
}

func tooManyRequests(c fiber.Ctx) error {
	return c.Status(http.StatusTooManyRequests).JSON(fiber.Map{"error": rateLimitedBody})
}

// throttled reports whether err is a rejection. Other throttle failures are
// logged and the request proceeds.
func (s *Server) throttled(c fiber.Ctx, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	s.log.WithError(err).WithField("path", c.Path()).Warn("httpapi: throttle unavailable")
	return false
}

// noteLogin updates the throttle with the outcome of a login attempt.
func (s *Server) noteLogin(ctx context.Context, c fiber.Ctx, identifier string, err error) {
	if s.throttle == nil {
		return
	}
	var terr error
	switch {
	case err == nil:
		terr = s.throttle.ResetLogin(ctx, identifier)
	case errors.Is(err, credstore.ErrInvalidCredentials):
		terr = s.throttle.FailLogin(ctx, identifier, c.IP())
	}
	if terr != nil {
		s.log.WithError(terr).Warn("httpapi: throttle update failed")
	}
}
