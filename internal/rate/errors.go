package rate

import "errors"

var (
	// ErrRateLimited means the caller has used up its budget for the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
