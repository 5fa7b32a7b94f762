// Package rate implements Redis fixed-window counters used to throttle
// failed logins and password-reset requests at the HTTP edge.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key prefixes:
//   - credstore:rl:login:    failed logins per identifier
//   - credstore:rl:login-ip: failed logins per client IP
//   - credstore:rl:reset:    reset-token requests per email
//
// # What this package must NOT do
//
//   - Touch the credential document. Counters live only in Redis.
//   - Decide HTTP responses. Callers map ErrRateLimited themselves.
package rate
