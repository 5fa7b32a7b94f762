// Package httpapi serves the credential engine over HTTP with Fiber.
//
// Routes are mounted under a base path (default "/api/auth"). Failures are
// returned as {"error": "<identifier>"} where identifier is the engine's wire
// error code, with status codes from [StatusFor]. Errors outside the closed
// engine enumeration become 500 with a generic body and are logged.
//
// An optional [Throttle] (see [NewRedisThrottle]) answers 429
// {"error": "rate_limited"} once a client exhausts its failed-login or
// reset-request budget. Throttle outages are logged and do not block
// requests.
package httpapi
