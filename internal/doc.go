// Package internal contains helpers private to credstore: random secret and
// reset-token generation and the keyed digest used to store reset tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for every Engine operation
//   - rate: Redis fixed-window counters behind the HTTP throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public credstore API.
//   - Be imported by any package outside the credstore module.
package internal
