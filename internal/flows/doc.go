// Package flows contains pure-function orchestrators for every Engine
// operation that touches the credential document.
//
// Each flow (RunRegister, RunAuthenticate, RunRefresh, ...) receives a Deps
// value built once by the Engine and returns plain results. Document access
// goes through Deps.View and Deps.Update, which the Engine binds to the
// store actor; hashing, token minting and digests are injected the same way.
//
// # Architecture boundaries
//
// Flows decide ordering and error precedence. They do NOT own the store, the
// token manager, the hasher, the audit dispatcher or the metrics; the Engine
// does.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import credstore (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through Deps.
//   - Run password hashing inside an Update callback. Update callbacks run on
//     the store goroutine and may be retried by optimistic backends.
package flows
