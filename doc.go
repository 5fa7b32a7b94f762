// Package credstore is a credential store and token service: persisted users,
// refresh-token records and reset-token records, Argon2id password hashing,
// and HS256 bearer tokens with access and refresh lifetimes.
//
// An [Engine] is assembled once through [Builder.Build] around a
// [store.Backend] (file, Redis, Postgres or in-memory) and is safe for
// concurrent use afterwards.
//
// # Architecture boundaries
//
// credstore is the public surface. It exposes [Engine], [Builder], [Config],
// the closed [ErrorCode] enumeration and the result types. Operation ordering
// lives in internal/flows; document persistence and the single-writer actor
// live in store; token and password primitives live in jwt and password.
//
// # What this package must NOT do
//
//   - Expose stored password forms or raw reset-token digests in results.
//   - Touch the backend except through the store actor.
//   - Import any sub-package that re-imports credstore (no import cycles).
//
// # Performance contract
//
// VerifyAccessToken is the hot path: it never touches storage. Password
// hashing and verification always run on the caller's goroutine, never on
// the store goroutine, so one slow login does not stall other writers.
package credstore
