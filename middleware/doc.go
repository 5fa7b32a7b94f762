// Package middleware exposes net/http adapters that require a valid access
// token issued by credstore.Engine.
//
// # Guards
//
//   - [RequireAccess] verifies the Authorization bearer token and injects its
//     claims into the request context ([ClaimsFromContext], [UserIDFromContext]).
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every decision is delegated to
// Engine.VerifyAccessToken.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the Engine).
//   - Touch the credential store.
//   - Accept refresh tokens as proof of access.
package middleware
