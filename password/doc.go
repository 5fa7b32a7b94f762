// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Stored forms are the hex-encoded salt and the hex-encoded derived key joined
// by a dollar sign:
//
//	<saltHex>$<derivedHex>
//
// Cost parameters are not embedded; they come from [Config] at verification
// time.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Required-field checks and
// credential lookups are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive stored forms.
//   - Import any other credstore package.
//   - Log plaintext passwords.
package password
