// Package jwt mints and verifies the HS256 bearer tokens used by the credential
// engine. Access and refresh tokens share the same encoding and differ only in
// their "type" claim and lifetime.
package jwt
