package internal

import (
	"encoding/hex"
	"testing"
)

func TestNewSecret(t *testing.T) {
	a, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	b, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	if len(a) != SecretSize {
		t.Fatalf("expected %d bytes, got %d", SecretSize, len(a))
	}
	if string(a) == string(b) {
		t.Fatal("expected distinct secrets")
	}
}

func TestNewResetToken(t *testing.T) {
	tok, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	raw, err := hex.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not hex: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 random bytes, got %d", len(raw))
	}
}

func TestDigestToken(t *testing.T) {
	secret := []byte("secret")

	// Widely published HMAC-SHA256 test vector.
	got, err := DigestToken([]byte("key"), "The quick brown fox jumps over the lazy dog")
	if err != nil {
		t.Fatalf("DigestToken: %v", err)
	}
	const want = "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Fatalf("unexpected digest %s", got)
	}

	a, _ := DigestToken(secret, "token")
	b, _ := DigestToken(secret, "token")
	c, _ := DigestToken([]byte("other"), "token")
	if a != b {
		t.Fatal("digest is not deterministic")
	}
	if a == c {
		t.Fatal("digest does not depend on the secret")
	}

	if _, err := DigestToken(nil, "token"); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}
}
