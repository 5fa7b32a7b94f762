package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const (
	// SecretSize is the length of a generated HMAC secret.
	SecretSize     = 64
	resetTokenSize = 32
)

// NewSecret returns SecretSize random bytes.
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// NewResetToken returns a hex-encoded 32-byte random token.
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// DigestToken returns hex(HMAC-SHA256(secret, token)).
func DigestToken(secret []byte, token string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("digest secret is empty")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
