package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// Separator splits the hex salt from the hex derived key in a stored form.
	Separator = "$"
)

// Config holds the Argon2id cost parameters. Stored forms do not carry the
// parameters, so changing them invalidates every existing hash.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production cost parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   64,
	}
}

// Argon2 hashes and verifies passwords. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives a key from password and a fresh random salt and returns
// "saltHex$derivedHex".
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := a.derive(password, salt)

	return hex.EncodeToString(salt) + Separator + hex.EncodeToString(key), nil
}

// Verify reports whether password matches stored. It never errors: empty
// inputs and malformed stored forms simply fail verification.
func (a *Argon2) Verify(password string, stored string) bool {
	if password == "" || stored == "" {
		return false
	}

	salt, want, ok := parseStored(stored)
	if !ok || uint32(len(want)) != a.config.KeyLength {
		return false
	}

	return subtle.ConstantTimeCompare(a.derive(password, salt), want) == 1
}

func (a *Argon2) derive(password string, salt []byte) []byte {
	// Password processing uses raw string bytes exactly as provided (no Unicode normalization).
	return argon2.IDKey(
		[]byte(password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)
}

func parseStored(stored string) (salt, key []byte, ok bool) {
	saltHex, keyHex, found := strings.Cut(stored, Separator)
	if !found || saltHex == "" || keyHex == "" {
		return nil, nil, false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, nil, false
	}
	key, err = hex.DecodeString(keyHex)
	if err != nil || len(key) == 0 {
		return nil, nil, false
	}

	return salt, key, true
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
