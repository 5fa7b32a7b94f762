package credstore

import (
	"errors"
	"time"

	"github.com/MrEthical07/credstore/password"
)

// Config holds every engine setting. Build validates it once; the engine
// keeps its own copy.
type Config struct {
	Token         TokenConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls bearer-token signing and lifetimes.
type TokenConfig struct {
	// Secret is the HMAC key for tokens and reset-token digests. When empty,
	// Build generates a random 64-byte secret for the life of the engine.
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordResetConfig controls reset-token lifetime.
type PasswordResetConfig struct {
	ResetTTL time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	DefaultAccessTTL  = 900 * time.Second
	DefaultRefreshTTL = 604800 * time.Second
	DefaultResetTTL   = 3600 * time.Second
)

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Token: TokenConfig{
			AccessTTL:  DefaultAccessTTL,
			RefreshTTL: DefaultRefreshTTL,
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL: DefaultResetTTL,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the production defaults: 15 minute access tokens,
// 7 day refresh tokens, 1 hour reset tokens.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
