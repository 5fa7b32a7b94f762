package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names carried by every token minted by the credential engine.
const (
	ClaimSubject   = "sub"
	ClaimType      = "type"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimID        = "jti"
)

// RecommendedSecretBytes is the shortest HMAC secret considered strong.
// Shorter non-empty secrets are accepted and used verbatim.
const RecommendedSecretBytes = 16

var (
	// ErrInvalidToken is returned for any token that fails structural,
	// signature, or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is a decoded token payload.
type Claims map[string]any

// Subject returns the "sub" claim or "".
func (c Claims) Subject() string {
	s, _ := c[ClaimSubject].(string)
	return s
}

// Type returns the "type" claim or "".
func (c Claims) Type() string {
	s, _ := c[ClaimType].(string)
	return s
}

// ID returns the "jti" claim or "".
func (c Claims) ID() string {
	s, _ := c[ClaimID].(string)
	return s
}

// ExpiresAt returns the "exp" claim in unix seconds, or 0 when absent.
func (c Claims) ExpiresAt() int64 {
	return numericClaim(c[ClaimExpiresAt])
}

// IssuedAt returns the "iat" claim in unix seconds, or 0 when absent.
func (c Claims) IssuedAt() int64 {
	return numericClaim(c[ClaimIssuedAt])
}

func numericClaim(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// Config configures a Manager.
type Config struct {
	// Secret is the HMAC-SHA256 key. It is used verbatim.
	Secret []byte
	// Now overrides the clock used for iat, exp and expiry checks.
	Now func() time.Time
}

// Manager mints and verifies HS256 tokens of the form
// base64url(header).base64url(payload).base64url(signature).
//
// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 secret required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		secret: append([]byte(nil), cfg.Secret...),
		now:    now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	return m, nil
}

// Create signs claims plus iat=now and exp=now+ttl. A negative ttl yields
// a token that is already expired. The caller's map is not modified.
func (m *Manager) Create(claims Claims, ttl time.Duration) (string, error) {
	now := m.now()
	payload := make(jwt.MapClaims, len(claims)+2)
	maps.Copy(payload, claims)
	payload[ClaimIssuedAt] = now.Unix()
	payload[ClaimExpiresAt] = now.Add(ttl).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(m.secret)
}

// Verify checks structure, algorithm, signature (constant time) and expiry and
// returns the decoded payload. Every failure is reported as ErrInvalidToken
// wrapping the parser's reason.
func (m *Manager) Verify(tokenStr string) (Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	token, err := m.parser.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return Claims(mapClaims), nil
}
