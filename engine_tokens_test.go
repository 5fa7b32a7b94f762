package credstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/credstore/jwt"
	"github.com/MrEthical07/credstore/store"
)

func login(t *testing.T, e *Engine, identity, password string) *AuthResult {
	t.Helper()
	res, err := e.Authenticate(context.Background(), identity, password)
	if err != nil {
		t.Fatalf("Authenticate(%q) failed: %v", identity, err)
	}
	return res
}

func decodePayload(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return payload
}

func flipFirstSignatureChar(token string) string {
	i := strings.LastIndex(token, ".") + 1
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	return token[:i] + string(c) + token[i+1:]
}

func TestAuthenticateByUsernameOrEmail(t *testing.T) {
	engine, backend, clock := newTestEngine(t)
	u := mustRegister(t, engine, "alice", "alice@example.com", "pw")

	for _, identity := range []string{"alice", "ALICE", "alice@example.com", "Alice@Example.com"} {
		res := login(t, engine, identity, "pw")
		if res.User != *u {
			t.Fatalf("expected user %+v, got %+v", u, res.User)
		}
	}

	res := login(t, engine, "alice", "pw")
	access := decodePayload(t, res.AccessToken)
	refresh := decodePayload(t, res.RefreshToken)
	if access["sub"] != u.ID || access["type"] != "access" {
		t.Fatalf("unexpected access payload %v", access)
	}
	if refresh["sub"] != u.ID || refresh["type"] != "refresh" {
		t.Fatalf("unexpected refresh payload %v", refresh)
	}
	now := float64(clock.Now().Unix())
	if access["iat"] != now || access["exp"] != now+900 {
		t.Fatalf("expected 900s access lifetime, got %v", access)
	}
	if refresh["exp"] != now+604800 {
		t.Fatalf("expected 604800s refresh lifetime, got %v", refresh)
	}

	rec := persisted(t, backend).RefreshToken(res.RefreshToken)
	if rec == nil || rec.UserID != u.ID || rec.ExpiresAt != clock.Now().Unix()+604800 {
		t.Fatalf("unexpected refresh record %+v", rec)
	}
}

func TestAuthenticateTwiceInSameSecondYieldsDistinctRefreshTokens(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	mustRegister(t, engine, "alice", "alice@example.com", "pw")

	a := login(t, engine, "alice", "pw")
	b := login(t, engine, "alice", "pw")
	if a.RefreshToken == b.RefreshToken {
		t.Fatal("expected distinct refresh tokens")
	}
	if n := len(persisted(t, backend).RefreshTokens); n != 2 {
		t.Fatalf("expected 2 refresh records, got %d", n)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	mustRegister(t, engine, "alice", "alice@example.com", "pw")

	tests := []struct {
		name               string
		identity, password string
		want               error
	}{
		{"empty identity", "", "pw", ErrCredentialsRequired},
		{"empty password", "alice", "", ErrCredentialsRequired},
		{"unknown identity", "bob", "pw", ErrInvalidCredentials},
		{"wrong password", "alice", "nope", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Authenticate(context.Background(), tt.identity, tt.password)
			if !errors.Is(err, tt.want) || res != nil {
				t.Fatalf("expected %v, got %+v, %v", tt.want, res, err)
			}
		})
	}

	if n := len(persisted(t, backend).RefreshTokens); n != 0 {
		t.Fatalf("failed logins must not persist refresh records, got %d", n)
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != 4 {
		t.Fatalf("expected 4 login failures counted, got %d", got)
	}
}

func TestVerifyAccessToken(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	u := mustRegister(t, engine, "alice", "alice@example.com", "pw")
	res := login(t, engine, "alice", "pw")

	claims, ok := engine.VerifyAccessToken(res.AccessToken)
	if !ok || claims.Subject() != u.ID {
		t.Fatalf("expected valid access token for %s, got %v %v", u.ID, claims, ok)
	}

	if _, ok := engine.VerifyAccessToken(res.RefreshToken); ok {
		t.Fatal("refresh token must not pass as access token")
	}
	if _, ok := engine.VerifyAccessToken(flipFirstSignatureChar(res.AccessToken)); ok {
		t.Fatal("tampered token must not verify")
	}
	if _, ok := engine.VerifyAccessToken(""); ok {
		t.Fatal("empty token must not verify")
	}

	clock.Advance(DefaultAccessTTL + time.Second)
	if _, ok := engine.VerifyAccessToken(res.AccessToken); ok {
		t.Fatal("expired access token must not verify")
	}
}

func TestCreateTokenRoundTrip(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	tok, err := engine.CreateToken(jwt.Claims{"sub": "u1", "type": "custom", "scope": "x"}, time.Minute)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	claims, ok := engine.VerifyToken(tok)
	if !ok {
		t.Fatal("expected token to verify")
	}
	if claims.Subject() != "u1" || claims["scope"] != "x" {
		t.Fatalf("unexpected claims %v", claims)
	}
	if _, ok := engine.VerifyAccessToken(tok); ok {
		t.Fatal("non-access type must be rejected by VerifyAccessToken")
	}
}

func TestCreateTokenNegativeTTLFailsVerification(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	tok, err := engine.CreateToken(jwt.Claims{"sub": "u1", "type": "access"}, -time.Second)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if _, ok := engine.VerifyToken(tok); ok {
		t.Fatal("token with negative ttl must not verify")
	}
}

func TestVerifyTokenRejectsOtherSecret(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	other, err := jwt.NewManager(jwt.Config{Secret: []byte("another-secret-another-secret!!")})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	tok, err := other.Create(jwt.Claims{"sub": "u1", "type": "access"}, time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, ok := engine.VerifyToken(tok); ok {
		t.Fatal("token signed with another secret must not verify")
	}
}

func TestRefreshAccessToken(t *testing.T) {
	engine, backend, clock := newTestEngine(t)
	u := mustRegister(t, engine, "alice", "alice@example.com", "pw")
	res := login(t, engine, "alice", "pw")

	clock.Advance(time.Minute)
	first, err := engine.RefreshAccessToken(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken failed: %v", err)
	}
	claims, ok := engine.VerifyAccessToken(first.AccessToken)
	if !ok || claims.Subject() != u.ID {
		t.Fatalf("refreshed access token invalid: %v %v", claims, ok)
	}

	// No rotation: the same refresh token keeps working.
	if _, err := engine.RefreshAccessToken(context.Background(), res.RefreshToken); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if n := len(persisted(t, backend).RefreshTokens); n != 1 {
		t.Fatalf("expected refresh record to stay, got %d records", n)
	}
}

func TestRefreshAccessTokenFailureOrder(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	u := mustRegister(t, engine, "alice", "alice@example.com", "pw")
	res := login(t, engine, "alice", "pw")

	if _, err := engine.RefreshAccessToken(context.Background(), ""); !errors.Is(err, ErrMissingRefreshToken) {
		t.Fatalf("expected missing_refresh_token, got %v", err)
	}

	// Correctly signed but never persisted.
	orphan, err := engine.issueToken(u.ID, TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issueToken failed: %v", err)
	}
	if _, err := engine.RefreshAccessToken(context.Background(), orphan); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid_refresh_token for unknown token, got %v", err)
	}

	// Persisted, but the token is an access token or has been tampered with.
	tampered := flipFirstSignatureChar(res.RefreshToken)
	err = engine.store.Update(context.Background(), func(doc *store.Document) (bool, error) {
		far := engine.now().Add(time.Hour).Unix()
		doc.AddRefreshToken(store.RefreshToken{Token: res.AccessToken, UserID: u.ID, ExpiresAt: far})
		doc.AddRefreshToken(store.RefreshToken{Token: tampered, UserID: u.ID, ExpiresAt: far})
		return true, nil
	})
	if err != nil {
		t.Fatalf("seed records: %v", err)
	}
	for name, tok := range map[string]string{"access typed": res.AccessToken, "tampered": tampered} {
		if _, err := engine.RefreshAccessToken(context.Background(), tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("%s: expected invalid_refresh_token, got %v", name, err)
		}
	}
	if n := len(persisted(t, backend).RefreshTokens); n != 3 {
		t.Fatalf("signature failures must not delete records, got %d", n)
	}
}

func TestRefreshAccessTokenExpiredRecordIsDeleted(t *testing.T) {
	engine, backend, clock := newTestEngine(t)
	mustRegister(t, engine, "alice", "alice@example.com", "pw")
	res := login(t, engine, "alice", "pw")

	clock.Advance(DefaultRefreshTTL + time.Second)

	if _, err := engine.RefreshAccessToken(context.Background(), res.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected refresh_token_expired, got %v", err)
	}
	if rec := persisted(t, backend).RefreshToken(res.RefreshToken); rec != nil {
		t.Fatal("expired record must be deleted and persisted")
	}
	if _, err := engine.RefreshAccessToken(context.Background(), res.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid_refresh_token once deleted, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricRefreshExpired]; got != 1 {
		t.Fatalf("expected 1 expired refresh counted, got %d", got)
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	mustRegister(t, engine, "alice", "alice@example.com", "pw")
	res := login(t, engine, "alice", "pw")

	for i := 0; i < 2; i++ {
		if err := engine.RevokeRefreshToken(context.Background(), res.RefreshToken); err != nil {
			t.Fatalf("revoke #%d failed: %v", i+1, err)
		}
	}
	if err := engine.RevokeRefreshToken(context.Background(), "unknown"); err != nil {
		t.Fatalf("revoking unknown token failed: %v", err)
	}
	if n := len(persisted(t, backend).RefreshTokens); n != 0 {
		t.Fatalf("expected no refresh records, got %d", n)
	}
	if _, err := engine.RefreshAccessToken(context.Background(), res.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid_refresh_token after revoke, got %v", err)
	}

	// Access tokens stay valid until they expire.
	if _, ok := engine.VerifyAccessToken(res.AccessToken); !ok {
		t.Fatal("revoking refresh must not affect access token verification")
	}
}
