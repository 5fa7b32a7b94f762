package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/credstore/store"
)

var (
	errInvalidReset  = errors.New("invalid_reset_token")
	errMissingParams = errors.New("missing_params")
	errUserNotFound  = errors.New("user_not_found")
)

// resetDeps extends the fake host with digest, hashing and force-set hooks.
// Every HashPassword call is counted in hashes.
func resetDeps(h *fakeHost, hashes *int) Deps {
	deps := h.deps()
	deps.DigestResetToken = func(raw string) (string, error) { return "digest:" + raw, nil }
	deps.HashPassword = func(pw string) (string, error) {
		*hashes++
		return "hashed:" + pw, nil
	}
	deps.SetPassword = func(doc *store.Document, userID, stored string) bool {
		u := doc.UserByID(userID)
		if u == nil {
			return false
		}
		u.Password = stored
		return true
	}
	deps.Errors.InvalidResetToken = errInvalidReset
	deps.Errors.MissingParams = errMissingParams
	deps.Errors.UserNotFound = errUserNotFound
	return deps
}

func (h *fakeHost) addReset(raw, userID string, expires time.Time) {
	h.doc.AddResetToken(store.ResetToken{UserID: userID, TokenHash: "digest:" + raw, ExpiresAt: expires.Unix()})
}

func TestRunConsumeResetRejectsBeforeHashing(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		newPw string
		want  error
	}{
		{"empty token", "", "pw", errInvalidReset},
		{"empty token and password", "", "", errInvalidReset},
		{"empty password", "live", "", errMissingParams},
		{"unknown token", "not-a-real-token", "pw", errInvalidReset},
		{"expired token", "stale", "pw", errInvalidReset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			h.doc.AddUser(store.User{ID: "u1", Password: "old"})
			h.addReset("live", "u1", h.now.Add(time.Hour))
			h.addReset("stale", "u1", h.now.Add(-time.Second))

			var hashes int
			err := RunConsumeReset(context.Background(), tt.raw, tt.newPw, resetDeps(h, &hashes))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if hashes != 0 {
				t.Fatalf("expected no password hashing, got %d calls", hashes)
			}
			if h.doc.UserByID("u1").Password != "old" {
				t.Fatal("password must not change")
			}
		})
	}
}

func TestRunConsumeResetExpiredRecordIsDeleted(t *testing.T) {
	h := newFakeHost()
	h.doc.AddUser(store.User{ID: "u1", Password: "old"})
	h.addReset("stale", "u1", h.now.Add(-time.Second))

	var hashes int
	if err := RunConsumeReset(context.Background(), "stale", "pw", resetDeps(h, &hashes)); !errors.Is(err, errInvalidReset) {
		t.Fatalf("expected invalid reset token, got %v", err)
	}
	if len(h.doc.ResetTokens) != 0 {
		t.Fatalf("expired record must be removed, got %+v", h.doc.ResetTokens)
	}
}

func TestRunConsumeResetSetsPasswordAndVoidsOwnerTokens(t *testing.T) {
	h := newFakeHost()
	h.doc.AddUser(store.User{ID: "u1", Password: "old"})
	h.doc.AddUser(store.User{ID: "u2", Password: "other"})
	h.addReset("live", "u1", h.now.Add(time.Hour))
	h.addReset("older", "u1", h.now.Add(time.Hour))
	h.addReset("theirs", "u2", h.now.Add(time.Hour))
	h.replays = 1

	var hashes int
	if err := RunConsumeReset(context.Background(), "live", "new", resetDeps(h, &hashes)); err != nil {
		t.Fatalf("RunConsumeReset failed: %v", err)
	}
	if hashes != 1 {
		t.Fatalf("expected exactly one hash, got %d", hashes)
	}
	if got := h.doc.UserByID("u1").Password; got != "hashed:new" {
		t.Fatalf("unexpected stored form %q", got)
	}
	if len(h.doc.ResetTokens) != 1 || h.doc.ResetTokens[0].UserID != "u2" {
		t.Fatalf("expected only u2's record to remain, got %+v", h.doc.ResetTokens)
	}
}

func TestRunConsumeResetLosesRaceToConcurrentConsume(t *testing.T) {
	h := newFakeHost()
	h.doc.AddUser(store.User{ID: "u1", Password: "old"})
	h.addReset("live", "u1", h.now.Add(time.Hour))

	var hashes int
	deps := resetDeps(h, &hashes)
	hash := deps.HashPassword
	deps.HashPassword = func(pw string) (string, error) {
		// Another request redeems the token while this one hashes.
		h.doc.RemoveResetTokens(func(store.ResetToken) bool { return true })
		return hash(pw)
	}

	if err := RunConsumeReset(context.Background(), "live", "new", deps); !errors.Is(err, errInvalidReset) {
		t.Fatalf("expected invalid reset token, got %v", err)
	}
	if h.doc.UserByID("u1").Password != "old" {
		t.Fatal("password must not change when the token was already consumed")
	}
}
