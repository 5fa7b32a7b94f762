package credstore

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodeWireNames(t *testing.T) {
	want := map[ErrorCode]string{
		CodeUsernameTaken:          "username_taken",
		CodeEmailTaken:             "email_taken",
		CodeInvalidCredentials:     "invalid_credentials",
		CodeMissingRefreshToken:    "missing_refresh_token",
		CodeInvalidRefreshToken:    "invalid_refresh_token",
		CodeRefreshTokenExpired:    "refresh_token_expired",
		CodeUserNotFound:           "user_not_found",
		CodeInvalidCurrentPassword: "invalid_current_password",
		CodeMissingParams:          "missing_params",
		CodeInvalidResetToken:      "invalid_reset_token",
		CodeCredentialsRequired:    "credentials required",
		CodeEmailRequired:          "email required",
	}

	codes := ErrorCodes()
	if len(codes) != len(want) {
		t.Fatalf("expected %d codes, got %d", len(want), len(codes))
	}
	for _, c := range codes {
		if c.String() != want[c] {
			t.Fatalf("code %d: expected %q, got %q", c, want[c], c.String())
		}
		if (&Error{Code: c}).Error() != want[c] {
			t.Fatalf("Error() for %d must be the wire name", c)
		}
	}
	if ErrorCode(200).String() != "unknown" {
		t.Fatal("out-of-range codes must report unknown")
	}
}

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", ErrEmailTaken)

	if !errors.Is(wrapped, ErrEmailTaken) {
		t.Fatal("wrapped sentinel must match")
	}
	if !errors.Is(wrapped, &Error{Code: CodeEmailTaken}) {
		t.Fatal("errors with the same code must match")
	}
	if errors.Is(wrapped, ErrUsernameTaken) {
		t.Fatal("different codes must not match")
	}
	if CodeOf(wrapped) != CodeEmailTaken {
		t.Fatalf("expected CodeEmailTaken, got %v", CodeOf(wrapped))
	}
	if CodeOf(errors.New("disk full")) != CodeUnknown {
		t.Fatal("foreign errors must map to CodeUnknown")
	}
	if CodeOf(nil) != CodeUnknown {
		t.Fatal("nil must map to CodeUnknown")
	}
}
