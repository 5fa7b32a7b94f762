package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/credstore/store"
)

// ResetIssue is a freshly issued reset token. Token is the raw value; only
// its digest is persisted.
type ResetIssue struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// RunGenerateReset issues a reset token for the user owning email.
func RunGenerateReset(ctx context.Context, email string, deps Deps) (*ResetIssue, error) {
	if !normalize(&deps) || deps.NewResetToken == nil || deps.DigestResetToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if email == "" {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", deps.Errors.EmailRequired, nil)
		return nil, deps.Errors.EmailRequired
	}
	email = strings.ToLower(email)

	raw, err := deps.NewResetToken()
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}
	digest, err := deps.DigestResetToken(raw)
	if err != nil {
		return nil, fmt.Errorf("digest reset token: %w", err)
	}
	expiresAt := time.Unix(unix(deps.Now().Add(deps.ResetTTL)), 0)

	var userID string
	err = deps.Update(ctx, func(doc *store.Document) (bool, error) {
		u := doc.UserByEmail(email)
		if u == nil {
			return false, deps.Errors.UserNotFound
		}
		userID = u.ID
		doc.AddResetToken(store.ResetToken{
			UserID:    u.ID,
			TokenHash: digest,
			ExpiresAt: expiresAt.Unix(),
		})
		return true, nil
	})
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", err, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, userID, nil, nil)

	return &ResetIssue{
		UserID:    userID,
		Token:     raw,
		ExpiresAt: expiresAt,
	}, nil
}

// RunVerifyReset resolves a raw reset token to its owner without consuming
// it. An expired record is deleted and persisted. ok is false for unknown,
// empty or expired tokens; err is only set for storage failures.
func RunVerifyReset(ctx context.Context, raw string, deps Deps) (userID string, ok bool, err error) {
	if !normalize(&deps) || deps.DigestResetToken == nil {
		return "", false, deps.Errors.EngineNotReady
	}
	if raw == "" {
		return "", false, nil
	}

	digest, err := deps.DigestResetToken(raw)
	if err != nil {
		return "", false, fmt.Errorf("digest reset token: %w", err)
	}
	return lookupReset(ctx, digest, deps)
}

// lookupReset finds the live record for digest. Records found expired are
// removed in the same update.
func lookupReset(ctx context.Context, digest string, deps Deps) (userID string, ok bool, err error) {
	err = deps.Update(ctx, func(doc *store.Document) (bool, error) {
		userID, ok = "", false
		rec := doc.ResetTokenByHash(digest)
		if rec == nil {
			return false, nil
		}
		if rec.Expired(unix(deps.Now())) {
			doc.RemoveResetTokens(func(r store.ResetToken) bool { return r.TokenHash == digest })
			return true, nil
		}
		userID, ok = rec.UserID, true
		return false, nil
	})
	if err != nil {
		return "", false, err
	}
	return userID, ok, nil
}

// RunConsumeReset verifies raw, force-sets the owner's password and removes
// every reset record matching the digest or the owner.
//
// The token is resolved before the new password is hashed, so unknown or
// expired tokens never reach Argon2. The final update re-checks the record;
// a token consumed concurrently in between fails with invalid_reset_token.
func RunConsumeReset(ctx context.Context, raw, newPassword string, deps Deps) error {
	if !normalize(&deps) || deps.DigestResetToken == nil || deps.HashPassword == nil || deps.SetPassword == nil {
		return deps.Errors.EngineNotReady
	}

	if raw == "" {
		return resetConfirmFailed(ctx, deps, "", deps.Errors.InvalidResetToken)
	}
	if newPassword == "" {
		return resetConfirmFailed(ctx, deps, "", deps.Errors.MissingParams)
	}

	digest, err := deps.DigestResetToken(raw)
	if err != nil {
		return fmt.Errorf("digest reset token: %w", err)
	}
	owner, ok, err := lookupReset(ctx, digest, deps)
	if err != nil {
		return err
	}
	if !ok {
		return resetConfirmFailed(ctx, deps, "", deps.Errors.InvalidResetToken)
	}

	stored, err := deps.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var removed int
	err = deps.Update(ctx, func(doc *store.Document) (bool, error) {
		removed = 0
		rec := doc.ResetTokenByHash(digest)
		if rec == nil || rec.UserID != owner {
			return false, deps.Errors.InvalidResetToken
		}
		if rec.Expired(unix(deps.Now())) {
			doc.RemoveResetTokens(func(r store.ResetToken) bool { return r.TokenHash == digest })
			return true, deps.Errors.InvalidResetToken
		}
		if !deps.SetPassword(doc, owner, stored) {
			return false, deps.Errors.UserNotFound
		}
		removed = doc.RemoveResetTokens(func(r store.ResetToken) bool {
			return r.TokenHash == digest || r.UserID == owner
		})
		return true, nil
	})
	if err != nil {
		return resetConfirmFailed(ctx, deps, owner, err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, owner, nil, func() map[string]string {
		return map[string]string{
			"invalidated": fmt.Sprint(removed),
		}
	})
	return nil
}

func resetConfirmFailed(ctx context.Context, deps Deps, userID string, err error) error {
	deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, userID, err, nil)
	return err
}
