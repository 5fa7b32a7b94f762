package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/credstore/store"
)

// RunRefresh exchanges a persisted refresh token for a new access token. The
// refresh token itself is not rotated.
//
// Checks run in a fixed order: missing token, missing record, expired record
// (deleted and persisted), then signature, expiry and type of the token.
func RunRefresh(ctx context.Context, refreshToken string, deps Deps) (string, error) {
	if !normalize(&deps) || deps.ParseToken == nil || deps.IssueToken == nil {
		return "", deps.Errors.EngineNotReady
	}

	if refreshToken == "" {
		return "", refreshFailed(ctx, deps, "", deps.Errors.MissingRefreshToken)
	}

	var owner string
	err := deps.Update(ctx, func(doc *store.Document) (bool, error) {
		owner = ""
		rec := doc.RefreshToken(refreshToken)
		if rec == nil {
			return false, deps.Errors.InvalidRefreshToken
		}
		owner = rec.UserID
		if rec.Expired(unix(deps.Now())) {
			doc.RemoveRefreshToken(refreshToken)
			return true, deps.Errors.RefreshTokenExpired
		}
		return false, nil
	})
	if err != nil {
		return "", refreshFailed(ctx, deps, owner, err)
	}

	subject, tokenType, ok := deps.ParseToken(refreshToken)
	if !ok || tokenType != TokenTypeRefresh || subject == "" {
		return "", refreshFailed(ctx, deps, owner, deps.Errors.InvalidRefreshToken)
	}

	access, err := deps.IssueToken(subject, TokenTypeAccess, deps.AccessTTL)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, subject, nil, nil)
	return access, nil
}

func refreshFailed(ctx context.Context, deps Deps, userID string, err error) error {
	if errors.Is(err, deps.Errors.RefreshTokenExpired) {
		deps.MetricInc(deps.Metrics.RefreshExpired)
	} else {
		deps.MetricInc(deps.Metrics.RefreshFailure)
	}
	deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, userID, err, nil)
	return err
}

// RunRevoke removes every persisted record for refreshToken. Revoking an
// unknown or empty token is not an error.
func RunRevoke(ctx context.Context, refreshToken string, deps Deps) error {
	if !normalize(&deps) {
		return deps.Errors.EngineNotReady
	}

	var (
		owner   string
		removed int
	)
	err := deps.Update(ctx, func(doc *store.Document) (bool, error) {
		owner = ""
		if rec := doc.RefreshToken(refreshToken); rec != nil {
			owner = rec.UserID
		}
		removed = doc.RemoveRefreshToken(refreshToken)
		return removed > 0, nil
	})
	if err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, owner, nil, func() map[string]string {
		return map[string]string{
			"removed": fmt.Sprint(removed),
		}
	})
	return nil
}
