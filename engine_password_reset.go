package credstore

import (
	"context"

	"github.com/MrEthical07/credstore/internal/flows"
)

// GenerateResetToken issues a reset token for the user owning email. Only
// the HMAC digest of the token is persisted; delivering the raw token is the
// caller's job.
func (e *Engine) GenerateResetToken(ctx context.Context, email string) (*ResetTokenResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	issue, err := flows.RunGenerateReset(ctx, email, e.flows)
	if err != nil {
		return nil, storeErr(err)
	}
	return &ResetTokenResult{
		ResetToken: issue.Token,
		ExpiresAt:  issue.ExpiresAt,
	}, nil
}

// VerifyResetToken returns the owner of a live reset token without consuming
// it. found is false for unknown or expired tokens; an expired record is
// deleted. err is reserved for storage failures.
func (e *Engine) VerifyResetToken(ctx context.Context, rawToken string) (userID string, found bool, err error) {
	if !e.ready() {
		return "", false, ErrEngineNotReady
	}
	userID, found, err = flows.RunVerifyReset(ctx, rawToken, e.flows)
	return userID, found, storeErr(err)
}

// ConsumeResetToken sets the password of the token's owner and voids every
// outstanding reset token of that user.
func (e *Engine) ConsumeResetToken(ctx context.Context, rawToken, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return storeErr(flows.RunConsumeReset(ctx, rawToken, newPassword, e.flows))
}
