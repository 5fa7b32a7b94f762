package credstore

import (
	"context"

	"github.com/MrEthical07/credstore/internal/flows"
	"github.com/sirupsen/logrus"
)

// CleanupExpired removes every expired refresh and reset record. Run it
// periodically; expiry is also enforced lazily by the token operations.
func (e *Engine) CleanupExpired(ctx context.Context) (*CleanupResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunCleanup(ctx, e.flows)
	if err != nil {
		return nil, storeErr(err)
	}
	if res.RefreshTokens+res.ResetTokens > 0 {
		e.log.WithFields(logrus.Fields{
			"refresh_removed": res.RefreshTokens,
			"reset_removed":   res.ResetTokens,
		}).Info("credstore: expired records removed")
	}
	return &CleanupResult{
		RefreshTokensRemoved: res.RefreshTokens,
		ResetTokensRemoved:   res.ResetTokens,
	}, nil
}
