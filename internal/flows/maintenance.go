package flows

import (
	"context"
	"fmt"

	"github.com/MrEthical07/credstore/store"
)

// CleanupResult counts records removed by one sweep.
type CleanupResult struct {
	RefreshTokens int
	ResetTokens   int
}

// RunCleanup removes expired refresh and reset records.
func RunCleanup(ctx context.Context, deps Deps) (CleanupResult, error) {
	if !normalize(&deps) {
		return CleanupResult{}, deps.Errors.EngineNotReady
	}

	var res CleanupResult
	err := deps.Update(ctx, func(doc *store.Document) (bool, error) {
		res.RefreshTokens, res.ResetTokens = doc.PurgeExpired(unix(deps.Now()))
		return res.RefreshTokens+res.ResetTokens > 0, nil
	})
	if err != nil {
		return CleanupResult{}, err
	}

	deps.MetricAdd(deps.Metrics.CleanupRefreshRemoved, res.RefreshTokens)
	deps.MetricAdd(deps.Metrics.CleanupResetRemoved, res.ResetTokens)
	if res.RefreshTokens+res.ResetTokens > 0 {
		deps.EmitAudit(ctx, deps.Events.Cleanup, true, "", nil, func() map[string]string {
			return map[string]string{
				"refresh_removed": fmt.Sprint(res.RefreshTokens),
				"reset_removed":   fmt.Sprint(res.ResetTokens),
			}
		})
	}
	return res, nil
}

// GetUser returns a copy of the user with id, or nil when absent.
func GetUser(ctx context.Context, id string, deps Deps) (*store.User, error) {
	if !normalize(&deps) {
		return nil, deps.Errors.EngineNotReady
	}
	if id == "" {
		return nil, nil
	}

	var user *store.User
	err := deps.View(ctx, func(doc *store.Document) error {
		if u := doc.UserByID(id); u != nil {
			cp := *u
			user = &cp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
