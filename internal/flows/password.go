package flows

import (
	"context"
	"fmt"

	"github.com/MrEthical07/credstore/store"
)

// RunChangePassword replaces a user's password after checking the current one.
//
// Verification and hashing run outside the store goroutine. The write only
// lands if the stored form is still the one that was verified; a concurrent
// change in between fails with invalid_current_password.
func RunChangePassword(ctx context.Context, userID, oldPassword, newPassword string, deps Deps) error {
	if !normalize(&deps) || deps.VerifyPassword == nil || deps.HashPassword == nil {
		return deps.Errors.EngineNotReady
	}

	if userID == "" || oldPassword == "" || newPassword == "" {
		return changeFailed(ctx, deps, userID, deps.Errors.MissingParams)
	}

	var (
		current string
		found   bool
	)
	err := deps.View(ctx, func(doc *store.Document) error {
		if u := doc.UserByID(userID); u != nil {
			current = u.Password
			found = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return changeFailed(ctx, deps, userID, deps.Errors.UserNotFound)
	}
	if !deps.VerifyPassword(oldPassword, current) {
		deps.MetricInc(deps.Metrics.PasswordChangeInvalidOld)
		return changeFailed(ctx, deps, userID, deps.Errors.InvalidCurrentPassword)
	}

	stored, err := deps.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = deps.Update(ctx, func(doc *store.Document) (bool, error) {
		u := doc.UserByID(userID)
		if u == nil {
			return false, deps.Errors.UserNotFound
		}
		if u.Password != current {
			return false, deps.Errors.InvalidCurrentPassword
		}
		u.Password = stored
		return true, nil
	})
	if err != nil {
		return changeFailed(ctx, deps, userID, err)
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChangeSuccess, true, userID, nil, nil)
	return nil
}

func changeFailed(ctx context.Context, deps Deps, userID string, err error) error {
	deps.EmitAudit(ctx, deps.Events.PasswordChangeFailure, false, userID, err, nil)
	return err
}
