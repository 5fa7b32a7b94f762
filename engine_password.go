package credstore

import (
	"context"

	"github.com/MrEthical07/credstore/internal/flows"
	"github.com/MrEthical07/credstore/store"
)

// ChangePassword replaces the password of userID after verifying
// oldPassword.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return storeErr(flows.RunChangePassword(ctx, userID, oldPassword, newPassword, e.flows))
}

// setPassword overwrites the stored password form without checking the
// current one. Only reset-token consumption reaches it.
func (e *Engine) setPassword(doc *store.Document, userID, stored string) bool {
	u := doc.UserByID(userID)
	if u == nil {
		return false
	}
	u.Password = stored
	return true
}
