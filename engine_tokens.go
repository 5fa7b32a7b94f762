package credstore

import (
	"context"

	"github.com/MrEthical07/credstore/internal/flows"
)

// RefreshAccessToken issues a new access token for the owner of a persisted,
// unexpired refresh token. The refresh token is not rotated. An expired
// record is deleted before refresh_token_expired is returned.
func (e *Engine) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	access, err := flows.RunRefresh(ctx, refreshToken, e.flows)
	if err != nil {
		return nil, storeErr(err)
	}
	return &RefreshResult{AccessToken: access}, nil
}

// RevokeRefreshToken deletes every record for refreshToken. Unknown tokens
// are not an error.
func (e *Engine) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return storeErr(flows.RunRevoke(ctx, refreshToken, e.flows))
}
