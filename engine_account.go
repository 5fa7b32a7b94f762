package credstore

import (
	"context"

	"github.com/MrEthical07/credstore/internal/flows"
	"github.com/MrEthical07/credstore/store"
)

// Register creates a user. Username and email are lower-cased and must be
// unique; username_taken is reported ahead of email_taken.
func (e *Engine) Register(ctx context.Context, username, email, password string) (*PublicUser, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	u, err := flows.RunRegister(ctx, username, email, password, e.flows)
	if err != nil {
		return nil, storeErr(err)
	}
	pub := publicUser(u)
	return &pub, nil
}

// Authenticate checks a username-or-email and password and issues an access
// and a refresh token. Unknown identities and wrong passwords both fail with
// invalid_credentials.
func (e *Engine) Authenticate(ctx context.Context, usernameOrEmail, password string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunAuthenticate(ctx, usernameOrEmail, password, e.flows)
	if err != nil {
		return nil, storeErr(err)
	}
	return &AuthResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         publicUser(&res.User),
	}, nil
}

// GetUserByID returns the profile of user id, or nil without error when no
// such user exists.
func (e *Engine) GetUserByID(ctx context.Context, id string) (*UserProfile, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	u, err := flows.GetUser(ctx, id, e.flows)
	if err != nil {
		return nil, storeErr(err)
	}
	if u == nil {
		return nil, nil
	}
	return &UserProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}, nil
}

func publicUser(u *store.User) PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}
