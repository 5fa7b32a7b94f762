package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/credstore/store"
)

// AuthResult is the flow-local authenticate response.
type AuthResult struct {
	User         store.User
	AccessToken  string
	RefreshToken string
}

// RunAuthenticate checks a username-or-email and password pair, mints an
// access and refresh token and persists the refresh record.
func RunAuthenticate(ctx context.Context, identity, password string, deps Deps) (*AuthResult, error) {
	if !normalize(&deps) || deps.VerifyPassword == nil || deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if identity == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.CredentialsRequired, nil)
		return nil, deps.Errors.CredentialsRequired
	}
	identity = strings.ToLower(identity)

	var (
		user  store.User
		found bool
	)
	err := deps.View(ctx, func(doc *store.Document) error {
		if u := doc.UserByIdentity(identity); u != nil {
			user = *u
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Unknown identity and wrong password are indistinguishable to the caller.
	if !found || !deps.VerifyPassword(password, user.Password) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identity,
			}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	now := deps.Now()
	access, err := deps.IssueToken(user.ID, TokenTypeAccess, deps.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := deps.IssueToken(user.ID, TokenTypeRefresh, deps.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	record := store.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: unix(now.Add(deps.RefreshTTL)),
	}
	err = deps.Update(ctx, func(doc *store.Document) (bool, error) {
		doc.AddRefreshToken(record)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, nil, nil)

	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
