package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/credstore/store"
)

// RunRegister validates, de-duplicates and persists a new user. The returned
// record still carries the stored password form; callers project it.
func RunRegister(ctx context.Context, username, email, password string, deps Deps) (*store.User, error) {
	if !normalize(&deps) || deps.HashPassword == nil || deps.NewID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if username == "" || email == "" || password == "" {
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", deps.Errors.CredentialsRequired, nil)
		return nil, deps.Errors.CredentialsRequired
	}

	username = strings.ToLower(username)
	email = strings.ToLower(email)

	// Reject duplicates before paying for the hash; Update re-checks.
	err := deps.View(ctx, func(doc *store.Document) error {
		return duplicateUser(doc, username, email, deps.Errors)
	})
	if err != nil {
		return nil, registerFailed(ctx, deps, username, err)
	}

	stored, err := deps.HashPassword(password)
	if err != nil {
		return nil, registerFailed(ctx, deps, username, fmt.Errorf("hash password: %w", err))
	}

	user := store.User{
		ID:        deps.NewID(),
		Username:  username,
		Email:     email,
		Password:  stored,
		CreatedAt: unix(deps.Now()),
	}

	err = deps.Update(ctx, func(doc *store.Document) (bool, error) {
		if err := duplicateUser(doc, username, email, deps.Errors); err != nil {
			return false, err
		}
		doc.AddUser(user)
		return true, nil
	})
	if err != nil {
		return nil, registerFailed(ctx, deps, username, err)
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, user.ID, nil, nil)
	return &user, nil
}

// duplicateUser reports username_taken ahead of email_taken.
func duplicateUser(doc *store.Document, username, email string, errs Errors) error {
	if doc.UserByUsername(username) != nil {
		return errs.UsernameTaken
	}
	if doc.UserByEmail(email) != nil {
		return errs.EmailTaken
	}
	return nil
}

func registerFailed(ctx context.Context, deps Deps, username string, err error) error {
	if errors.Is(err, deps.Errors.UsernameTaken) || errors.Is(err, deps.Errors.EmailTaken) {
		deps.MetricInc(deps.Metrics.RegisterDuplicate)
	}
	deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
		return map[string]string{
			"username": username,
		}
	})
	return err
}
