package httpapi

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ResetNotifier delivers a raw reset token to its owner out of band.
type ResetNotifier interface {
	DeliverResetToken(ctx context.Context, email, token string, expiresAt time.Time) error
}

// NotifierFunc adapts a function to ResetNotifier.
type NotifierFunc func(ctx context.Context, email, token string, expiresAt time.Time) error

func (f NotifierFunc) DeliverResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	return f(ctx, email, token, expiresAt)
}

// LogNotifier writes reset tokens to a logger. Development only: the raw
// token ends up in the log.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) DeliverResetToken(_ context.Context, email, token string, expiresAt time.Time) error {
	log := n.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"email":       email,
		"reset_token": token,
		"expires_at":  expiresAt.UTC().Format(time.RFC3339),
	}).Warn("httpapi: password reset token issued (LogNotifier, development only)")
	return nil
}
