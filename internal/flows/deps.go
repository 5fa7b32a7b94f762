package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/credstore/store"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Metrics carries the host metric IDs a flow increments.
type Metrics struct {
	RegisterSuccess             int
	RegisterDuplicate           int
	LoginSuccess                int
	LoginFailure                int
	RefreshSuccess              int
	RefreshFailure              int
	RefreshExpired              int
	Logout                      int
	PasswordChangeSuccess       int
	PasswordChangeInvalidOld    int
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	CleanupRefreshRemoved       int
	CleanupResetRemoved         int
}

// Events carries audit event names.
type Events struct {
	RegisterSuccess       string
	RegisterFailure       string
	LoginSuccess          string
	LoginFailure          string
	RefreshSuccess        string
	RefreshFailure        string
	Logout                string
	PasswordChangeSuccess string
	PasswordChangeFailure string
	PasswordResetRequest  string
	PasswordResetConfirm  string
	Cleanup               string
}

// Errors carries host-level sentinel errors.
type Errors struct {
	EngineNotReady         error
	UsernameTaken          error
	EmailTaken             error
	InvalidCredentials     error
	MissingRefreshToken    error
	InvalidRefreshToken    error
	RefreshTokenExpired    error
	UserNotFound           error
	InvalidCurrentPassword error
	MissingParams          error
	InvalidResetToken      error
	CredentialsRequired    error
	EmailRequired          error
}

// Deps captures everything the flows need from the Engine.
type Deps struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	View   func(context.Context, func(*store.Document) error) error
	Update func(context.Context, store.ApplyFunc) error

	Now   func() time.Time
	NewID func() string

	HashPassword   func(string) (string, error)
	VerifyPassword func(password, stored string) bool

	// IssueToken mints a signed token of tokenType for subject.
	IssueToken func(subject, tokenType string, ttl time.Duration) (string, error)
	// ParseToken verifies token and returns its subject and type.
	ParseToken func(token string) (subject, tokenType string, ok bool)

	NewResetToken    func() (string, error)
	DigestResetToken func(string) (string, error)

	// SetPassword overwrites the stored password form of userID inside doc.
	// It is the only path that replaces a password without the current one.
	SetPassword func(doc *store.Document, userID, stored string) bool

	MetricInc func(int)
	MetricAdd func(int, int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func normalize(deps *Deps) bool {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = func(int, int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	return deps.View != nil && deps.Update != nil
}

func unix(t time.Time) int64 {
	return t.Unix()
}
