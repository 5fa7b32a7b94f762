package credstore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/credstore/internal"
	internalaudit "github.com/MrEthical07/credstore/internal/audit"
	"github.com/MrEthical07/credstore/internal/flows"
	"github.com/MrEthical07/credstore/jwt"
	"github.com/MrEthical07/credstore/password"
	"github.com/MrEthical07/credstore/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine is the credential store and token service. Build it with
// [Builder.Build]; every method is safe for concurrent use.
type Engine struct {
	config  Config
	secret  []byte
	store   *store.Store
	hasher  *password.Argon2
	tokens  *jwt.Manager
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	log     logrus.FieldLogger
	now     func() time.Time
	flows   flows.Deps
	closed  atomic.Bool
}

// Close stops the store goroutine, closes the backend and drains pending
// audit events. Calls after the first return nil.
func (e *Engine) Close() error {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := e.store.Close()
	e.audit.Close()
	return err
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && !e.closed.Load()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
PASSWORDS AND TOKENS
====================================
*/

// HashPassword returns the stored form "saltHex$keyHex" of pw.
func (e *Engine) HashPassword(pw string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(pw)
}

// VerifyPassword reports whether pw matches stored. Malformed or empty input
// yields false.
func (e *Engine) VerifyPassword(pw, stored string) bool {
	if e == nil || e.hasher == nil {
		return false
	}
	return e.hasher.Verify(pw, stored)
}

// CreateToken signs claims with iat=now and exp=now+ttl.
func (e *Engine) CreateToken(claims jwt.Claims, ttl time.Duration) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	return e.tokens.Create(claims, ttl)
}

// VerifyToken returns the payload of a well-formed, correctly signed,
// unexpired token. Any failure yields (nil, false).
func (e *Engine) VerifyToken(token string) (jwt.Claims, bool) {
	if e == nil || e.tokens == nil {
		return nil, false
	}
	claims, err := e.tokens.Verify(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// VerifyAccessToken is VerifyToken restricted to access tokens. It never
// touches storage.
func (e *Engine) VerifyAccessToken(token string) (jwt.Claims, bool) {
	claims, ok := e.VerifyToken(token)
	if !ok || claims.Type() != TokenTypeAccess || claims.Subject() == "" {
		if e != nil && token != "" {
			e.metricInc(MetricAccessTokenRejected)
		}
		return nil, false
	}
	return claims, true
}

func (e *Engine) issueToken(subject, tokenType string, ttl time.Duration) (string, error) {
	return e.tokens.Create(jwt.Claims{
		jwt.ClaimSubject: subject,
		jwt.ClaimType:    tokenType,
		jwt.ClaimID:      uuid.NewString(),
	}, ttl)
}

func (e *Engine) parseToken(token string) (string, string, bool) {
	claims, ok := e.VerifyToken(token)
	if !ok {
		return "", "", false
	}
	return claims.Subject(), claims.Type(), true
}

/*
====================================
FLOW WIRING
====================================
*/

func (e *Engine) view(ctx context.Context, fn func(*store.Document) error) error {
	start := time.Now()
	err := e.store.View(ctx, fn)
	e.metrics.Observe(MetricStoreLatency, time.Since(start))
	return err
}

func (e *Engine) update(ctx context.Context, fn store.ApplyFunc) error {
	start := time.Now()
	err := e.store.Update(ctx, fn)
	e.metrics.Observe(MetricStoreLatency, time.Since(start))
	return err
}

func (e *Engine) digestResetToken(raw string) (string, error) {
	return internal.DigestToken(e.secret, raw)
}

func (e *Engine) flowDeps() flows.Deps {
	return flows.Deps{
		AccessTTL:  e.config.Token.AccessTTL,
		RefreshTTL: e.config.Token.RefreshTTL,
		ResetTTL:   e.config.PasswordReset.ResetTTL,

		View:   e.view,
		Update: e.update,
		Now:    e.now,
		NewID:  uuid.NewString,

		HashPassword:   e.hasher.Hash,
		VerifyPassword: e.hasher.Verify,
		IssueToken:     e.issueToken,
		ParseToken:     e.parseToken,

		NewResetToken:    internal.NewResetToken,
		DigestResetToken: e.digestResetToken,
		SetPassword:      e.setPassword,

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		MetricAdd: func(id, n int) { e.metrics.Add(MetricID(id), n) },
		EmitAudit: e.emitAudit,

		Metrics: flows.Metrics{
			RegisterSuccess:             int(MetricRegisterSuccess),
			RegisterDuplicate:           int(MetricRegisterDuplicate),
			LoginSuccess:                int(MetricLoginSuccess),
			LoginFailure:                int(MetricLoginFailure),
			RefreshSuccess:              int(MetricRefreshSuccess),
			RefreshFailure:              int(MetricRefreshFailure),
			RefreshExpired:              int(MetricRefreshExpired),
			Logout:                      int(MetricLogout),
			PasswordChangeSuccess:       int(MetricPasswordChangeSuccess),
			PasswordChangeInvalidOld:    int(MetricPasswordChangeInvalidOld),
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			CleanupRefreshRemoved:       int(MetricCleanupRefreshRemoved),
			CleanupResetRemoved:         int(MetricCleanupResetRemoved),
		},
		Events: flows.Events{
			RegisterSuccess:       auditEventRegisterSuccess,
			RegisterFailure:       auditEventRegisterFailure,
			LoginSuccess:          auditEventLoginSuccess,
			LoginFailure:          auditEventLoginFailure,
			RefreshSuccess:        auditEventRefreshSuccess,
			RefreshFailure:        auditEventRefreshFailure,
			Logout:                auditEventLogout,
			PasswordChangeSuccess: auditEventPasswordChangeSuccess,
			PasswordChangeFailure: auditEventPasswordChangeFailure,
			PasswordResetRequest:  auditEventPasswordResetRequest,
			PasswordResetConfirm:  auditEventPasswordResetConfirm,
			Cleanup:               auditEventCleanup,
		},
		Errors: flows.Errors{
			EngineNotReady:         ErrEngineNotReady,
			UsernameTaken:          ErrUsernameTaken,
			EmailTaken:             ErrEmailTaken,
			InvalidCredentials:     ErrInvalidCredentials,
			MissingRefreshToken:    ErrMissingRefreshToken,
			InvalidRefreshToken:    ErrInvalidRefreshToken,
			RefreshTokenExpired:    ErrRefreshTokenExpired,
			UserNotFound:           ErrUserNotFound,
			InvalidCurrentPassword: ErrInvalidCurrentPassword,
			MissingParams:          ErrMissingParams,
			InvalidResetToken:      ErrInvalidResetToken,
			CredentialsRequired:    ErrCredentialsRequired,
			EmailRequired:          ErrEmailRequired,
		},
	}
}

// storeErr maps a closed store to ErrEngineNotReady and passes everything
// else through.
func storeErr(err error) error {
	if errors.Is(err, store.ErrClosed) {
		return ErrEngineNotReady
	}
	return err
}
