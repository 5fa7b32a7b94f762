package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credstore/internal"
	internalaudit "github.com/MrEthical07/credstore/internal/audit"
	"github.com/MrEthical07/credstore/jwt"
	"github.com/MrEthical07/credstore/password"
	"github.com/MrEthical07/credstore/store"
	"github.com/sirupsen/logrus"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config    Config
	backend   store.Backend
	log       logrus.FieldLogger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets where the credential document is persisted. Required.
func (b *Builder) WithBackend(backend store.Backend) *Builder {
	b.backend = backend
	return b
}

// WithSecret sets the HMAC secret for tokens and reset-token digests.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = cloneBytes(secret)
	return b
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// withClock overrides the engine clock; tests only.
func (b *Builder) withClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build is BuildContext with a background context.
func (b *Builder) Build() (*Engine, error) {
	return b.BuildContext(context.Background())
}

// BuildContext validates the configuration, opens the store (creating an
// empty document when none exists) and returns a ready Engine.
//
// When no secret is configured a random 64-byte secret is generated and a
// warning is logged: tokens issued by this engine will not verify after a
// restart.
func (b *Builder) BuildContext(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if b.backend == nil {
		return nil, errors.New("store backend required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SECRET --------
	secret := cloneBytes(cfg.Token.Secret)
	if len(secret) == 0 {
		generated, err := internal.NewSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret = generated
		log.WithField("secret_bytes", len(secret)).
			Warn("credstore: no token secret configured, generated an ephemeral one; issued tokens will not survive a restart")
	} else if len(secret) < jwt.RecommendedSecretBytes {
		log.WithFields(logrus.Fields{
			"secret_bytes": len(secret),
			"recommended":  jwt.RecommendedSecretBytes,
		}).Warn("credstore: token secret is shorter than recommended")
	}
	cfg.Token.Secret = nil

	// -------- PRIMITIVES --------
	hasher, err := password.NewArgon2(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret: secret,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	// -------- STORE --------
	st, err := store.Open(ctx, b.backend, store.WithLogger(log))
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		secret:  secret,
		store:   st,
		hasher:  hasher,
		tokens:  tokens,
		metrics: NewMetrics(cfg.Metrics),
		log:     log,
		now:     now,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     engine.onAuditDrop,
	}, b.auditSink)
	engine.flows = engine.flowDeps()

	b.built = true

	log.WithFields(logrus.Fields{
		"access_ttl":  cfg.Token.AccessTTL,
		"refresh_ttl": cfg.Token.RefreshTTL,
		"reset_ttl":   cfg.PasswordReset.ResetTTL,
		"audit":       cfg.Audit.Enabled,
	}).Debug("credstore: engine ready")

	return engine, nil
}
