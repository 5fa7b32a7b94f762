package credstore

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/credstore/internal/audit"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one security-relevant engine outcome.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel; useful in tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogrusSink writes audit events as structured log entries.
type LogrusSink = internalaudit.LogrusSink

func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

func NewLogrusSink(log logrus.FieldLogger) *LogrusSink { return internalaudit.NewLogrusSink(log) }

const (
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterFailure     = "register_failure"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventLogout              = "logout"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventCleanup             = "cleanup_expired"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		code := CodeOf(err)
		if code == CodeUnknown {
			event.Error = "internal_error"
		} else {
			event.Error = code.String()
		}
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) onAuditDrop(event AuditEvent) {
	e.log.WithField("audit_event", event.EventType).Warn("credstore: audit buffer full, event dropped")
}

// AuditDropped reports events dropped because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}
