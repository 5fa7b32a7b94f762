package internaldefs

import (
	"github.com/MrEthical07/credstore"
)

// CounterDef names one engine counter for exporters. Name is the flat
// Prometheus name; Operation and Outcome label the same value for exporters
// that group counters by attribute.
type CounterDef struct {
	ID        credstore.MetricID
	Name      string
	Help      string
	Operation string
	Outcome   string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   credstore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: credstore.MetricRegisterSuccess, Name: "credstore_register_success_total", Help: "Accounts created.", Operation: "register", Outcome: "success"},
	{ID: credstore.MetricRegisterDuplicate, Name: "credstore_register_duplicate_total", Help: "Registrations rejected for a taken username or email.", Operation: "register", Outcome: "duplicate"},
	{ID: credstore.MetricLoginSuccess, Name: "credstore_login_success_total", Help: "Successful logins.", Operation: "login", Outcome: "success"},
	{ID: credstore.MetricLoginFailure, Name: "credstore_login_failure_total", Help: "Failed logins.", Operation: "login", Outcome: "failure"},
	{ID: credstore.MetricAccessTokenRejected, Name: "credstore_access_token_rejected_total", Help: "Access tokens that failed verification.", Operation: "verify_access", Outcome: "rejected"},
	{ID: credstore.MetricRefreshSuccess, Name: "credstore_refresh_success_total", Help: "Access tokens issued from a refresh token.", Operation: "refresh", Outcome: "success"},
	{ID: credstore.MetricRefreshFailure, Name: "credstore_refresh_failure_total", Help: "Refresh attempts with an unknown or invalid token.", Operation: "refresh", Outcome: "failure"},
	{ID: credstore.MetricRefreshExpired, Name: "credstore_refresh_expired_total", Help: "Refresh attempts with an expired token.", Operation: "refresh", Outcome: "expired"},
	{ID: credstore.MetricLogout, Name: "credstore_logout_total", Help: "Refresh token revocations.", Operation: "logout", Outcome: "success"},
	{ID: credstore.MetricPasswordChangeSuccess, Name: "credstore_password_change_success_total", Help: "Successful password changes.", Operation: "password_change", Outcome: "success"},
	{ID: credstore.MetricPasswordChangeInvalidOld, Name: "credstore_password_change_invalid_old_total", Help: "Password changes rejected for a wrong current password.", Operation: "password_change", Outcome: "invalid_old"},
	{ID: credstore.MetricPasswordResetRequest, Name: "credstore_password_reset_request_total", Help: "Reset tokens issued.", Operation: "password_reset_request", Outcome: "success"},
	{ID: credstore.MetricPasswordResetConfirmSuccess, Name: "credstore_password_reset_confirm_success_total", Help: "Reset tokens consumed.", Operation: "password_reset_confirm", Outcome: "success"},
	{ID: credstore.MetricPasswordResetConfirmFailure, Name: "credstore_password_reset_confirm_failure_total", Help: "Reset confirmations rejected.", Operation: "password_reset_confirm", Outcome: "failure"},
	{ID: credstore.MetricCleanupRefreshRemoved, Name: "credstore_cleanup_refresh_removed_total", Help: "Expired refresh records purged.", Operation: "cleanup", Outcome: "refresh_removed"},
	{ID: credstore.MetricCleanupResetRemoved, Name: "credstore_cleanup_reset_removed_total", Help: "Expired reset records purged.", Operation: "cleanup", Outcome: "reset_removed"},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: credstore.MetricStoreLatency, Name: "credstore_store_latency_seconds", Help: "Time spent in store requests."},
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const (
	AuditDroppedName = "credstore_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// HistogramBounds are the upper bounds, in seconds, of the engine's
// fixed latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds as metric-name safe suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
