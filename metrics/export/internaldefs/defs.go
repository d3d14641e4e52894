package internaldefs

import (
	"github.com/MrEthical07/taskauth"
)

// CounterDef names one taskauth counter for exporters.
type CounterDef struct {
	ID   taskauth.MetricID
	Name string
	Help string
}

// HistogramDef names one taskauth histogram for exporters.
type HistogramDef struct {
	ID   taskauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: taskauth.MetricRegisterSuccess, Name: "taskauth_register_success_total", Help: "Registered principals."},
	{ID: taskauth.MetricRegisterDuplicate, Name: "taskauth_register_duplicate_total", Help: "Registrations rejected for a taken email or username."},
	{ID: taskauth.MetricRegisterInvalid, Name: "taskauth_register_invalid_total", Help: "Registrations rejected by input validation."},
	{ID: taskauth.MetricLoginSuccess, Name: "taskauth_login_success_total", Help: "Successful logins."},
	{ID: taskauth.MetricLoginFailure, Name: "taskauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: taskauth.MetricLoginLocked, Name: "taskauth_login_locked_total", Help: "Logins rejected for a locked account."},
	{ID: taskauth.MetricLoginDisabled, Name: "taskauth_login_disabled_total", Help: "Logins rejected for a disabled account."},
	{ID: taskauth.MetricPasswordUpgraded, Name: "taskauth_password_upgraded_total", Help: "Password hashes rewritten with current parameters on login."},
	{ID: taskauth.MetricRefreshSuccess, Name: "taskauth_refresh_success_total", Help: "Access tokens issued from a refresh token."},
	{ID: taskauth.MetricRefreshInvalid, Name: "taskauth_refresh_invalid_total", Help: "Unknown refresh tokens presented."},
	{ID: taskauth.MetricRefreshExpired, Name: "taskauth_refresh_expired_total", Help: "Expired refresh tokens presented."},
	{ID: taskauth.MetricLogout, Name: "taskauth_logout_total", Help: "Logout operations."},
	{ID: taskauth.MetricRateLimitHit, Name: "taskauth_rate_limit_hit_total", Help: "Requests refused by the rate limiter."},
	{ID: taskauth.MetricAccessRejected, Name: "taskauth_access_rejected_total", Help: "Bearer tokens that failed verification."},
	{ID: taskauth.MetricPasswordResetRequest, Name: "taskauth_password_reset_request_total", Help: "Issued password reset tokens."},
	{ID: taskauth.MetricPasswordResetConfirmSuccess, Name: "taskauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: taskauth.MetricPasswordResetConfirmFailure, Name: "taskauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: taskauth.MetricAccountLocked, Name: "taskauth_account_locked_total", Help: "Account lock operations."},
	{ID: taskauth.MetricAccountDisabled, Name: "taskauth_account_disabled_total", Help: "Account disable operations."},
	{ID: taskauth.MetricTokensPurged, Name: "taskauth_tokens_purged_total", Help: "Expired refresh and reset tokens removed by the janitor."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: taskauth.MetricValidateLatency, Name: "taskauth_validate_latency_seconds", Help: "Access token verification latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "taskauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the le labels matching taskauth.HistogramBounds plus +Inf.
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

// HistogramBoundSuffix are instrument-name-safe spellings of HistogramBounds.
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

// NormalizeBuckets copies raw into a fixed array, truncating or zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
