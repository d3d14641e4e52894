package taskauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricRegisterSuccess counts created principals.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts registrations rejected for a taken e-mail or username.
	MetricRegisterDuplicate
	// MetricRegisterInvalid counts registrations rejected by validation.
	MetricRegisterInvalid
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess
	// MetricLoginFailure counts logins rejected for bad credentials.
	MetricLoginFailure
	// MetricLoginLocked counts logins rejected for a locked principal.
	MetricLoginLocked
	// MetricLoginDisabled counts logins rejected for a disabled principal.
	MetricLoginDisabled
	// MetricPasswordUpgraded counts hashes rewritten on login.
	MetricPasswordUpgraded
	// MetricRefreshSuccess counts access tokens issued from a refresh token.
	MetricRefreshSuccess
	// MetricRefreshInvalid counts unknown refresh tokens.
	MetricRefreshInvalid
	// MetricRefreshExpired counts expired refresh tokens presented.
	MetricRefreshExpired
	// MetricLogout counts logouts.
	MetricLogout
	// MetricRateLimitHit counts requests refused by the limiter.
	MetricRateLimitHit
	// MetricAccessRejected counts bearer tokens that failed verification.
	MetricAccessRejected
	// MetricPasswordResetRequest counts issued reset tokens.
	MetricPasswordResetRequest
	// MetricPasswordResetConfirmSuccess counts consumed reset tokens.
	MetricPasswordResetConfirmSuccess
	// MetricPasswordResetConfirmFailure counts rejected reset confirmations.
	MetricPasswordResetConfirmFailure
	// MetricAccountLocked counts lock transitions.
	MetricAccountLocked
	// MetricAccountDisabled counts disable transitions.
	MetricAccountDisabled
	// MetricTokensPurged counts refresh and reset tokens removed by PurgeExpired.
	MetricTokensPurged
	// MetricValidateLatency records access-token verification latency.
	MetricValidateLatency
	metricIDCount
)

// String returns the snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

var metricNames = [metricIDCount]string{
	MetricRegisterSuccess:             "register_success",
	MetricRegisterDuplicate:           "register_duplicate",
	MetricRegisterInvalid:             "register_invalid",
	MetricLoginSuccess:                "login_success",
	MetricLoginFailure:                "login_failure",
	MetricLoginLocked:                 "login_locked",
	MetricLoginDisabled:               "login_disabled",
	MetricPasswordUpgraded:            "password_upgraded",
	MetricRefreshSuccess:              "refresh_success",
	MetricRefreshInvalid:              "refresh_invalid",
	MetricRefreshExpired:              "refresh_expired",
	MetricLogout:                      "logout",
	MetricRateLimitHit:                "rate_limit_hit",
	MetricAccessRejected:              "access_rejected",
	MetricPasswordResetRequest:        "password_reset_request",
	MetricPasswordResetConfirmSuccess: "password_reset_confirm_success",
	MetricPasswordResetConfirmFailure: "password_reset_confirm_failure",
	MetricAccountLocked:               "account_locked",
	MetricAccountDisabled:             "account_disabled",
	MetricTokensPurged:                "tokens_purged",
	MetricValidateLatency:             "validate_latency",
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the upper bounds of the latency buckets. The last
// bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil or disabled Metrics
// ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram of id. Only MetricValidateLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. A disabled Metrics returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricValidateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
