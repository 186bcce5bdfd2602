package authcore

import (
	"sync/atomic"
)

// MetricID identifies a counter tracked by the engine.
type MetricID uint16

const (
	// MetricSetupRequested counts two-factor enrollments started.
	MetricSetupRequested MetricID = iota
	// MetricSetupConfirmed counts enrollments completed by a valid code.
	MetricSetupConfirmed
	// MetricChallengeCreated counts login challenges issued.
	MetricChallengeCreated
	// MetricChallengeSuccess counts challenges passed.
	MetricChallengeSuccess
	// MetricChallengeFailure counts challenges failed on a wrong code.
	MetricChallengeFailure
	// MetricLockoutTriggered counts verifications rejected by the attempt limiter.
	MetricLockoutTriggered
	// MetricBackupCodeUsed counts single-use backup codes consumed.
	MetricBackupCodeUsed
	// MetricBackupCodeRegenerated counts backup code set replacements.
	MetricBackupCodeRegenerated
	// MetricTwoFactorDisabled counts enrollments torn down.
	MetricTwoFactorDisabled
	// MetricTokenIssued counts access/refresh pairs issued at login.
	MetricTokenIssued
	// MetricRefreshSuccess counts access tokens minted from a refresh token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricValidateSuccess counts access tokens accepted by Validate.
	MetricValidateSuccess
	// MetricValidateRejected counts access tokens rejected by Validate.
	MetricValidateRejected
	// MetricTokenBlacklisted counts individual tokens revoked before expiry.
	MetricTokenBlacklisted
	// MetricEpochRevocation counts whole-account revocation epoch bumps.
	MetricEpochRevocation
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's counters. Increments are lock-free; each
// counter sits on its own cache line to avoid false sharing on hot paths.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates the counter set. A disabled instance accepts
// increments and discards them.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments a single counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Counters are read individually, so the
// snapshot is not a single atomic cut across all of them.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
