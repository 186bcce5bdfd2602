package authcore

import (
	"github.com/valtrade/authcore/internal/audit"
	"github.com/valtrade/authcore/internal/secretbox"
	"github.com/valtrade/authcore/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Engine is the authentication trust core. It owns token issuance and
// validation, the two-layer revocation ledger, and the full two-factor
// lifecycle. All persistent state lives behind Store and UserProvider;
// ephemeral state (pending setups, login challenges, lockout counters,
// revocations) lives in Redis.
//
// An Engine is built once via Builder and is safe for concurrent use.
type Engine struct {
	config     Config
	logger     *zap.Logger
	store      Store
	users      UserProvider
	blacklist  *revocationLedger
	setupStore *setupStore
	challenges *challengeStore
	lockout    *failedAttemptLimiter
	secrets    *secretbox.Box
	jwtManager *jwt.Manager
	audit      *audit.Dispatcher
	metrics    *Metrics
}

// Close flushes and stops the audit dispatcher. The durable audit trail in
// Store is written synchronously and needs no flushing.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many observer audit events were discarded
// because the dispatcher buffer was full. Durable audit writes are never
// dropped.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) verifyPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordInvalid
	}
	return nil
}
