package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) (*revocationLedger, func() error, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	ledger := newRevocationLedger(rdb, "ac", 720*time.Hour, zap.NewNop())
	return ledger, func() error { mr.Close(); return nil }, func() { mr.Close() }
}

func TestBlacklistAndLookup(t *testing.T) {
	ledger, _, done := newTestLedger(t)
	defer done()

	ctx := context.Background()
	if ledger.IsBlacklisted(ctx, "jti-1") {
		t.Fatal("expected clean jti")
	}

	if err := ledger.Blacklist(ctx, "jti-1", time.Minute, "logout"); err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}
	if !ledger.IsBlacklisted(ctx, "jti-1") {
		t.Fatal("expected jti blacklisted")
	}
	if ledger.IsBlacklisted(ctx, "jti-2") {
		t.Fatal("expected unrelated jti clean")
	}
}

func TestBlacklistNoOpInputs(t *testing.T) {
	ledger, _, done := newTestLedger(t)
	defer done()

	ctx := context.Background()
	if err := ledger.Blacklist(ctx, "", time.Minute, "logout"); err != nil {
		t.Fatalf("expected empty jti no-op, got %v", err)
	}
	if err := ledger.Blacklist(ctx, "jti-1", 0, "logout"); err != nil {
		t.Fatalf("expected zero ttl no-op, got %v", err)
	}
	if ledger.IsBlacklisted(ctx, "jti-1") {
		t.Fatal("expected no entry written for zero ttl")
	}
}

func TestBlacklistEmptyJTISkipsLookup(t *testing.T) {
	ledger, closeRedis, _ := newTestLedger(t)
	_ = closeRedis()

	// No network hop happens for an empty jti, so a dead backend is fine.
	if ledger.IsBlacklisted(context.Background(), "") {
		t.Fatal("expected empty jti never blacklisted")
	}
}

func TestBlacklistWriteFailsLoud(t *testing.T) {
	ledger, closeRedis, _ := newTestLedger(t)
	_ = closeRedis()

	err := ledger.Blacklist(context.Background(), "jti-1", time.Minute, "logout")
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}

	err = ledger.BlacklistAllUserTokens(context.Background(), "u1")
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
}

func TestBlacklistReadsFailOpen(t *testing.T) {
	ledger, closeRedis, _ := newTestLedger(t)

	ctx := context.Background()
	if err := ledger.Blacklist(ctx, "jti-1", time.Minute, "logout"); err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}
	_ = closeRedis()

	if ledger.IsBlacklisted(ctx, "jti-1") {
		t.Fatal("expected fail-open read")
	}
	if ledger.IsUserTokenBlacklisted(ctx, "u1", time.Now()) {
		t.Fatal("expected fail-open epoch read")
	}
}

func TestUserEpochSemantics(t *testing.T) {
	ledger, _, done := newTestLedger(t)
	defer done()

	ctx := context.Background()
	if ledger.IsUserTokenBlacklisted(ctx, "u1", time.Now().Add(-time.Hour)) {
		t.Fatal("expected no epoch before revocation")
	}

	if err := ledger.BlacklistAllUserTokens(ctx, "u1"); err != nil {
		t.Fatalf("BlacklistAllUserTokens failed: %v", err)
	}

	if !ledger.IsUserTokenBlacklisted(ctx, "u1", time.Now().Add(-time.Hour)) {
		t.Fatal("expected pre-epoch issuance rejected")
	}
	if ledger.IsUserTokenBlacklisted(ctx, "u1", time.Now().Add(time.Hour)) {
		t.Fatal("expected post-epoch issuance accepted")
	}
	if ledger.IsUserTokenBlacklisted(ctx, "u2", time.Now().Add(-time.Hour)) {
		t.Fatal("expected other user unaffected")
	}
}

func TestUserEpochExpiresWithRefreshTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	epochTTL := time.Hour
	ledger := newRevocationLedger(rdb, "ac", epochTTL, zap.NewNop())
	ctx := context.Background()

	if err := ledger.BlacklistAllUserTokens(ctx, "u1"); err != nil {
		t.Fatalf("BlacklistAllUserTokens failed: %v", err)
	}
	if !ledger.IsUserTokenBlacklisted(ctx, "u1", time.Now().Add(-time.Minute)) {
		t.Fatal("expected epoch active")
	}

	// Once every token issued before the epoch has aged out, the epoch key
	// itself expires.
	mr.FastForward(epochTTL + time.Second)

	if ledger.IsUserTokenBlacklisted(ctx, "u1", time.Now().Add(-time.Minute)) {
		t.Fatal("expected epoch expired")
	}
}
