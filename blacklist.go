package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// revocationEntry is the value stored per blacklisted jti.
type revocationEntry struct {
	RevokedAt int64  `json:"revoked_at"`
	Reason    string `json:"reason,omitempty"`
}

// revocationLedger records individually revoked token ids and per-user
// revocation epochs in Redis. Reads fail open: the primary defense is
// signature and expiry validation, so an unavailable ledger must not take
// request handling down with it. Writes fail loud.
type revocationLedger struct {
	redis  redis.UniversalClient
	prefix string
	logger *zap.Logger
	// epochTTL bounds epoch retention; it equals the maximum refresh-token
	// lifetime, past which every older token has expired anyway.
	epochTTL time.Duration
}

func newRevocationLedger(redisClient redis.UniversalClient, prefix string, epochTTL time.Duration, logger *zap.Logger) *revocationLedger {
	if prefix == "" {
		prefix = "ac"
	}
	return &revocationLedger{
		redis:    redisClient,
		prefix:   prefix,
		logger:   logger,
		epochTTL: epochTTL,
	}
}

func (l *revocationLedger) jtiKey(jti string) string {
	return l.prefix + ":rvk:jti:" + jti
}

func (l *revocationLedger) epochKey(userID string) string {
	return l.prefix + ":rvk:user:" + userID
}

// Blacklist records a revoked jti with TTL equal to the token's remaining
// lifetime — never longer, so the ledger cannot grow without bound.
func (l *revocationLedger) Blacklist(ctx context.Context, jti string, ttl time.Duration, reason string) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	entry, err := json.Marshal(revocationEntry{
		RevokedAt: time.Now().Unix(),
		Reason:    reason,
	})
	if err != nil {
		return err
	}
	if err := l.redis.Set(ctx, l.jtiKey(jti), entry, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether a jti has been revoked. An empty jti returns
// false without a lookup. Backend failures log a warning and fail open.
func (l *revocationLedger) IsBlacklisted(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	n, err := l.redis.Exists(ctx, l.jtiKey(jti)).Result()
	if err != nil {
		l.warn("jti blacklist check failed open", err)
		return false
	}
	return n > 0
}

// BlacklistAllUserTokens writes the user's revocation epoch: every token
// issued before this instant is rejected from now on.
func (l *revocationLedger) BlacklistAllUserTokens(ctx context.Context, userID string) error {
	epoch := strconv.FormatInt(time.Now().Unix(), 10)
	if err := l.redis.Set(ctx, l.epochKey(userID), epoch, l.epochTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// IsUserTokenBlacklisted reports whether a token issued at issuedAt falls
// below the user's revocation epoch. Backend failures fail open.
func (l *revocationLedger) IsUserTokenBlacklisted(ctx context.Context, userID string, issuedAt time.Time) bool {
	if userID == "" {
		return false
	}
	raw, err := l.redis.Get(ctx, l.epochKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.warn("user epoch check failed open", err)
		}
		return false
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.warn("user epoch entry corrupted, failing open", err)
		return false
	}
	return issuedAt.Unix() < epoch
}

func (l *revocationLedger) warn(msg string, err error) {
	if l.logger == nil {
		return
	}
	l.logger.Warn(msg, zap.Error(fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)))
}
