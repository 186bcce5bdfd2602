package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// failedAttemptLimiter throttles second-factor verification per user.
// Failures are counted in a rolling window; once the cap is hit, every
// attempt is rejected until the window key expires.
type failedAttemptLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
	window      time.Duration
}

func newFailedAttemptLimiter(redisClient redis.UniversalClient, prefix string, maxAttempts int, window time.Duration) *failedAttemptLimiter {
	if prefix == "" {
		prefix = "ac"
	}
	return &failedAttemptLimiter{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *failedAttemptLimiter) key(userID string) string {
	return l.prefix + ":tfl:" + userID
}

// Check reports whether the user is currently locked out. It must be called
// before the code is even inspected, so a locked-out user learns nothing
// about code validity.
func (l *failedAttemptLimiter) Check(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count >= int64(l.maxAttempts) {
		return ErrLockedOut
	}
	return nil
}

// RecordFailure increments the failure counter. The window TTL is set on the
// first failure so the counter auto-resets.
func (l *failedAttemptLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count == 1 && l.window > 0 {
		if err := l.redis.Expire(ctx, l.key(userID), l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Reset clears the failure counter after a successful verification.
func (l *failedAttemptLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
