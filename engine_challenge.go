package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CreateChallenge is called by the login flow after the password check
// passes. When the user has no two-factor enrollment it reports that no
// challenge is needed; otherwise it issues an opaque challenge token that
// must be redeemed via VerifyChallenge within the challenge TTL.
//
// A new login supersedes any outstanding challenge for the same user.
func (e *Engine) CreateChallenge(ctx context.Context, userID string) (*ChallengeResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.GetTwoFactor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.IsEnabled {
		return &ChallengeResult{Required: false}, nil
	}

	challenge := &challengeRecord{
		UserID:         userID,
		ChallengeToken: uuid.NewString(),
		CreatedAt:      time.Now().Unix(),
	}
	if err := e.challenges.Save(ctx, challenge, e.config.TwoFactor.ChallengeTTL); err != nil {
		return nil, err
	}

	e.metricInc(MetricChallengeCreated)
	return &ChallengeResult{
		Required:       true,
		ChallengeToken: challenge.ChallengeToken,
	}, nil
}

// VerifyChallenge redeems a challenge token with a second-factor code and
// returns the user id the caller should mint tokens for. The lockout
// limiter is consulted before the code is inspected, so a locked-out caller
// learns nothing about code validity. The challenge is single-use: it is
// consumed on success and survives failures until the limiter or TTL ends it.
func (e *Engine) VerifyChallenge(ctx context.Context, challengeToken, code string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	challenge, err := e.challenges.GetByToken(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return "", ErrChallengeInvalid
		}
		return "", err
	}
	userID := challenge.UserID

	if err := e.lockout.Check(ctx, userID); err != nil {
		if errors.Is(err, ErrLockedOut) {
			e.metricInc(MetricLockoutTriggered)
			e.emitAudit(ctx, auditActionRateLimitExceeded, userID, false, ErrLockedOut, nil)
			return "", ErrLockedOut
		}
		return "", err
	}

	record, err := e.store.GetTwoFactor(ctx, userID)
	if err != nil {
		return "", err
	}
	if record == nil || !record.IsEnabled {
		// Enrollment vanished between login and challenge redemption.
		return "", ErrChallengeInvalid
	}

	usedBackup, err := e.checkSecondFactor(ctx, userID, record, code)
	if err != nil {
		if errors.Is(err, ErrCodeInvalid) {
			if recErr := e.lockout.RecordFailure(ctx, userID); recErr != nil {
				return "", recErr
			}
			e.metricInc(MetricChallengeFailure)
			e.emitAudit(ctx, auditActionVerifyFailed, userID, false, ErrCodeInvalid, nil)
			return "", ErrCodeInvalid
		}
		return "", err
	}

	if err := e.lockout.Reset(ctx, userID); err != nil {
		return "", err
	}
	if err := e.challenges.Delete(ctx, challenge); err != nil {
		return "", err
	}

	e.metricInc(MetricChallengeSuccess)
	metadata := map[string]string(nil)
	if usedBackup {
		metadata = map[string]string{"method": "backup_code"}
	}
	e.emitAudit(ctx, auditActionVerifySuccess, userID, true, nil, metadata)

	return userID, nil
}
