package authcore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/valtrade/authcore/jwt"
	"go.uber.org/zap"
)

func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Login issues a token pair for a user whose credentials (and, when
// enrolled, second factor) have already been verified by the caller's login
// flow. The refresh token is persisted as a session row keyed by its
// SHA-256 hash; the raw token leaves through the return value only.
func (e *Engine) Login(ctx context.Context, userID string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if err := userStatusError(user.Status); err != nil {
		return nil, err
	}

	access, _, err := e.jwtManager.CreateAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, _, err := e.jwtManager.CreateRefresh(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := SessionRecord{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		RefreshTokenHash: hashRefreshToken(refresh),
		ExpiresAt:        now.Add(e.config.JWT.RefreshTTL),
		IPAddress:        clientIPFromContext(ctx),
		UserAgent:        userAgentFromContext(ctx),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	e.metricInc(MetricTokenIssued)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh mints a new access token from a refresh token. The refresh token
// itself is NOT rotated: the session row it hashes to stays valid until it
// expires or is revoked. Every rejection maps to ErrRefreshInvalid except
// for account status, which surfaces as its own class so callers can
// distinguish a dead token from a frozen account.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}
	if claims.TokenType != jwt.TypeRefresh {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	session, err := e.store.GetSessionByTokenHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if session == nil || !session.Usable(time.Now()) {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	user, err := e.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrUserNotFound
	}
	if err := userStatusError(user.Status); err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	access, _, err := e.jwtManager.CreateAccess(user.ID, user.Email)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	return &RefreshResult{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(e.jwtManager.AccessTTL().Seconds()),
	}, nil
}

// Logout blacklists a single access token for its remaining lifetime. The
// token is decoded without signature verification: a malformed or already
// expired token makes logout a silent no-op, never an error. A failed
// ledger write IS an error, because returning success while the token stays
// usable would be a lie.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.DecodeUnverified(accessToken)
	if err != nil {
		return nil
	}
	jti := claims.ID
	if jti == "" || claims.ExpiresAt == nil {
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}

	if err := e.blacklist.Blacklist(ctx, jti, remaining, "logout"); err != nil {
		return err
	}

	e.metricInc(MetricTokenBlacklisted)
	e.logger.Debug("token blacklisted", zap.String("jti", jti))
	return nil
}

// RevokeSession revokes one refresh session by id. Access tokens already
// minted from it survive until their own expiry unless blacklisted.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.store.RevokeSession(ctx, sessionID, time.Now().UTC())
}

// RevokeAllSessions cuts off a user entirely: every refresh session is
// revoked in durable storage and the user's revocation epoch is bumped so
// every access token issued before this moment dies at the next Validate.
// This is the kill switch for a compromised account.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.store.RevokeUserSessions(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}
	if err := e.blacklist.BlacklistAllUserTokens(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricEpochRevocation)
	e.logger.Info("all sessions revoked", zap.String("user_id", userID))
	return nil
}

func userStatusError(status UserStatus) error {
	switch status {
	case UserSuspended:
		return ErrAccountSuspended
	case UserLocked:
		return ErrAccountLocked
	default:
		return nil
	}
}
