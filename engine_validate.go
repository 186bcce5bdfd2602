package authcore

import (
	"context"

	"github.com/valtrade/authcore/jwt"
)

// Validate is the hot path: it authenticates a bearer access token and
// returns the caller's identity. The checks run cheapest-first — signature
// and shape before any network hop — and the two revocation lookups are the
// only Redis round-trips. Revocation reads fail open: an unreachable ledger
// degrades to signature-only trust instead of a platform-wide outage.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(accessToken)
	if err != nil {
		e.metricInc(MetricValidateRejected)
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != jwt.TypeAccess {
		e.metricInc(MetricValidateRejected)
		return nil, ErrTokenTypeMismatch
	}

	if e.blacklist.IsBlacklisted(ctx, claims.ID) {
		e.metricInc(MetricValidateRejected)
		return nil, ErrTokenRevoked
	}
	if claims.IssuedAt != nil {
		if e.blacklist.IsUserTokenBlacklisted(ctx, claims.Subject, claims.IssuedAt.Time) {
			e.metricInc(MetricValidateRejected)
			return nil, ErrTokenRevoked
		}
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricValidateRejected)
		return nil, ErrUserNotFound
	}
	if err := userStatusError(user.Status); err != nil {
		e.metricInc(MetricValidateRejected)
		return nil, err
	}

	e.metricInc(MetricValidateSuccess)
	return &AuthResult{
		UserID:   user.ID,
		Email:    user.Email,
		JTI:      claims.ID,
		RawToken: accessToken,
	}, nil
}
