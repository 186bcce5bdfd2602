package authcore

import (
	"errors"
	"fmt"
)

// Error classes. Every sentinel below wraps exactly one class, so callers
// can branch on the class with errors.Is or match the precise condition.
var (
	// ErrConflict marks operations rejected because of existing state.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks lookups for absent users or sessions.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest marks malformed or expired client-supplied state.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized marks failed credential or second-factor checks.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks callers whose account status bars access.
	ErrForbidden = errors.New("forbidden")
)

var (
	// ErrTwoFactorEnabled is returned by Setup when 2FA is already active.
	ErrTwoFactorEnabled = fmt.Errorf("%w: two-factor already enabled", ErrConflict)
	// ErrTwoFactorNotEnabled is returned when an operation requires an enabled second factor.
	ErrTwoFactorNotEnabled = fmt.Errorf("%w: two-factor not enabled", ErrBadRequest)
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = fmt.Errorf("%w: user not found", ErrNotFound)
	// ErrSessionNotFound is returned when the referenced session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: session not found", ErrNotFound)
	// ErrSetupTokenInvalid is returned when the setup record is missing, expired, or mismatched.
	ErrSetupTokenInvalid = fmt.Errorf("%w: invalid or expired setup token", ErrBadRequest)
	// ErrSetupCodeInvalid is returned when the code supplied during setup verification fails.
	ErrSetupCodeInvalid = fmt.Errorf("%w: invalid verification code", ErrBadRequest)
	// ErrChallengeInvalid is returned when a challenge token is unknown or expired.
	ErrChallengeInvalid = fmt.Errorf("%w: invalid or expired challenge", ErrUnauthorized)
	// ErrCodeInvalid is returned when a TOTP or backup code fails verification.
	ErrCodeInvalid = fmt.Errorf("%w: invalid code", ErrUnauthorized)
	// ErrLockedOut is returned when the failed-attempt threshold has been reached.
	ErrLockedOut = fmt.Errorf("%w: too many failed attempts", ErrUnauthorized)
	// ErrPasswordInvalid is returned when a password recheck fails.
	ErrPasswordInvalid = fmt.Errorf("%w: invalid password", ErrUnauthorized)
	// ErrRefreshInvalid is returned for unusable refresh tokens or sessions.
	ErrRefreshInvalid = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	// ErrTokenInvalid is returned when an access token fails signature or expiry checks.
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	// ErrTokenRevoked is returned when the revocation ledger rejects a token.
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrUnauthorized)
	// ErrTokenTypeMismatch is returned when a token is presented in the wrong role.
	ErrTokenTypeMismatch = fmt.Errorf("%w: wrong token type", ErrUnauthorized)
	// ErrAccountSuspended is returned for suspended accounts.
	ErrAccountSuspended = fmt.Errorf("%w: account suspended", ErrForbidden)
	// ErrAccountLocked is returned for locked accounts.
	ErrAccountLocked = fmt.Errorf("%w: account locked", ErrForbidden)
)

var (
	// ErrLedgerUnavailable marks revocation-ledger backend failures.
	// Read paths swallow it and fail open; write paths surface it. It is a
	// dedicated type so the fail-open tradeoff stays scoped to the ledger
	// and is never silently generalized to other stores.
	ErrLedgerUnavailable = errors.New("revocation ledger unavailable")
	// ErrStoreUnavailable marks ephemeral-store backend failures outside
	// the revocation ledger. These always surface to the caller.
	ErrStoreUnavailable = errors.New("ephemeral store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on an
	// incompletely constructed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
