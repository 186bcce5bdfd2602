package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/valtrade/authcore/internal/audit"
	"go.uber.org/zap"
)

const (
	auditActionSetup             = "setup"
	auditActionEnabled           = "enabled"
	auditActionDisabled          = "disabled"
	auditActionVerifySuccess     = "verify_success"
	auditActionVerifyFailed      = "verify_failed"
	auditActionBackupUsed        = "backup_used"
	auditActionBackupRegen       = "backup_regenerated"
	auditActionRateLimitExceeded = "rate_limit_exceeded"
)

// auditErrorCode maps engine errors to stable short codes for the observer
// trail. Codes are coarse on purpose so the trail never leaks which check
// rejected a code.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrLockedOut):
		return "rate_limited"
	case errors.Is(err, ErrCodeInvalid),
		errors.Is(err, ErrChallengeInvalid),
		errors.Is(err, ErrSetupTokenInvalid),
		errors.Is(err, ErrSetupCodeInvalid):
		return "code_invalid"
	case errors.Is(err, ErrPasswordInvalid):
		return "password_invalid"
	case errors.Is(err, ErrTwoFactorEnabled):
		return "already_enabled"
	case errors.Is(err, ErrTwoFactorNotEnabled):
		return "not_enabled"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrLedgerUnavailable):
		return "backend_unavailable"
	default:
		return "internal_error"
	}
}

// emitAudit appends one row to the durable audit trail and mirrors it to
// the observer dispatcher. The durable write is synchronous: a two-factor
// state change without its trail row must not happen silently, so failures
// are logged loudly even though the triggering operation has already
// committed.
func (e *Engine) emitAudit(
	ctx context.Context,
	action string,
	userID string,
	success bool,
	opErr error,
	metadata map[string]string,
) {
	now := time.Now().UTC()
	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)

	if e.store != nil {
		record := AuditRecord{
			UserID:    userID,
			Action:    action,
			IPAddress: ip,
			UserAgent: ua,
			Metadata:  metadata,
			CreatedAt: now,
		}
		if err := e.store.AppendAudit(ctx, record); err != nil {
			e.logger.Error("audit append failed",
				zap.String("action", action),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	if e.audit != nil {
		event := audit.Event{
			Timestamp: now,
			Action:    action,
			UserID:    userID,
			IP:        ip,
			UserAgent: ua,
			Success:   success,
			Error:     auditErrorCode(opErr),
			Metadata:  metadata,
		}
		e.audit.Emit(ctx, event)
	}
}
