package authcore

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valtrade/authcore/internal/backup"
)

// RegenerateBackupCodes mints a fresh backup code set, invalidating every
// prior code, used or not. The account password is required so a hijacked
// session cannot rotate the recovery material. The plaintext codes are
// returned exactly once.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.GetTwoFactor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.IsEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if err := e.verifyPassword(password, user.PasswordHash); err != nil {
		return nil, err
	}

	codes, err := backup.Generate(e.config.TwoFactor.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes, err := backup.Hash(codes, e.config.TwoFactor.BackupCodeCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	codeRecords := make([]BackupCodeRecord, len(hashes))
	for i, hash := range hashes {
		codeRecords[i] = BackupCodeRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		}
	}

	if err := e.store.ReplaceBackupCodes(ctx, userID, codeRecords); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditActionBackupRegen, userID, true, nil, map[string]string{
		"count": strconv.Itoa(len(codes)),
	})

	return codes, nil
}
