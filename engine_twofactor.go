package authcore

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valtrade/authcore/internal/backup"
	"github.com/valtrade/authcore/internal/secretbox"
	"github.com/valtrade/authcore/internal/totp"
	"go.uber.org/zap"
)

var totpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

type codeKind uint8

const (
	codeKindInvalid codeKind = iota
	codeKindTOTP
	codeKindBackup
)

// classifyCode is the single place that decides how a submitted second
// factor is interpreted: exactly six digits means TOTP, the XXXX-XXXX
// shape means a backup code, anything else is rejected before any lookup.
func classifyCode(code string) (string, codeKind) {
	if totpCodePattern.MatchString(code) {
		return code, codeKindTOTP
	}
	canonical := backup.Canonicalize(code)
	if backup.IsCodeFormat(canonical) {
		return canonical, codeKindBackup
	}
	return "", codeKindInvalid
}

// Setup begins two-factor enrollment. It generates a fresh shared secret,
// renders the provisioning QR code, and parks the pending state in Redis
// under a one-time setup token. Nothing touches durable storage until the
// user proves possession via VerifySetup.
//
// Calling Setup again before confirming replaces the pending enrollment.
func (e *Engine) Setup(ctx context.Context, userID string) (*SetupResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	existing, err := e.store.GetTwoFactor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsEnabled {
		return nil, ErrTwoFactorEnabled
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	enrollment, err := totp.Generate(e.config.TwoFactor.Issuer, user.Email)
	if err != nil {
		return nil, err
	}

	record := &setupRecord{
		Secret:     enrollment.Secret,
		SetupToken: uuid.NewString(),
		CreatedAt:  time.Now().Unix(),
	}
	if err := e.setupStore.Save(ctx, userID, record, e.config.TwoFactor.SetupTTL); err != nil {
		return nil, err
	}

	e.metricInc(MetricSetupRequested)
	e.emitAudit(ctx, auditActionSetup, userID, true, nil, nil)

	return &SetupResult{
		QRCode:         enrollment.QRCode,
		ManualEntryKey: enrollment.Secret,
		SetupToken:     record.SetupToken,
	}, nil
}

// VerifySetup completes enrollment. The caller must present the setup token
// from Setup plus a current TOTP code from the authenticator. On success the
// secret is encrypted, the backup code set is minted, and both are committed
// in one transaction. The plaintext backup codes are returned exactly once.
func (e *Engine) VerifySetup(ctx context.Context, userID, setupToken, code string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	pending, err := e.setupStore.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, errSetupNotFound) {
			return nil, ErrSetupTokenInvalid
		}
		return nil, err
	}
	if !secretbox.Equal(pending.SetupToken, setupToken) {
		return nil, ErrSetupTokenInvalid
	}

	if !totp.Verify(pending.Secret, code, time.Now()) {
		e.emitAudit(ctx, auditActionVerifyFailed, userID, false, ErrSetupCodeInvalid, map[string]string{
			"stage": "setup",
		})
		return nil, ErrSetupCodeInvalid
	}

	encrypted, err := e.secrets.Encrypt(pending.Secret)
	if err != nil {
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
	record := TwoFactorRecord{
		UserID:          userID,
		SecretEncrypted: encrypted,
		IsEnabled:       true,
		VerifiedAt:      &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	codeRecords := make([]BackupCodeRecord, len(hashes))
	for i, hash := range hashes {
		codeRecords[i] = BackupCodeRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		}
	}

	if err := e.store.EnableTwoFactor(ctx, record, codeRecords); err != nil {
		return nil, err
	}
	if err := e.setupStore.Delete(ctx, userID); err != nil {
		e.logger.Warn("pending setup cleanup failed", zap.String("user_id", userID), zap.Error(err))
	}

	e.metricInc(MetricSetupConfirmed)
	e.emitAudit(ctx, auditActionEnabled, userID, true, nil, nil)

	return codes, nil
}

// Status reports whether the user has two-factor enabled and how many
// backup codes remain unused.
func (e *Engine) Status(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.GetTwoFactor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.IsEnabled {
		return &TwoFactorStatus{}, nil
	}

	remaining, err := e.store.CountUnusedBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &TwoFactorStatus{
		IsEnabled:            true,
		EnabledAt:            record.VerifiedAt,
		BackupCodesRemaining: remaining,
	}, nil
}

// Disable tears down two-factor for the user. It demands the account
// password and a valid current code (TOTP or backup) so a stolen session
// alone cannot weaken the account. The enrollment row and every backup
// code are removed in one transaction.
func (e *Engine) Disable(ctx context.Context, userID, password, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	record, err := e.store.GetTwoFactor(ctx, userID)
	if err != nil {
		return err
	}
	if record == nil || !record.IsEnabled {
		return ErrTwoFactorNotEnabled
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if err := e.verifyPassword(password, user.PasswordHash); err != nil {
		return err
	}

	if _, err := e.checkSecondFactor(ctx, userID, record, code); err != nil {
		e.emitAudit(ctx, auditActionVerifyFailed, userID, false, err, map[string]string{
			"stage": "disable",
		})
		return err
	}

	if err := e.store.DisableTwoFactor(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditActionDisabled, userID, true, nil, nil)
	return nil
}

// checkSecondFactor verifies a submitted code against the user's enrollment,
// consuming a backup code when one matches. It reports whether a backup code
// was spent. Lockout accounting is the caller's concern.
func (e *Engine) checkSecondFactor(ctx context.Context, userID string, record *TwoFactorRecord, code string) (bool, error) {
	canonical, kind := classifyCode(code)

	switch kind {
	case codeKindTOTP:
		secret, err := e.secrets.Decrypt(record.SecretEncrypted)
		if err != nil {
			return false, err
		}
		if !totp.Verify(secret, canonical, time.Now()) {
			return false, ErrCodeInvalid
		}
		return false, nil

	case codeKindBackup:
		unused, err := e.store.GetUnusedBackupCodes(ctx, userID)
		if err != nil {
			return false, err
		}
		for _, candidate := range unused {
			if backup.Verify(canonical, candidate.CodeHash) {
				if err := e.store.ConsumeBackupCode(ctx, candidate.ID, time.Now().UTC()); err != nil {
					return false, err
				}
				remaining := len(unused) - 1
				e.metricInc(MetricBackupCodeUsed)
				e.emitAudit(ctx, auditActionBackupUsed, userID, true, nil, map[string]string{
					"codes_remaining": strconv.Itoa(remaining),
				})
				return true, nil
			}
		}
		return false, ErrCodeInvalid

	default:
		return false, ErrCodeInvalid
	}
}
