package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	authcore "github.com/valtrade/authcore"
)

// Store implements authcore.Store on a pgx connection pool.
type Store struct {
	db *pgxpool.Pool
}

// NewStore wraps an existing pool. The caller owns the pool's lifecycle.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, session authcore.SessionRecord) error {
	query := `
		INSERT INTO sessions (id, user_id, refresh_token_hash, expires_at,
			ip_address, user_agent, is_revoked, revoked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.Exec(ctx, query,
		session.ID, session.UserID, session.RefreshTokenHash, session.ExpiresAt,
		session.IPAddress, session.UserAgent, session.IsRevoked, session.RevokedAt,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*authcore.SessionRecord, error) {
	query := `
		SELECT id, user_id, refresh_token_hash, expires_at,
			ip_address, user_agent, is_revoked, revoked_at, created_at, updated_at
		FROM sessions
		WHERE refresh_token_hash = $1`
	session := &authcore.SessionRecord{}
	err := s.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.RefreshTokenHash, &session.ExpiresAt,
		&session.IPAddress, &session.UserAgent, &session.IsRevoked, &session.RevokedAt,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by token hash: %w", err)
	}
	return session, nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string, revokedAt time.Time) error {
	query := `
		UPDATE sessions
		SET is_revoked = TRUE, revoked_at = $2, updated_at = $2
		WHERE id = $1 AND is_revoked = FALSE`
	tag, err := s.db.Exec(ctx, query, sessionID, revokedAt)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrSessionNotFound
	}
	return nil
}

func (s *Store) RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error {
	query := `
		UPDATE sessions
		SET is_revoked = TRUE, revoked_at = $2, updated_at = $2
		WHERE user_id = $1 AND is_revoked = FALSE`
	if _, err := s.db.Exec(ctx, query, userID, revokedAt); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (s *Store) GetTwoFactor(ctx context.Context, userID string) (*authcore.TwoFactorRecord, error) {
	query := `
		SELECT user_id, secret_encrypted, is_enabled, verified_at, created_at, updated_at
		FROM two_factor_auth
		WHERE user_id = $1`
	record := &authcore.TwoFactorRecord{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&record.UserID, &record.SecretEncrypted, &record.IsEnabled,
		&record.VerifiedAt, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get two factor: %w", err)
	}
	return record, nil
}

func (s *Store) EnableTwoFactor(ctx context.Context, record authcore.TwoFactorRecord, codes []authcore.BackupCodeRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin enable two factor: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO two_factor_auth (user_id, secret_encrypted, is_enabled, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			secret_encrypted = EXCLUDED.secret_encrypted,
			is_enabled = EXCLUDED.is_enabled,
			verified_at = EXCLUDED.verified_at,
			updated_at = EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, upsert,
		record.UserID, record.SecretEncrypted, record.IsEnabled,
		record.VerifiedAt, record.CreatedAt, record.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert two factor: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_codes WHERE user_id = $1`, record.UserID); err != nil {
		return fmt.Errorf("clear backup codes: %w", err)
	}
	if err := copyBackupCodes(ctx, tx, codes); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) DisableTwoFactor(ctx context.Context, userID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin disable two factor: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_auth WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete two factor: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, codes []authcore.BackupCodeRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace backup codes: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear backup codes: %w", err)
	}
	if err := copyBackupCodes(ctx, tx, codes); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) GetUnusedBackupCodes(ctx context.Context, userID string) ([]authcore.BackupCodeRecord, error) {
	query := `
		SELECT id, user_id, code_hash, used_at, created_at
		FROM two_factor_backup_codes
		WHERE user_id = $1 AND used_at IS NULL
		ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get unused backup codes: %w", err)
	}
	defer rows.Close()

	var codes []authcore.BackupCodeRecord
	for rows.Next() {
		var code authcore.BackupCodeRecord
		if err := rows.Scan(&code.ID, &code.UserID, &code.CodeHash, &code.UsedAt, &code.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup codes: %w", err)
	}
	return codes, nil
}

func (s *Store) ConsumeBackupCode(ctx context.Context, codeID string, usedAt time.Time) error {
	// used_at IS NULL guards against double spend under concurrent redemption.
	query := `UPDATE two_factor_backup_codes SET used_at = $2 WHERE id = $1 AND used_at IS NULL`
	tag, err := s.db.Exec(ctx, query, codeID, usedAt)
	if err != nil {
		return fmt.Errorf("consume backup code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrCodeInvalid
	}
	return nil
}

func (s *Store) CountUnusedBackupCodes(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM two_factor_backup_codes WHERE user_id = $1 AND used_at IS NULL`
	if err := s.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unused backup codes: %w", err)
	}
	return count, nil
}

func (s *Store) AppendAudit(ctx context.Context, record authcore.AuditRecord) error {
	query := `
		INSERT INTO two_factor_audit_log (user_id, action, ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.Exec(ctx, query,
		record.UserID, record.Action, record.IPAddress, record.UserAgent,
		record.Metadata, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func copyBackupCodes(ctx context.Context, tx pgx.Tx, codes []authcore.BackupCodeRecord) error {
	if len(codes) == 0 {
		return nil
	}

	columns := []string{"id", "user_id", "code_hash", "used_at", "created_at"}
	rows := make([][]interface{}, len(codes))
	for i, code := range codes {
		rows[i] = []interface{}{code.ID, code.UserID, code.CodeHash, code.UsedAt, code.CreatedAt}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"two_factor_backup_codes"}, columns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy backup codes: %w", err)
	}
	return nil
}
