package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/valtrade/authcore/internal/audit"
)

// UserStatus represents the lifecycle state of a user account.
type UserStatus uint8

const (
	// UserActive accounts pass the credential gate.
	UserActive UserStatus = iota
	// UserSuspended accounts are rejected with ErrAccountSuspended.
	UserSuspended
	// UserLocked accounts are rejected with ErrAccountLocked.
	UserLocked
)

// UserRecord is the minimal account projection this core consumes. It is
// read, never mutated.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Status       UserStatus
}

// UserProvider is implemented by the caller to integrate authcore with the
// user database.
type UserProvider interface {
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// SessionRecord is one row per issued refresh token. The raw token is never
// persisted; only its SHA-256 hash. Rows are revoked, never hard-deleted.
type SessionRecord struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
	IPAddress        string
	UserAgent        string
	IsRevoked        bool
	RevokedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Usable reports whether the session may still mint access tokens.
func (s *SessionRecord) Usable(now time.Time) bool {
	return s != nil && !s.IsRevoked && now.Before(s.ExpiresAt)
}

// TwoFactorRecord is the at-most-one-per-user enrollment row. The shared
// secret is stored encrypted.
type TwoFactorRecord struct {
	UserID          string
	SecretEncrypted string
	IsEnabled       bool
	VerifiedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BackupCodeRecord stores the bcrypt hash of a single recovery code.
// UsedAt is set exactly once, at consumption.
type BackupCodeRecord struct {
	ID        string
	UserID    string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// AuditRecord is one append-only row in the durable audit trail.
type AuditRecord struct {
	UserID    string
	Action    string
	IPAddress string
	UserAgent string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Store is the durable persistence interface the caller provides. Multi-row
// mutations (EnableTwoFactor, DisableTwoFactor, ReplaceBackupCodes) must run
// inside a single transaction so a mid-failure never leaves a half-enabled
// state or a user with zero usable backup codes. Transactions must stay
// short: no crypto or network work happens inside them.
type Store interface {
	CreateSession(ctx context.Context, session SessionRecord) error
	// GetSessionByTokenHash returns (nil, nil) when no session matches.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error)
	// RevokeSession returns ErrSessionNotFound when the id is unknown.
	RevokeSession(ctx context.Context, sessionID string, revokedAt time.Time) error
	RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error

	// GetTwoFactor returns (nil, nil) when the user has no enrollment row.
	GetTwoFactor(ctx context.Context, userID string) (*TwoFactorRecord, error)
	// EnableTwoFactor atomically replaces any prior enrollment row and all
	// backup codes for the user.
	EnableTwoFactor(ctx context.Context, record TwoFactorRecord, codes []BackupCodeRecord) error
	// DisableTwoFactor atomically deletes the enrollment row and all backup
	// codes for the user.
	DisableTwoFactor(ctx context.Context, userID string) error
	// ReplaceBackupCodes atomically swaps all backup codes for the user.
	ReplaceBackupCodes(ctx context.Context, userID string, codes []BackupCodeRecord) error
	// GetUnusedBackupCodes returns only rows whose UsedAt is unset.
	GetUnusedBackupCodes(ctx context.Context, userID string) ([]BackupCodeRecord, error)
	// ConsumeBackupCode sets UsedAt on a still-unused code row.
	ConsumeBackupCode(ctx context.Context, codeID string, usedAt time.Time) error
	CountUnusedBackupCodes(ctx context.Context, userID string) (int, error)

	AppendAudit(ctx context.Context, record AuditRecord) error
}

// SetupResult is returned by [Engine.Setup]. The setup token must be echoed
// back through [Engine.VerifySetup] within the setup TTL.
type SetupResult struct {
	// QRCode is a PNG data URI encoding the provisioning URI.
	QRCode string
	// ManualEntryKey is the base32 secret for manual authenticator entry.
	ManualEntryKey string
	SetupToken     string
}

// ChallengeResult is returned by [Engine.CreateChallenge]. When Required is
// false the login flow may issue tokens immediately.
type ChallengeResult struct {
	Required       bool
	ChallengeToken string
}

// TwoFactorStatus is the read-only projection returned by [Engine.Status].
type TwoFactorStatus struct {
	IsEnabled            bool
	EnabledAt            *time.Time
	BackupCodesRemaining int
}

// TokenPair is returned by [Engine.Login].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RefreshResult is returned by [Engine.Refresh]. Only the access token is
// rotated; the refresh token stays valid until its session expires or is
// revoked.
type RefreshResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// AuthResult is returned by [Engine.Validate]. RawToken is retained so the
// caller can blacklist it at logout.
type AuthResult struct {
	UserID   string
	Email    string
	JTI      string
	RawToken string
}

// AuditEvent is a structured audit record emitted to observer sinks.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
