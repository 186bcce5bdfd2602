package authcore

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-secret")
	cfg.Encryption.KeyBase64 = base64.StdEncoding.EncodeToString(
		[]byte("0123456789abcdef0123456789abcdef"))
	// Smaller batch keeps the bcrypt-heavy tests fast.
	cfg.TwoFactor.BackupCodeCount = 4
	return cfg
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]UserRecord
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]UserRecord)}
}

func (f *fakeUsers) add(t *testing.T, id, email, password string, status UserStatus) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = UserRecord{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Status:       status,
	}
}

func (f *fakeUsers) setStatus(id string, status UserStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.Status = status
	f.users[id] = u
}

func (f *fakeUsers) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

// fakeStore is an in-memory Store for unit tests. Its transactional
// guarantees are trivial: every mutation holds one mutex.
type fakeStore struct {
	mu        sync.Mutex
	sessions  map[string]*SessionRecord
	twoFactor map[string]*TwoFactorRecord
	codes     map[string][]BackupCodeRecord
	audit     []AuditRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:  make(map[string]*SessionRecord),
		twoFactor: make(map[string]*TwoFactorRecord),
		codes:     make(map[string][]BackupCodeRecord),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, session SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) GetSessionByTokenHash(_ context.Context, tokenHash string) (*SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.RefreshTokenHash == tokenHash {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, sessionID string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.IsRevoked {
		return ErrSessionNotFound
	}
	s.IsRevoked = true
	s.RevokedAt = &revokedAt
	return nil
}

func (f *fakeStore) RevokeUserSessions(_ context.Context, userID string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && !s.IsRevoked {
			s.IsRevoked = true
			at := revokedAt
			s.RevokedAt = &at
		}
	}
	return nil
}

func (f *fakeStore) GetTwoFactor(_ context.Context, userID string) (*TwoFactorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.twoFactor[userID]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) EnableTwoFactor(_ context.Context, record TwoFactorRecord, codes []BackupCodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := record
	f.twoFactor[record.UserID] = &copied
	f.codes[record.UserID] = append([]BackupCodeRecord(nil), codes...)
	return nil
}

func (f *fakeStore) DisableTwoFactor(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.twoFactor, userID)
	delete(f.codes, userID)
	return nil
}

func (f *fakeStore) ReplaceBackupCodes(_ context.Context, userID string, codes []BackupCodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[userID] = append([]BackupCodeRecord(nil), codes...)
	return nil
}

func (f *fakeStore) GetUnusedBackupCodes(_ context.Context, userID string) ([]BackupCodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var unused []BackupCodeRecord
	for _, c := range f.codes[userID] {
		if c.UsedAt == nil {
			unused = append(unused, c)
		}
	}
	return unused, nil
}

func (f *fakeStore) ConsumeBackupCode(_ context.Context, codeID string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for userID, codes := range f.codes {
		for i := range codes {
			if codes[i].ID == codeID {
				if codes[i].UsedAt != nil {
					return ErrCodeInvalid
				}
				at := usedAt
				codes[i].UsedAt = &at
				f.codes[userID] = codes
				return nil
			}
		}
	}
	return ErrCodeInvalid
}

func (f *fakeStore) CountUnusedBackupCodes(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.codes[userID] {
		if c.UsedAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) AppendAudit(_ context.Context, record AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, record)
	return nil
}

func (f *fakeStore) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions := make([]string, len(f.audit))
	for i, r := range f.audit {
		actions[i] = r.Action
	}
	return actions
}

func (f *fakeStore) hasAuditAction(action string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.audit {
		if r.Action == action {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T, cfg Config, store *fakeStore, users *fakeUsers) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithUserProvider(users).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, mr, func() {
		engine.Close()
		mr.Close()
	}
}
