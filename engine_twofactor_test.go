package authcore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

var backupCodeShape = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func codeForNow(t *testing.T, secret string) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	return code
}

// enrollUser walks a user through the full Setup/VerifySetup cycle and
// returns the plaintext backup codes.
func enrollUser(t *testing.T, engine *Engine, userID string) []string {
	t.Helper()

	setup, err := engine.Setup(context.Background(), userID)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	codes, err := engine.VerifySetup(context.Background(), userID, setup.SetupToken, codeForNow(t, setup.ManualEntryKey))
	if err != nil {
		t.Fatalf("VerifySetup failed: %v", err)
	}
	return codes
}

func TestSetupReturnsProvisioningMaterial(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), store, users)
	defer done()

	res, err := engine.Setup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if res.SetupToken == "" {
		t.Fatal("expected setup token")
	}
	if res.ManualEntryKey == "" {
		t.Fatal("expected manual entry key")
	}
	if !strings.HasPrefix(res.QRCode, "data:image/png;base64,") {
		t.Fatalf("expected PNG data URI, got prefix %q", res.QRCode[:min(len(res.QRCode), 30)])
	}
	if !store.hasAuditAction(auditActionSetup) {
		t.Fatal("expected setup audit row")
	}
	if got, _ := store.GetTwoFactor(context.Background(), "u1"); got != nil {
		t.Fatal("expected no durable enrollment before confirmation")
	}
}

func TestSetupRejectsEnabledUser(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), store, users)
	defer done()

	enrollUser(t, engine, "u1")

	if _, err := engine.Setup(context.Background(), "u1"); !errors.Is(err, ErrTwoFactorEnabled) {
		t.Fatalf("expected ErrTwoFactorEnabled, got %v", err)
	}
}

func TestSetupUnknownUser(t *testing.T) {
	engine, _, done := newTestEngine(t, testConfig(), newFakeStore(), newFakeUsers())
	defer done()

	if _, err := engine.Setup(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestVerifySetupEnablesAndMintsBackupCodes(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	cfg := testConfig()
	engine, _, done := newTestEngine(t, cfg, store, users)
	defer done()

	codes := enrollUser(t, engine, "u1")

	if len(codes) != cfg.TwoFactor.BackupCodeCount {
		t.Fatalf("expected %d backup codes, got %d", cfg.TwoFactor.BackupCodeCount, len(codes))
	}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if !backupCodeShape.MatchString(code) {
			t.Fatalf("backup code %q has wrong shape", code)
		}
		if seen[code] {
			t.Fatalf("duplicate backup code %q", code)
		}
		seen[code] = true
	}

	record, err := store.GetTwoFactor(context.Background(), "u1")
	if err != nil || record == nil {
		t.Fatalf("expected enrollment row, got %v, %v", record, err)
	}
	if !record.IsEnabled || record.VerifiedAt == nil {
		t.Fatal("expected enabled enrollment with verified timestamp")
	}
	if record.SecretEncrypted == "" {
		t.Fatal("expected encrypted secret")
	}

	status, err := engine.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.IsEnabled || status.BackupCodesRemaining != cfg.TwoFactor.BackupCodeCount {
		t.Fatalf("unexpected status %+v", status)
	}

	if !store.hasAuditAction(auditActionEnabled) {
		t.Fatal("expected enabled audit row")
	}
}

func TestVerifySetupSecretNeverStoredPlaintext(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), store, users)
	defer done()

	setup, err := engine.Setup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if _, err := engine.VerifySetup(context.Background(), "u1", setup.SetupToken, codeForNow(t, setup.ManualEntryKey)); err != nil {
		t.Fatalf("VerifySetup failed: %v", err)
	}

	record, _ := store.GetTwoFactor(context.Background(), "u1")
	if record.SecretEncrypted == setup.ManualEntryKey {
		t.Fatal("secret stored in plaintext")
	}
}

func TestVerifySetupRejectsBadToken(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), store, users)
	defer done()

	setup, err := engine.Setup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	_, err = engine.VerifySetup(context.Background(), "u1", "wrong-token", codeForNow(t, setup.ManualEntryKey))
	if !errors.Is(err, ErrSetupTokenInvalid) {
		t.Fatalf("expected ErrSetupTokenInvalid, got %v", err)
	}
}

func TestVerifySetupRejectsWrongCode(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), store, users)
	defer done()

	setup, err := engine.Setup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	_, err = engine.VerifySetup(context.Background(), "u1", setup.SetupToken, "000000")
	if !errors.Is(err, ErrSetupCodeInvalid) {
		t.Fatalf("expected ErrSetupCodeInvalid, got %v", err)
	}
	if !store.hasAuditAction(auditActionVerifyFailed) {
		t.Fatal("expected verify_failed audit row")
	}
	if got, _ := store.GetTwoFactor(context.Background(), "u1"); got != nil {
		t.Fatal("expected no enrollment after failed confirmation")
	}
}

func TestVerifySetupExpires(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	cfg := testConfig()
	engine, mr, done := newTestEngine(t, cfg, store, users)
	defer done()

	setup, err := engine.Setup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	mr.FastForward(cfg.TwoFactor.SetupTTL + time.Second)

	_, err = engine.VerifySetup(context.Background(), "u1", setup.SetupToken, codeForNow(t, setup.ManualEntryKey))
	if !errors.Is(err, ErrSetupTokenInvalid) {
		t.Fatalf("expected ErrSetupTokenInvalid after expiry, got %v", err)
	}
}

func TestSetupRestartReplacesPendingEnrollment(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), store, users)
	defer done()

	first, err := engine.Setup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first Setup failed: %v", err)
	}
	second, err := engine.Setup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second Setup failed: %v", err)
	}

	// The first token is dead; only the second pending enrollment counts.
	if _, err := engine.VerifySetup(context.Background(), "u1", first.SetupToken, codeForNow(t, first.ManualEntryKey)); !errors.Is(err, ErrSetupTokenInvalid) {
		t.Fatalf("expected stale setup token rejected, got %v", err)
	}
	if _, err := engine.VerifySetup(context.Background(), "u1", second.SetupToken, codeForNow(t, second.ManualEntryKey)); err != nil {
		t.Fatalf("expected fresh setup token accepted, got %v", err)
	}
}

func TestStatusNotEnrolled(t *testing.T) {
	engine, _, done := newTestEngine(t, testConfig(), newFakeStore(), newFakeUsers())
	defer done()

	status, err := engine.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.IsEnabled || status.BackupCodesRemaining != 0 || status.EnabledAt != nil {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestDisableRequiresPasswordAndCode(t *testing.T) {
	store := newFakeStore()
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), store, users)
	defer done()

	codes := enrollUser(t, engine, "u1")

	if err := engine.Disable(context.Background(), "u1", "wrong-password", codes[0]); !errors.Is(err, ErrPasswordInvalid) {
		t.Fatalf("expected ErrPasswordInvalid, got %v", err)
	}
	if err := engine.Disable(context.Background(), "u1", "correct-password-123", "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}

	if err := engine.Disable(context.Background(), "u1", "correct-password-123", codes[0]); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}

	status, err := engine.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.IsEnabled {
		t.Fatal("expected two-factor disabled")
	}
	if !store.hasAuditAction(auditActionDisabled) {
		t.Fatal("expected disabled audit row")
	}
}

func TestDisableNotEnrolled(t *testing.T) {
	users := newFakeUsers()
	users.add(t, "u1", "alice@example.com", "correct-password-123", UserActive)

	engine, _, done := newTestEngine(t, testConfig(), newFakeStore(), users)
	defer done()

	err := engine.Disable(context.Background(), "u1", "correct-password-123", "000000")
	if !errors.Is(err, ErrTwoFactorNotEnabled) {
		t.Fatalf("expected ErrTwoFactorNotEnabled, got %v", err)
	}
}
