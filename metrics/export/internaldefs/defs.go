package internaldefs

import (
	authcore "github.com/valtrade/authcore"
)

// CounterDef binds one engine counter to its exported name and help text.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Both exporters iterate this
// table so the two surfaces can never drift apart.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricSetupRequested, Name: "authcore_setup_requested_total", Help: "Two-factor enrollments started."},
	{ID: authcore.MetricSetupConfirmed, Name: "authcore_setup_confirmed_total", Help: "Two-factor enrollments confirmed."},
	{ID: authcore.MetricChallengeCreated, Name: "authcore_challenge_created_total", Help: "Login challenges issued."},
	{ID: authcore.MetricChallengeSuccess, Name: "authcore_challenge_success_total", Help: "Login challenges passed."},
	{ID: authcore.MetricChallengeFailure, Name: "authcore_challenge_failure_total", Help: "Login challenges failed on a wrong code."},
	{ID: authcore.MetricLockoutTriggered, Name: "authcore_lockout_triggered_total", Help: "Verifications rejected by the attempt limiter."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: authcore.MetricBackupCodeRegenerated, Name: "authcore_backup_code_regenerated_total", Help: "Backup code set replacements."},
	{ID: authcore.MetricTwoFactorDisabled, Name: "authcore_two_factor_disabled_total", Help: "Two-factor enrollments torn down."},
	{ID: authcore.MetricTokenIssued, Name: "authcore_token_issued_total", Help: "Token pairs issued at login."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Access tokens minted from refresh tokens."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Access tokens accepted by Validate."},
	{ID: authcore.MetricValidateRejected, Name: "authcore_validate_rejected_total", Help: "Access tokens rejected by Validate."},
	{ID: authcore.MetricTokenBlacklisted, Name: "authcore_token_blacklisted_total", Help: "Individual tokens revoked before expiry."},
	{ID: authcore.MetricEpochRevocation, Name: "authcore_epoch_revocation_total", Help: "Whole-account revocation epoch bumps."},
}
