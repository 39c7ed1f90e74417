package vantor

import (
	"context"
	"time"
)

// StartSecondFactorEnrollment generates a fresh TOTP secret for the account
// and stores it encrypted in the pending slot. The secret and provisioning
// URI are returned exactly once so the caller can render a QR code; nothing
// takes effect until ConfirmSecondFactorEnrollment proves the authenticator
// produces matching codes.
//
// Calling it again before confirmation replaces the pending secret and
// restarts the window.
func (e *Engine) StartSecondFactorEnrollment(ctx context.Context, accountID string) (*EnrollmentSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.SecondFactor.Enabled {
		return nil, ErrSecondFactorAlreadyEnabled
	}

	enrollment, err := e.totp.NewEnrollment(acct.Email)
	if err != nil {
		return nil, err
	}

	sealed, err := e.codec.Encrypt([]byte(enrollment.Secret))
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(e.config.SecondFactor.PendingWindow)

	if _, err := e.mutateAccount(ctx, accountID, func(a *Account) error {
		if a.SecondFactor.Enabled {
			return ErrSecondFactorAlreadyEnabled
		}
		a.SecondFactor.PendingSecret = sealed
		a.SecondFactor.PendingExpiresAt = expiresAt
		return nil
	}); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricEnrollmentStarted)
	e.emitAudit(ctx, auditEnrollmentStarted, acct.ID, acct.Email, true, "")

	return &EnrollmentSetup{
		Secret:    enrollment.Secret,
		URI:       enrollment.URI,
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmSecondFactorEnrollment promotes the pending secret to active once
// the supplied code verifies against it, and returns the freshly generated
// recovery codes in plaintext. This is the only moment the plaintext codes
// exist; only their hashes are stored.
func (e *Engine) ConfirmSecondFactorEnrollment(ctx context.Context, accountID, code string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	now := time.Now()

	plain, records, err := newRecoveryCodes(
		e.config.SecondFactor.RecoveryCodeCount,
		e.config.SecondFactor.RecoveryCodeLength,
	)
	if err != nil {
		return nil, err
	}

	// opErr carries outcomes that must persist even though the operation
	// fails: an expired pending secret is cleared and saved before the
	// error surfaces.
	var opErr error
	acct, err := e.mutateAccount(ctx, accountID, func(a *Account) error {
		opErr = nil
		if a.SecondFactor.Enabled {
			return ErrSecondFactorAlreadyEnabled
		}
		if len(a.SecondFactor.PendingSecret) == 0 {
			return ErrEnrollmentNotStarted
		}
		if now.After(a.SecondFactor.PendingExpiresAt) {
			a.SecondFactor.PendingSecret = nil
			a.SecondFactor.PendingExpiresAt = time.Time{}
			opErr = ErrEnrollmentExpired
			return nil
		}

		plaintext, derr := e.codec.Decrypt(a.SecondFactor.PendingSecret)
		if derr != nil {
			return derr
		}
		if !e.totp.Verify(code, string(plaintext), now) {
			return ErrSecondFactorInvalid
		}

		a.SecondFactor.Enabled = true
		a.SecondFactor.Secret = a.SecondFactor.PendingSecret
		a.SecondFactor.PendingSecret = nil
		a.SecondFactor.PendingExpiresAt = time.Time{}
		a.SecondFactor.ConfirmedAt = now
		a.SecondFactor.RecoveryCodes = records
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	e.metrics.Inc(MetricEnrollmentConfirmed)
	e.emitAudit(ctx, auditEnrollmentConfirmed, acct.ID, acct.Email, true, "")

	return plain, nil
}

// DisableSecondFactor wipes the entire second-factor state (secret, recovery
// codes, trusted devices, counters) after re-verifying the password. Passing a
// non-empty code additionally requires a valid TOTP check against the active
// secret. Disabling is destructive; a new enrollment starts from zero.
func (e *Engine) DisableSecondFactor(ctx context.Context, accountID, password, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	acct, err := e.reauthenticate(ctx, accountID, password)
	if err != nil {
		return err
	}

	if code != "" {
		if !acct.SecondFactor.Enabled {
			return ErrSecondFactorNotEnabled
		}
		plaintext, derr := e.codec.Decrypt(acct.SecondFactor.Secret)
		if derr != nil {
			return derr
		}
		if !e.totp.Verify(code, string(plaintext), time.Now()) {
			return ErrSecondFactorInvalid
		}
	}

	if _, err := e.mutateAccount(ctx, accountID, func(a *Account) error {
		if !a.SecondFactor.Enabled {
			return ErrSecondFactorNotEnabled
		}
		a.ClearSecondFactor()
		return nil
	}); err != nil {
		return err
	}

	e.metrics.Inc(MetricSecondFactorDisabled)
	e.emitAudit(ctx, auditSecondFactorDisabled, acct.ID, acct.Email, true, "")
	return nil
}

// RegenerateRecoveryCodes replaces the whole recovery code set, voiding any
// unused codes from the previous batch.
func (e *Engine) RegenerateRecoveryCodes(ctx context.Context, accountID, password string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	acct, err := e.reauthenticate(ctx, accountID, password)
	if err != nil {
		return nil, err
	}

	plain, records, err := newRecoveryCodes(
		e.config.SecondFactor.RecoveryCodeCount,
		e.config.SecondFactor.RecoveryCodeLength,
	)
	if err != nil {
		return nil, err
	}

	if _, err := e.mutateAccount(ctx, accountID, func(a *Account) error {
		if !a.SecondFactor.Enabled {
			return ErrSecondFactorNotEnabled
		}
		a.SecondFactor.RecoveryCodes = records
		return nil
	}); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRecoveryCodesRegenerated)
	e.emitAudit(ctx, auditRecoveryRegenerated, acct.ID, acct.Email, true, "")

	return plain, nil
}

// reauthenticate gates sensitive mutations behind a fresh password check.
func (e *Engine) reauthenticate(ctx context.Context, accountID, password string) (*Account, error) {
	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return acct, nil
}
