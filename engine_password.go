package vantor

import (
	"context"
	"errors"
	"time"

	"github.com/vantorlabs/vantor/password"
	"github.com/vantorlabs/vantor/secret"
)

// ChangePassword replaces the account's password after verifying the current
// one. Every active refresh token is revoked so existing sessions must log
// in again with the new credential.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	acct, err := e.reauthenticate(ctx, accountID, currentPassword)
	if err != nil {
		return err
	}

	// Reusing the current password is rejected before the expensive hash.
	if same, verr := e.hasher.Verify(newPassword, acct.PasswordHash); verr == nil && same {
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return ErrPasswordPolicy
		}
		return err
	}

	now := time.Now()
	if _, err := e.mutateAccount(ctx, accountID, func(a *Account) error {
		a.PasswordHash = hash
		a.PasswordChangedAt = now
		a.RevokeRefreshTokens()
		a.RecordLoginEvent(LoginEvent{
			At: now, Success: true, Reason: "password changed",
		}, e.config.Events.HistoryLimit)
		return nil
	}); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChanged)
	e.emitAudit(ctx, auditPasswordChanged, acct.ID, acct.Email, true, "")
	return nil
}

// RequestPasswordReset emails a numeric OTP that authorizes a password reset
// for the address. Unknown and federated-only addresses return nil without
// sending anything so the call never reveals whether an account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if acct.PasswordHash == "" {
		return nil
	}

	otp, err := newNumericOTP(e.config.PasswordReset.OTPDigits)
	if err != nil {
		return err
	}

	ttl := e.config.PasswordReset.TTL
	err = e.resets.Save(ctx, email, &challengeRecord{
		AccountID: acct.ID,
		CodeHash:  secret.HashString(otp),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}, ttl)
	if err != nil {
		return err
	}

	e.sendMail(func(ctx context.Context) error {
		return e.mailer.SendPasswordReset(ctx, email, otp)
	})

	e.metrics.Inc(MetricPasswordResetRequested)
	e.emitAudit(ctx, auditPasswordResetRequested, acct.ID, email, true, "")
	return nil
}

// ConfirmPasswordReset validates the emailed reset OTP and installs the new
// password. Success revokes every outstanding refresh token and clears the
// password lockout, since the caller has proven control of the mailbox.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, otp, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)

	rec, err := e.resets.Get(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, errChallengeNotFound):
			return ErrResetInvalid
		case errors.Is(err, errChallengeExpired):
			return ErrResetExpired
		default:
			return err
		}
	}

	if !secret.Equal(rec.CodeHash, secret.HashString(otp)) {
		exceeded, ferr := e.resets.RecordFailure(ctx, email, e.config.PasswordReset.MaxAttempts)
		if ferr != nil {
			switch {
			case errors.Is(ferr, errChallengeExpired):
				return ErrResetExpired
			case errors.Is(ferr, errChallengeNotFound):
				return ErrResetInvalid
			default:
				return ferr
			}
		}
		e.metrics.Inc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordResetConfirmed, rec.AccountID, email, false, "invalid reset code")
		if exceeded {
			return ErrResetAttempts
		}
		return ErrResetInvalid
	}

	// Hash before consuming the challenge so a policy violation leaves the
	// OTP usable for a corrected retry.
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return ErrPasswordPolicy
		}
		return err
	}

	deleted, err := e.resets.Delete(ctx, email)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrResetInvalid
	}

	now := time.Now()
	acct, err := e.mutateAccount(ctx, rec.AccountID, func(a *Account) error {
		a.PasswordHash = hash
		a.PasswordChangedAt = now
		a.Lockout = a.Lockout.Reset()
		a.RevokeRefreshTokens()
		a.RecordLoginEvent(LoginEvent{
			At: now, Success: true, Reason: "password reset",
		}, e.config.Events.HistoryLimit)
		return nil
	})
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditPasswordResetConfirmed, acct.ID, acct.Email, true, "")
	return nil
}
