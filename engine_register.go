package vantor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vantorlabs/vantor/password"
	"github.com/vantorlabs/vantor/secret"
)

const defaultRole = "member"

// Register creates a pending account and dispatches a verification OTP to
// the address. The account cannot log in until ConfirmEmailVerification
// flips it to active.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		return "", ErrEmailInvalid
	}

	if _, err := e.accounts.FindByEmail(ctx, email); err == nil {
		e.metrics.Inc(MetricRegisterDuplicate)
		return "", ErrAccountExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return "", err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return "", ErrPasswordPolicy
		}
		return "", err
	}

	now := time.Now()
	acct := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Role:         req.Role,
		Status:       StatusPending,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if acct.Role == "" {
		acct.Role = defaultRole
	}

	if err := e.accounts.Create(ctx, acct); err != nil {
		return "", err
	}

	if err := e.sendVerificationOTP(ctx, acct.ID, email); err != nil {
		return "", err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditAccountRegistered, acct.ID, email, true, "")

	return acct.ID, nil
}

// ResendEmailVerification issues a fresh OTP for an account still pending
// verification, replacing any outstanding one.
func (e *Engine) ResendEmailVerification(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct.Verified {
		return ErrVerificationInvalid
	}

	return e.sendVerificationOTP(ctx, acct.ID, email)
}

func (e *Engine) sendVerificationOTP(ctx context.Context, accountID, email string) error {
	otp, err := newNumericOTP(e.config.Verification.OTPDigits)
	if err != nil {
		return err
	}

	ttl := e.config.Verification.TTL
	err = e.verifications.Save(ctx, email, &challengeRecord{
		AccountID: accountID,
		CodeHash:  secret.HashString(otp),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}, ttl)
	if err != nil {
		return err
	}

	e.sendMail(func(ctx context.Context) error {
		return e.mailer.SendVerificationOTP(ctx, email, otp)
	})
	return nil
}

// ConfirmEmailVerification validates the emailed OTP and activates the
// account. Wrong codes burn an attempt; expiry and attempt exhaustion
// surface as their own errors so callers can prompt for a resend.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, email, otp string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)

	rec, err := e.verifications.Get(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, errChallengeNotFound):
			return ErrVerificationInvalid
		case errors.Is(err, errChallengeExpired):
			return ErrVerificationExpired
		default:
			return err
		}
	}

	if !secret.Equal(rec.CodeHash, secret.HashString(otp)) {
		exceeded, ferr := e.verifications.RecordFailure(ctx, email, e.config.Verification.MaxAttempts)
		if ferr != nil {
			switch {
			case errors.Is(ferr, errChallengeExpired):
				return ErrVerificationExpired
			case errors.Is(ferr, errChallengeNotFound):
				return ErrVerificationInvalid
			default:
				return ferr
			}
		}
		e.metrics.Inc(MetricVerificationFailure)
		if exceeded {
			return ErrVerificationAttempts
		}
		return ErrVerificationInvalid
	}

	if _, err := e.verifications.Delete(ctx, email); err != nil {
		return err
	}

	acct, err := e.mutateAccount(ctx, rec.AccountID, func(a *Account) error {
		a.Verified = true
		if a.Status == StatusPending {
			a.Status = StatusActive
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditAccountVerified, acct.ID, acct.Email, true, "")

	e.sendMail(func(ctx context.Context) error {
		return e.mailer.SendWelcome(ctx, acct.Email)
	})
	return nil
}
