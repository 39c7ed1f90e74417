package vantor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vantorlabs/vantor/device"
	"github.com/vantorlabs/vantor/lockout"
	"github.com/vantorlabs/vantor/secret"
)

func (e *Engine) passwordLockoutPolicy() lockout.Policy {
	return lockout.Policy{
		Threshold: e.config.Lockout.Threshold,
		Duration:  e.config.Lockout.Duration,
	}
}

func (e *Engine) secondFactorLockoutPolicy() lockout.Policy {
	return lockout.Policy{
		Threshold: e.config.SecondFactor.LockoutThreshold,
		Duration:  e.config.SecondFactor.LockoutDuration,
	}
}

// Login runs the primary authentication flow: identifier lookup, lockout
// gate, password verification, and the second-factor step when the account
// has one enrolled. Unknown identifiers and wrong passwords both surface as
// ErrInvalidCredentials so callers cannot probe which addresses exist.
//
// With a second factor enrolled and no code in the request, Login returns
// StateSecondFactorRequired with a challenge reference and no tokens; the
// caller completes it via ConfirmSecondFactor. Supplying Code or
// RecoveryCode inline completes the second factor in the same call.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	now := time.Now()
	meta := e.clientMeta(ctx, req.Client)
	email := normalizeEmail(req.Email)

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metrics.Inc(MetricLoginFailure)
			e.emitAudit(ctx, auditLoginFailure, "", email, false, "unknown account")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if acct.Lockout.Locked(now) {
		e.metrics.Inc(MetricLoginLocked)
		e.emitAudit(ctx, auditLoginLocked, acct.ID, acct.Email, false, "account locked")
		return nil, &LockoutError{Until: acct.Lockout.LockedUntil}
	}

	// Federated-only accounts have no password hash; the attempt fails the
	// same way a wrong password does.
	verified := false
	if acct.PasswordHash != "" {
		verified, err = e.hasher.Verify(req.Password, acct.PasswordHash)
		if err != nil {
			return nil, err
		}
	}
	if !verified {
		if _, merr := e.mutateAccount(ctx, acct.ID, func(a *Account) error {
			a.Lockout = e.passwordLockoutPolicy().RecordFailure(a.Lockout, now)
			a.RecordLoginEvent(LoginEvent{
				At: now, IP: meta.IP, UserAgent: meta.UserAgent,
				Success: false, Reason: "invalid password",
			}, e.config.Events.HistoryLimit)
			return nil
		}); merr != nil {
			return nil, merr
		}
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditLoginFailure, acct.ID, acct.Email, false, "invalid password")
		return nil, ErrInvalidCredentials
	}

	if err := statusError(acct.Status); err != nil {
		e.emitAudit(ctx, auditLoginFailure, acct.ID, acct.Email, false, err.Error())
		return nil, err
	}

	var upgradeHash string
	if e.config.Password.UpgradeOnLogin && acct.PasswordHash != "" {
		if needs, uerr := e.hasher.NeedsUpgrade(acct.PasswordHash); uerr == nil && needs {
			if rehashed, herr := e.hasher.Hash(req.Password); herr == nil {
				upgradeHash = rehashed
			}
		}
	}

	if !acct.SecondFactor.Enabled {
		return e.finalizeLogin(ctx, acct.ID, meta, finalizeOptions{upgradeHash: upgradeHash})
	}

	// Trusted-device bypass comes before any submitted code is examined: a
	// recognized device authenticates even when the caller sends a stale
	// code, and no failure is counted for it.
	fingerprint := device.Fingerprint(device.Metadata{IP: meta.IP, UserAgent: meta.UserAgent})
	if acct.TrustedDeviceByFingerprint(fingerprint) != nil {
		e.metrics.Inc(MetricTrustedDeviceBypass)
		return e.finalizeLogin(ctx, acct.ID, meta, finalizeOptions{
			touchFingerprint: fingerprint,
			upgradeHash:      upgradeHash,
		})
	}

	if req.Code == "" && req.RecoveryCode == "" {
		return e.issueSecondFactorChallenge(ctx, acct, meta, now)
	}

	return e.completeSecondFactor(ctx, acct.ID, secondFactorAttempt{
		code:         req.Code,
		recoveryCode: req.RecoveryCode,
		trustDevice:  req.TrustDevice,
		meta:         meta,
		upgradeHash:  upgradeHash,
	})
}

// ConfirmSecondFactor describes the confirmsecondfactor operation and its observable behavior.
//
// ConfirmSecondFactor may return an error when input validation, dependency calls, or security checks fail.
// ConfirmSecondFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmSecondFactor(ctx context.Context, req SecondFactorRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if req.ChallengeID == "" {
		return nil, ErrChallengeInvalid
	}

	rec, err := e.challenges.Get(ctx, req.ChallengeID)
	if err != nil {
		switch {
		case errors.Is(err, errChallengeNotFound):
			return nil, ErrChallengeInvalid
		case errors.Is(err, errChallengeExpired):
			return nil, ErrChallengeExpired
		default:
			return nil, err
		}
	}

	return e.completeSecondFactor(ctx, rec.AccountID, secondFactorAttempt{
		challengeID:  req.ChallengeID,
		code:         req.Code,
		recoveryCode: req.RecoveryCode,
		trustDevice:  req.TrustDevice,
		meta:         e.clientMeta(ctx, req.Client),
	})
}

func (e *Engine) issueSecondFactorChallenge(ctx context.Context, acct *Account, meta ClientMeta, now time.Time) (*LoginResult, error) {
	challengeID := uuid.NewString()
	ttl := e.config.SecondFactor.ChallengeTTL

	err := e.challenges.Save(ctx, challengeID, &challengeRecord{
		AccountID: acct.ID,
		ExpiresAt: now.Add(ttl).Unix(),
	}, ttl)
	if err != nil {
		return nil, err
	}

	// Checkpoint event only: no tokens issued, no failure counted.
	if _, merr := e.mutateAccount(ctx, acct.ID, func(a *Account) error {
		a.RecordLoginEvent(LoginEvent{
			At: now, IP: meta.IP, UserAgent: meta.UserAgent,
			Success: false, Reason: "second factor required",
		}, e.config.Events.HistoryLimit)
		return nil
	}); merr != nil {
		return nil, merr
	}

	e.metrics.Inc(MetricSecondFactorRequired)
	e.emitAudit(ctx, auditLoginSecondFactorRequired, acct.ID, acct.Email, true, "")

	return &LoginResult{
		State:       StateSecondFactorRequired,
		ChallengeID: challengeID,
		EmailHint:   maskEmail(acct.Email),
	}, nil
}

type secondFactorAttempt struct {
	challengeID  string
	code         string
	recoveryCode string
	trustDevice  bool
	meta         ClientMeta
	upgradeHash  string
}

func (e *Engine) completeSecondFactor(ctx context.Context, accountID string, att secondFactorAttempt) (*LoginResult, error) {
	now := time.Now()

	if att.code != "" && att.recoveryCode != "" {
		return nil, ErrSecondFactorConflict
	}
	if att.code == "" && att.recoveryCode == "" {
		return nil, ErrSecondFactorInvalid
	}

	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !acct.SecondFactor.Enabled {
		return nil, ErrSecondFactorNotEnabled
	}
	if acct.SecondFactor.Lockout.Locked(now) {
		e.metrics.Inc(MetricSecondFactorLocked)
		e.emitAudit(ctx, auditSecondFactorLocked, acct.ID, acct.Email, false, "second factor locked")
		return nil, &LockoutError{Until: acct.SecondFactor.Lockout.LockedUntil}
	}

	var usedRecoveryHash *[32]byte
	verified := false

	if att.code != "" {
		plaintext, derr := e.codec.Decrypt(acct.SecondFactor.Secret)
		if derr != nil {
			return nil, derr
		}
		verified = e.totp.Verify(att.code, string(plaintext), now)
	} else {
		hash := secret.HashString(normalizeRecoveryCode(att.recoveryCode))
		for _, rc := range acct.SecondFactor.RecoveryCodes {
			if !rc.Used && secret.Equal(rc.Hash, hash) {
				verified = true
				usedRecoveryHash = &hash
				break
			}
		}
	}

	if !verified {
		return nil, e.recordSecondFactorFailure(ctx, acct, att, now)
	}

	// Consume the challenge before issuing anything; a missing key here
	// means it was already completed or expired out from under us.
	if att.challengeID != "" {
		deleted, derr := e.challenges.Delete(ctx, att.challengeID)
		if derr != nil {
			return nil, derr
		}
		if !deleted {
			return nil, ErrChallengeInvalid
		}
	}

	res, err := e.finalizeLogin(ctx, acct.ID, att.meta, finalizeOptions{
		secondFactor:     true,
		usedRecoveryHash: usedRecoveryHash,
		trustDevice:      att.trustDevice,
		upgradeHash:      att.upgradeHash,
	})
	if err != nil {
		return nil, err
	}

	if usedRecoveryHash != nil {
		e.metrics.Inc(MetricRecoveryCodeUsed)
		e.emitAudit(ctx, auditRecoveryCodeUsed, acct.ID, acct.Email, true, "")
	}
	e.metrics.Inc(MetricSecondFactorSuccess)
	e.emitAudit(ctx, auditSecondFactorSuccess, acct.ID, acct.Email, true, "")

	return res, nil
}

func (e *Engine) recordSecondFactorFailure(ctx context.Context, acct *Account, att secondFactorAttempt, now time.Time) error {
	policy := e.secondFactorLockoutPolicy()

	if _, merr := e.mutateAccount(ctx, acct.ID, func(a *Account) error {
		a.SecondFactor.Lockout = policy.RecordFailure(a.SecondFactor.Lockout, now)
		a.RecordLoginEvent(LoginEvent{
			At: now, IP: att.meta.IP, UserAgent: att.meta.UserAgent,
			Success: false, Reason: "second factor invalid",
		}, e.config.Events.HistoryLimit)
		return nil
	}); merr != nil {
		return merr
	}

	e.metrics.Inc(MetricSecondFactorFailure)
	e.emitAudit(ctx, auditSecondFactorFailure, acct.ID, acct.Email, false, "invalid second factor")

	if att.challengeID != "" {
		exceeded, err := e.challenges.RecordFailure(ctx, att.challengeID, e.config.SecondFactor.ChallengeMaxAttempts)
		if err != nil {
			switch {
			case errors.Is(err, errChallengeExpired):
				return ErrChallengeExpired
			case errors.Is(err, errChallengeNotFound):
				return ErrChallengeInvalid
			default:
				return err
			}
		}
		if exceeded {
			return ErrChallengeAttempts
		}
	}

	return ErrSecondFactorInvalid
}

type finalizeOptions struct {
	secondFactor     bool
	usedRecoveryHash *[32]byte
	trustDevice      bool
	touchFingerprint string
	upgradeHash      string
}

// finalizeLogin is the single success path: every authenticated login goes
// through one read-modify-write that resets counters, stores the refresh
// hash, and appends the success event.
func (e *Engine) finalizeLogin(ctx context.Context, accountID string, meta ClientMeta, opts finalizeOptions) (*LoginResult, error) {
	now := time.Now()

	refresh, err := e.tokens.Refresh(accountID)
	if err != nil {
		return nil, err
	}
	refreshHash := secret.HashString(refresh)

	acct, err := e.mutateAccount(ctx, accountID, func(a *Account) error {
		if serr := statusError(a.Status); serr != nil {
			return serr
		}

		// Single-use enforcement happens here, against fresh state: a
		// concurrent login racing on the same recovery code loses.
		if opts.usedRecoveryHash != nil {
			if !a.ConsumeRecoveryCode(*opts.usedRecoveryHash, now) {
				return ErrSecondFactorInvalid
			}
		}
		if opts.secondFactor {
			a.SecondFactor.Lockout = a.SecondFactor.Lockout.Reset()
			a.SecondFactor.LastUsedAt = now
			a.SecondFactor.UseCount++
		}
		if opts.trustDevice {
			a.UpsertTrustedDevice(meta, now)
		}
		if opts.touchFingerprint != "" {
			a.TouchTrustedDevice(opts.touchFingerprint, now)
		}
		if opts.upgradeHash != "" {
			a.PasswordHash = opts.upgradeHash
		}

		a.Lockout = a.Lockout.Reset()
		a.AddRefreshHash(refreshHash, now, e.tokens.RefreshTTL(), e.config.Token.MaxActiveRefresh)
		a.RecordLoginEvent(LoginEvent{
			At: now, IP: meta.IP, UserAgent: meta.UserAgent,
			Success: true, Reason: "login",
		}, e.config.Events.HistoryLimit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	access, err := e.tokens.Access(acct.ID, acct.Email)
	if err != nil {
		return nil, err
	}

	if opts.trustDevice {
		e.emitAudit(ctx, auditDeviceTrusted, acct.ID, acct.Email, true, "")
	}
	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLoginSuccess, acct.ID, acct.Email, true, "")

	return &LoginResult{
		State:        StateAuthenticated,
		AccountID:    acct.ID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
