package vantor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is an exported constant or variable used by the authentication engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountSuspended is an exported constant or variable used by the authentication engine.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrAccountBanned is an exported constant or variable used by the authentication engine.
	ErrAccountBanned = errors.New("account banned")
	// ErrAccountUnverified is an exported constant or variable used by the authentication engine.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrVersionConflict is an exported constant or variable used by the authentication engine.
	ErrVersionConflict = errors.New("account version conflict")
	// ErrSecondFactorInvalid is an exported constant or variable used by the authentication engine.
	ErrSecondFactorInvalid = errors.New("invalid second factor")
	// ErrSecondFactorConflict is an exported constant or variable used by the authentication engine.
	ErrSecondFactorConflict = errors.New("totp code and recovery code are mutually exclusive")
	// ErrSecondFactorNotEnabled is an exported constant or variable used by the authentication engine.
	ErrSecondFactorNotEnabled = errors.New("second factor not enabled")
	// ErrSecondFactorAlreadyEnabled is an exported constant or variable used by the authentication engine.
	ErrSecondFactorAlreadyEnabled = errors.New("second factor already enabled")
	// ErrEnrollmentNotStarted is an exported constant or variable used by the authentication engine.
	ErrEnrollmentNotStarted = errors.New("second factor enrollment not started")
	// ErrEnrollmentExpired is an exported constant or variable used by the authentication engine.
	ErrEnrollmentExpired = errors.New("second factor enrollment expired")
	// ErrChallengeInvalid is an exported constant or variable used by the authentication engine.
	ErrChallengeInvalid = errors.New("login challenge invalid")
	// ErrChallengeExpired is an exported constant or variable used by the authentication engine.
	ErrChallengeExpired = errors.New("login challenge expired")
	// ErrChallengeAttempts is an exported constant or variable used by the authentication engine.
	ErrChallengeAttempts = errors.New("login challenge attempts exceeded")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshInvalid is an exported constant or variable used by the authentication engine.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrVerificationInvalid is an exported constant or variable used by the authentication engine.
	ErrVerificationInvalid = errors.New("email verification challenge invalid")
	// ErrVerificationExpired is an exported constant or variable used by the authentication engine.
	ErrVerificationExpired = errors.New("email verification challenge expired")
	// ErrVerificationAttempts is an exported constant or variable used by the authentication engine.
	ErrVerificationAttempts = errors.New("email verification attempts exceeded")
	// ErrEmailInvalid is an exported constant or variable used by the authentication engine.
	ErrEmailInvalid = errors.New("invalid email address")
	// ErrResetInvalid is an exported constant or variable used by the authentication engine.
	ErrResetInvalid = errors.New("password reset challenge invalid")
	// ErrResetExpired is an exported constant or variable used by the authentication engine.
	ErrResetExpired = errors.New("password reset challenge expired")
	// ErrResetAttempts is an exported constant or variable used by the authentication engine.
	ErrResetAttempts = errors.New("password reset attempts exceeded")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrDeviceNotFound is an exported constant or variable used by the authentication engine.
	ErrDeviceNotFound = errors.New("trusted device not found")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockoutError defines a public type used by vantor APIs.
//
// LockoutError instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutError struct {
	Until time.Time
}

// Error describes the error operation and its observable behavior.
//
// Error may return an error when input validation, dependency calls, or security checks fail.
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *LockoutError) Error() string {
	remaining := time.Until(e.Until)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("account locked, retry in %s", remaining.Round(time.Second))
}

// Is reports errors.Is equivalence with ErrAccountLocked so callers can
// branch on the sentinel without inspecting the lock deadline.
func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Remaining describes the remaining operation and its observable behavior.
//
// Remaining may return an error when input validation, dependency calls, or security checks fail.
// Remaining does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *LockoutError) Remaining(now time.Time) time.Duration {
	if now.After(e.Until) {
		return 0
	}
	return e.Until.Sub(now)
}
