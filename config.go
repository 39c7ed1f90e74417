package vantor

import (
	"errors"
	"time"
)

// Config defines a public type used by vantor APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token        TokenConfig
	Password     PasswordConfig
	SecondFactor SecondFactorConfig
	Lockout      LockoutConfig
	Events        EventConfig
	Verification  VerificationConfig
	PasswordReset PasswordResetConfig
	Secrets       SecretConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by vantor APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	// MaxActiveRefresh caps the refresh tokens honored per account.
	// Issuing beyond the cap evicts the oldest stored hash.
	MaxActiveRefresh int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by vantor APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// SecondFactorConfig defines a public type used by vantor APIs.
//
// SecondFactorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecondFactorConfig struct {
	Issuer               string
	Digits               int
	Period               int
	Skew                 int
	PendingWindow        time.Duration
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	RecoveryCodeCount    int
	RecoveryCodeLength   int
	LockoutThreshold     int
	LockoutDuration      time.Duration
}

// LockoutConfig defines a public type used by vantor APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// EventConfig defines a public type used by vantor APIs.
//
// EventConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventConfig struct {
	// HistoryLimit bounds the login events retained per account,
	// oldest evicted first.
	HistoryLimit int
}

// VerificationConfig defines a public type used by vantor APIs.
//
// VerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationConfig struct {
	OTPDigits   int
	TTL         time.Duration
	MaxAttempts int
}

// PasswordResetConfig defines a public type used by vantor APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	OTPDigits   int
	TTL         time.Duration
	MaxAttempts int
}

// SecretConfig defines a public type used by vantor APIs.
//
// SecretConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecretConfig struct {
	// EncryptionKey protects TOTP secrets at rest. Minimum 32 bytes,
	// enforced at Build time.
	EncryptionKey []byte
}

// AuditConfig defines a public type used by vantor APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by vantor APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       7 * 24 * time.Hour,
			SigningMethod:    "ed25519",
			MaxActiveRefresh: 5,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		SecondFactor: SecondFactorConfig{
			Issuer:               "",
			Digits:               6,
			Period:               30,
			Skew:                 1,
			PendingWindow:        10 * time.Minute,
			ChallengeTTL:         5 * time.Minute,
			ChallengeMaxAttempts: 5,
			RecoveryCodeCount:    10,
			RecoveryCodeLength:   10,
			LockoutThreshold:     5,
			LockoutDuration:      15 * time.Minute,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Events: EventConfig{
			HistoryLimit: 20,
		},
		Verification: VerificationConfig{
			OTPDigits:   6,
			TTL:         15 * time.Minute,
			MaxAttempts: 5,
		},
		PasswordReset: PasswordResetConfig{
			OTPDigits:   6,
			TTL:         15 * time.Minute,
			MaxAttempts: 5,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Secrets.EncryptionKey = cloneBytes(cfg.Secrets.EncryptionKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must be shorter than RefreshTTL")
	}
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported token signing method")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.Token.MaxActiveRefresh <= 0 {
		return errors.New("Token MaxActiveRefresh must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Second factor
	if c.SecondFactor.Digits != 6 && c.SecondFactor.Digits != 8 {
		return errors.New("SecondFactor Digits must be 6 or 8")
	}
	if c.SecondFactor.Period < 15 {
		return errors.New("SecondFactor Period must be >= 15 seconds")
	}
	// One adjacent step either side is the widest window accepted; wider
	// windows trade brute-force exposure for convenience.
	if c.SecondFactor.Skew < 0 || c.SecondFactor.Skew > 1 {
		return errors.New("SecondFactor Skew must be 0 or 1")
	}
	if c.SecondFactor.PendingWindow <= 0 {
		return errors.New("SecondFactor PendingWindow must be > 0")
	}
	if c.SecondFactor.ChallengeTTL <= 0 {
		return errors.New("SecondFactor ChallengeTTL must be > 0")
	}
	if c.SecondFactor.ChallengeMaxAttempts <= 0 {
		return errors.New("SecondFactor ChallengeMaxAttempts must be > 0")
	}
	if c.SecondFactor.RecoveryCodeCount < 8 || c.SecondFactor.RecoveryCodeCount > 10 {
		return errors.New("SecondFactor RecoveryCodeCount must be between 8 and 10")
	}
	if c.SecondFactor.RecoveryCodeLength < 8 {
		return errors.New("SecondFactor RecoveryCodeLength must be >= 8")
	}
	if c.SecondFactor.LockoutThreshold <= 0 {
		return errors.New("SecondFactor LockoutThreshold must be > 0")
	}
	if c.SecondFactor.LockoutDuration <= 0 {
		return errors.New("SecondFactor LockoutDuration must be > 0")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Events
	if c.Events.HistoryLimit <= 0 {
		return errors.New("Events HistoryLimit must be > 0")
	}

	// Verification
	if c.Verification.OTPDigits < 6 || c.Verification.OTPDigits > 10 {
		return errors.New("Verification OTPDigits must be between 6 and 10")
	}
	if c.Verification.TTL <= 0 || c.Verification.TTL > 15*time.Minute {
		return errors.New("Verification TTL must be > 0 and <= 15m")
	}
	if c.Verification.MaxAttempts <= 0 || c.Verification.MaxAttempts > 5 {
		return errors.New("Verification MaxAttempts must be between 1 and 5")
	}

	// Password reset
	if c.PasswordReset.OTPDigits < 6 || c.PasswordReset.OTPDigits > 10 {
		return errors.New("PasswordReset OTPDigits must be between 6 and 10")
	}
	if c.PasswordReset.TTL <= 0 || c.PasswordReset.TTL > 30*time.Minute {
		return errors.New("PasswordReset TTL must be > 0 and <= 30m")
	}
	if c.PasswordReset.MaxAttempts <= 0 || c.PasswordReset.MaxAttempts > 5 {
		return errors.New("PasswordReset MaxAttempts must be between 1 and 5")
	}

	// Secrets
	if len(c.Secrets.EncryptionKey) < 32 {
		return errors.New("Secrets EncryptionKey must be >= 32 bytes")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
