package vantor

import (
	"context"
	"time"

	"github.com/vantorlabs/vantor/lockout"
)

// AccountStatus defines a public type used by vantor APIs.
//
// AccountStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountStatus uint8

const (
	// StatusPending is an exported constant or variable used by the authentication engine.
	StatusPending AccountStatus = iota + 1
	// StatusActive is an exported constant or variable used by the authentication engine.
	StatusActive
	// StatusSuspended is an exported constant or variable used by the authentication engine.
	StatusSuspended
	// StatusBanned is an exported constant or variable used by the authentication engine.
	StatusBanned
)

// Account defines a public type used by vantor APIs.
//
// Account instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Account struct {
	ID       string
	Email    string
	Role     string
	Status   AccountStatus
	Verified bool

	// Exactly one of PasswordHash and FederatedProvider may be empty,
	// never both.
	PasswordHash      string
	FederatedProvider string
	PasswordChangedAt time.Time

	SecondFactor   SecondFactorState
	TrustedDevices []TrustedDevice
	LoginEvents    []LoginEvent
	RefreshTokens  []RefreshTokenRecord
	Lockout        lockout.State

	// Version implements optimistic concurrency: Save must reject a
	// write whose Version does not match the stored record.
	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SecondFactorState defines a public type used by vantor APIs.
//
// SecondFactorState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecondFactorState struct {
	Enabled bool

	// Secret and PendingSecret hold the AEAD-encrypted TOTP secret.
	// PendingSecret exists only between enrollment start and confirm.
	Secret           []byte
	PendingSecret    []byte
	PendingExpiresAt time.Time

	ConfirmedAt time.Time
	LastUsedAt  time.Time
	UseCount    uint32

	Lockout       lockout.State
	RecoveryCodes []RecoveryCode
}

// RecoveryCode defines a public type used by vantor APIs.
//
// RecoveryCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RecoveryCode struct {
	Hash   [32]byte
	Used   bool
	UsedAt time.Time
}

// TrustedDevice defines a public type used by vantor APIs.
//
// TrustedDevice instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TrustedDevice struct {
	ID          string
	Fingerprint string
	Name        string
	IP          string
	UserAgent   string
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// LoginEvent defines a public type used by vantor APIs.
//
// LoginEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginEvent struct {
	ID        string
	At        time.Time
	IP        string
	UserAgent string
	Success   bool
	Reason    string
}

// RefreshTokenRecord defines a public type used by vantor APIs.
//
// RefreshTokenRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshTokenRecord struct {
	Hash      [32]byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccountStore is the persistence collaborator supplied by the host
// application. Save must compare the incoming Version against the stored
// record, return ErrVersionConflict on mismatch, and advance the version on
// success. FindByEmail and FindByID return ErrAccountNotFound for unknown
// accounts, and every call must return an isolated copy the engine can
// mutate freely.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Save(ctx context.Context, account *Account) error
}

// Mailer delivers account emails. The engine calls it asynchronously and
// treats failures as best-effort: a lost email never fails the operation
// that triggered it.
type Mailer interface {
	SendVerificationOTP(ctx context.Context, email, code string) error
	SendWelcome(ctx context.Context, email string) error
	SendPasswordReset(ctx context.Context, email, code string) error
}

// ClientMeta defines a public type used by vantor APIs.
//
// ClientMeta instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// LoginState defines a public type used by vantor APIs.
//
// LoginState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginState uint8

const (
	// StateAuthenticated is an exported constant or variable used by the authentication engine.
	StateAuthenticated LoginState = iota + 1
	// StateSecondFactorRequired is an exported constant or variable used by the authentication engine.
	StateSecondFactorRequired
)

// LoginRequest defines a public type used by vantor APIs.
//
// LoginRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginRequest struct {
	Email    string
	Password string

	// Code and RecoveryCode are mutually exclusive. Supplying either one
	// completes the second factor inline instead of returning a challenge.
	Code         string
	RecoveryCode string

	TrustDevice bool
	Client      ClientMeta
}

// LoginResult defines a public type used by vantor APIs.
//
// LoginResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginResult struct {
	State LoginState

	// Set only when State == StateAuthenticated.
	AccountID    string
	AccessToken  string
	RefreshToken string

	// Set only when State == StateSecondFactorRequired.
	ChallengeID string
	EmailHint   string
}

// SecondFactorRequest defines a public type used by vantor APIs.
//
// SecondFactorRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecondFactorRequest struct {
	ChallengeID  string
	Code         string
	RecoveryCode string
	TrustDevice  bool
	Client       ClientMeta
}

// EnrollmentSetup defines a public type used by vantor APIs.
//
// EnrollmentSetup instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EnrollmentSetup struct {
	Secret    string
	URI       string
	ExpiresAt time.Time
}

// RegisterRequest defines a public type used by vantor APIs.
//
// RegisterRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterRequest struct {
	Email    string
	Password string
	Role     string
	Client   ClientMeta
}

// TokenPair defines a public type used by vantor APIs.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccessIdentity defines a public type used by vantor APIs.
//
// AccessIdentity instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccessIdentity struct {
	AccountID string
	Email     string
	ExpiresAt time.Time
}
