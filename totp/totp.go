// Package totp wraps RFC 6238 time-based one-time passwords for the
// authentication engine: enrollment secret generation with an otpauth://
// provisioning URI, and code verification with a bounded skew window.
package totp

import (
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	defaultDigits = 6
	defaultPeriod = 30
	defaultSkew   = 1
)

// Config defines a public type used by vantor APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Issuer string
	Digits int
	Period int
	Skew   int
}

// Enrollment defines a public type used by vantor APIs.
//
// Enrollment instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Enrollment struct {
	Secret string
	URI    string
}

// Generator defines a public type used by vantor APIs.
//
// Generator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Generator struct {
	config Config
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(cfg Config) *Generator {
	if cfg.Digits != 6 && cfg.Digits != 8 {
		cfg.Digits = defaultDigits
	}
	if cfg.Period <= 0 {
		cfg.Period = defaultPeriod
	}
	if cfg.Skew < 0 {
		cfg.Skew = defaultSkew
	}
	return &Generator{config: cfg}
}

// NewEnrollment describes the newenrollment operation and its observable behavior.
//
// NewEnrollment may return an error when input validation, dependency calls, or security checks fail.
// NewEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Generator) NewEnrollment(accountName string) (Enrollment, error) {
	if strings.TrimSpace(accountName) == "" {
		return Enrollment{}, errors.New("account name required for enrollment")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      g.config.Issuer,
		AccountName: accountName,
		Period:      uint(g.config.Period),
		Digits:      g.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, err
	}

	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
	}, nil
}

// Normalize describes the normalize operation and its observable behavior.
//
// Normalize may return an error when input validation, dependency calls, or security checks fail.
// Normalize does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Generator) Normalize(code string) (string, bool) {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if len(code) != g.config.Digits {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return "", false
		}
	}
	return code, true
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Generator) Verify(code, secret string, at time.Time) bool {
	code, ok := g.Normalize(code)
	if !ok {
		return false
	}

	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    uint(g.config.Period),
		Skew:      uint(g.config.Skew),
		Digits:    g.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// Period describes the period operation and its observable behavior.
//
// Period may return an error when input validation, dependency calls, or security checks fail.
// Period does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Generator) Period() time.Duration {
	return time.Duration(g.config.Period) * time.Second
}

func (g *Generator) digits() otp.Digits {
	if g.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}
