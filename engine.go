package vantor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/vantorlabs/vantor/password"
	"github.com/vantorlabs/vantor/secret"
	"github.com/vantorlabs/vantor/token"
	"github.com/vantorlabs/vantor/totp"
)

// Retry budget for optimistic account writes.
const mutateRetries = 4

// Engine defines a public type used by vantor APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config   Config
	accounts AccountStore
	mailer   Mailer

	hasher *password.Hasher
	codec  *secret.Codec
	totp   *totp.Generator
	tokens *token.Issuer

	challenges    *challengeStore
	verifications *challengeStore
	resets        *challengeStore

	audit   *auditDispatcher
	metrics *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Metrics describes the metrics operation and its observable behavior.
//
// Metrics may return an error when input validation, dependency calls, or security checks fail.
// Metrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// mutateAccount serializes counter and credential mutations: load a fresh
// copy, apply fn, save, and retry on version conflict so concurrent writers
// never lose updates. fn sees fresh state on every attempt, which is where
// security-sensitive re-checks belong.
func (e *Engine) mutateAccount(ctx context.Context, accountID string, fn func(*Account) error) (*Account, error) {
	for i := 0; i < mutateRetries; i++ {
		acct, err := e.accounts.FindByID(ctx, accountID)
		if err != nil {
			return nil, err
		}

		if err := fn(acct); err != nil {
			return nil, err
		}
		acct.UpdatedAt = time.Now()

		err = e.accounts.Save(ctx, acct)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return acct, nil
	}

	return nil, ErrVersionConflict
}

func (e *Engine) clientMeta(ctx context.Context, meta ClientMeta) ClientMeta {
	if meta.IP == "" {
		meta.IP = clientIPFromContext(ctx)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = userAgentFromContext(ctx)
	}
	return meta
}

// sendMail fires a mailer call on its own goroutine; delivery failures are
// logged and never propagate into the calling operation.
func (e *Engine) sendMail(fn func(ctx context.Context) error) {
	if e.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("vantor: mail delivery failed: %v", err)
		}
	}()
}

func statusError(status AccountStatus) error {
	switch status {
	case StatusSuspended:
		return ErrAccountSuspended
	case StatusBanned:
		return ErrAccountBanned
	case StatusPending:
		return ErrAccountUnverified
	default:
		return nil
	}
}
