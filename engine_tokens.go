package vantor

import (
	"context"
	"errors"
	"time"

	"github.com/vantorlabs/vantor/secret"
	"github.com/vantorlabs/vantor/token"
)

func mapTokenError(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

// RefreshSession rotates a refresh token: the presented token is verified,
// checked against the account's active set, removed, and replaced by a new
// pair. A token that was already rotated or revoked fails with
// ErrRefreshInvalid even when its signature is still valid.
func (e *Engine) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, mapTokenError(err)
	}

	now := time.Now()
	oldHash := secret.HashString(refreshToken)

	next, err := e.tokens.Refresh(claims.Subject)
	if err != nil {
		return nil, err
	}
	nextHash := secret.HashString(next)

	acct, err := e.mutateAccount(ctx, claims.Subject, func(a *Account) error {
		if !a.HasRefreshHash(oldHash, now) {
			return ErrRefreshInvalid
		}
		if serr := statusError(a.Status); serr != nil {
			return serr
		}
		a.RemoveRefreshHash(oldHash)
		a.AddRefreshHash(nextHash, now, e.tokens.RefreshTTL(), e.config.Token.MaxActiveRefresh)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRefreshInvalid) {
			e.metrics.Inc(MetricRefreshFailure)
			e.emitAudit(ctx, auditTokenRefreshed, claims.Subject, "", false, "refresh token not active")
		}
		return nil, err
	}

	access, err := e.tokens.Access(acct.ID, acct.Email)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditTokenRefreshed, acct.ID, acct.Email, true, "")

	return &TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout removes the presented refresh token from the account's active set.
// The signature must check out but expiry is ignored, so a client can always
// discard a stale session. Logging out with a token that is already gone is
// not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return ErrTokenInvalid
	}

	hash := secret.HashString(refreshToken)

	acct, err := e.mutateAccount(ctx, claims.Subject, func(a *Account) error {
		a.RemoveRefreshHash(hash)
		return nil
	})
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditLogout, acct.ID, acct.Email, true, "")
	return nil
}

// VerifyAccess describes the verifyaccess operation and its observable behavior.
//
// VerifyAccess may return an error when input validation, dependency calls, or security checks fail.
// VerifyAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*AccessIdentity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	_ = ctx

	claims, err := e.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, mapTokenError(err)
	}

	return &AccessIdentity{
		AccountID: claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
