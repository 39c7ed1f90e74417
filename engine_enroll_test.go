package vantor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEnrollmentFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	ctx := context.Background()

	setup, err := env.engine.StartSecondFactorEnrollment(ctx, id)
	if err != nil {
		t.Fatalf("StartSecondFactorEnrollment: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("expected base32 secret")
	}
	if !strings.HasPrefix(setup.URI, "otpauth://totp/") {
		t.Fatalf("uri = %q", setup.URI)
	}
	if setup.ExpiresAt.Before(time.Now()) {
		t.Fatal("pending window already expired")
	}

	// Nothing active yet, and the pending secret is stored encrypted.
	acct, _ := env.store.FindByID(ctx, id)
	if acct.SecondFactor.Enabled {
		t.Fatal("enabled before confirmation")
	}
	if len(acct.SecondFactor.PendingSecret) == 0 {
		t.Fatal("pending secret not stored")
	}
	if strings.Contains(string(acct.SecondFactor.PendingSecret), setup.Secret) {
		t.Fatal("pending secret stored in plaintext")
	}

	codes, err := env.engine.ConfirmSecondFactorEnrollment(ctx, id, totpCode(t, setup.Secret, time.Now()))
	if err != nil {
		t.Fatalf("ConfirmSecondFactorEnrollment: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("recovery codes = %d, want 10", len(codes))
	}

	acct, _ = env.store.FindByID(ctx, id)
	if !acct.SecondFactor.Enabled {
		t.Fatal("not enabled after confirmation")
	}
	if len(acct.SecondFactor.PendingSecret) != 0 {
		t.Fatal("pending secret not cleared")
	}
	if acct.SecondFactor.ConfirmedAt.IsZero() {
		t.Fatal("ConfirmedAt not set")
	}
	if len(acct.SecondFactor.RecoveryCodes) != 10 {
		t.Fatalf("stored recovery codes = %d", len(acct.SecondFactor.RecoveryCodes))
	}
}

func TestEnrollmentConfirmWrongCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	ctx := context.Background()

	if _, err := env.engine.StartSecondFactorEnrollment(ctx, id); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := env.engine.ConfirmSecondFactorEnrollment(ctx, id, "000000"); !errors.Is(err, ErrSecondFactorInvalid) {
		t.Fatalf("wrong code: %v", err)
	}

	// Enrollment stays pending; a later correct code still succeeds.
	acct, _ := env.store.FindByID(ctx, id)
	if acct.SecondFactor.Enabled {
		t.Fatal("enabled after failed confirmation")
	}
	if len(acct.SecondFactor.PendingSecret) == 0 {
		t.Fatal("pending secret discarded on wrong code")
	}
}

func TestEnrollmentConfirmWithoutStart(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)

	_, err := env.engine.ConfirmSecondFactorEnrollment(context.Background(), id, "000000")
	if !errors.Is(err, ErrEnrollmentNotStarted) {
		t.Fatalf("confirm without start: %v", err)
	}
}

func TestEnrollmentExpires(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	ctx := context.Background()

	setup, err := env.engine.StartSecondFactorEnrollment(ctx, id)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.store.mutate(id, func(a *Account) {
		a.SecondFactor.PendingExpiresAt = time.Now().Add(-time.Second)
	})

	_, err = env.engine.ConfirmSecondFactorEnrollment(ctx, id, totpCode(t, setup.Secret, time.Now()))
	if !errors.Is(err, ErrEnrollmentExpired) {
		t.Fatalf("expired enrollment: %v", err)
	}

	// The stale pending secret is cleared; a retry reports not started.
	acct, _ := env.store.FindByID(ctx, id)
	if len(acct.SecondFactor.PendingSecret) != 0 {
		t.Fatal("expired pending secret not cleared")
	}
	_, err = env.engine.ConfirmSecondFactorEnrollment(ctx, id, totpCode(t, setup.Secret, time.Now()))
	if !errors.Is(err, ErrEnrollmentNotStarted) {
		t.Fatalf("retry after expiry: %v", err)
	}
}

func TestEnrollmentRestartReplacesPending(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	ctx := context.Background()

	first, err := env.engine.StartSecondFactorEnrollment(ctx, id)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := env.engine.StartSecondFactorEnrollment(ctx, id)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("restart reused the pending secret")
	}

	// Only the newest secret confirms.
	if _, err := env.engine.ConfirmSecondFactorEnrollment(ctx, id, totpCode(t, first.Secret, time.Now())); err == nil {
		t.Fatal("stale secret accepted")
	}
	if _, err := env.engine.ConfirmSecondFactorEnrollment(ctx, id, totpCode(t, second.Secret, time.Now())); err != nil {
		t.Fatalf("current secret rejected: %v", err)
	}
}

func TestEnrollmentAlreadyEnabled(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	enrollSecondFactor(t, env, id)

	if _, err := env.engine.StartSecondFactorEnrollment(context.Background(), id); !errors.Is(err, ErrSecondFactorAlreadyEnabled) {
		t.Fatalf("start while enabled: %v", err)
	}
	if _, err := env.engine.ConfirmSecondFactorEnrollment(context.Background(), id, "000000"); !errors.Is(err, ErrSecondFactorAlreadyEnabled) {
		t.Fatalf("confirm while enabled: %v", err)
	}
}

func TestDisableSecondFactor(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, _ := enrollSecondFactor(t, env, id)
	ctx := context.Background()

	// Trust a device first so we can watch it get wiped.
	client := ClientMeta{IP: "198.51.100.2", UserAgent: "Mozilla/5.0 Chrome/120 Windows"}
	mustLogin(t, env, LoginRequest{
		Email: testEmail, Password: testPassword,
		Code: totpCode(t, secret, time.Now()), TrustDevice: true, Client: client,
	})

	if err := env.engine.DisableSecondFactor(ctx, id, "wrong password", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if err := env.engine.DisableSecondFactor(ctx, id, testPassword, ""); err != nil {
		t.Fatalf("DisableSecondFactor: %v", err)
	}

	acct, _ := env.store.FindByID(ctx, id)
	if acct.SecondFactor.Enabled {
		t.Fatal("still enabled")
	}
	if len(acct.SecondFactor.Secret) != 0 || len(acct.SecondFactor.RecoveryCodes) != 0 {
		t.Fatal("second factor material not wiped")
	}
	if len(acct.TrustedDevices) != 0 {
		t.Fatal("trusted devices survived disable")
	}

	if err := env.engine.DisableSecondFactor(ctx, id, testPassword, ""); !errors.Is(err, ErrSecondFactorNotEnabled) {
		t.Fatalf("double disable: %v", err)
	}

	// Login goes straight through again.
	res := mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword})
	if res.State != StateAuthenticated {
		t.Fatalf("state after disable = %d", res.State)
	}
}

func TestDisableSecondFactorWithCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, _ := enrollSecondFactor(t, env, id)
	ctx := context.Background()

	// A wrong code blocks the disable even with the right password.
	if err := env.engine.DisableSecondFactor(ctx, id, testPassword, "000000"); !errors.Is(err, ErrSecondFactorInvalid) {
		t.Fatalf("wrong code: %v", err)
	}
	acct, _ := env.store.FindByID(ctx, id)
	if !acct.SecondFactor.Enabled {
		t.Fatal("disabled despite invalid code")
	}

	if err := env.engine.DisableSecondFactor(ctx, id, testPassword, totpCode(t, secret, time.Now())); err != nil {
		t.Fatalf("disable with valid code: %v", err)
	}
	acct, _ = env.store.FindByID(ctx, id)
	if acct.SecondFactor.Enabled {
		t.Fatal("still enabled")
	}

	// Once disabled there is no secret left to verify a code against.
	if err := env.engine.DisableSecondFactor(ctx, id, testPassword, "123456"); !errors.Is(err, ErrSecondFactorNotEnabled) {
		t.Fatalf("code after disable: %v", err)
	}
}

func TestRegenerateRecoveryCodes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	_, oldCodes := enrollSecondFactor(t, env, id)
	ctx := context.Background()

	if _, err := env.engine.RegenerateRecoveryCodes(ctx, id, "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}

	newCodes, err := env.engine.RegenerateRecoveryCodes(ctx, id, testPassword)
	if err != nil {
		t.Fatalf("RegenerateRecoveryCodes: %v", err)
	}
	if len(newCodes) != 10 {
		t.Fatalf("new codes = %d", len(newCodes))
	}

	// Old codes are void, new ones work.
	if _, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, RecoveryCode: oldCodes[0]}); !errors.Is(err, ErrSecondFactorInvalid) {
		t.Fatalf("old code after regeneration: %v", err)
	}
	res := mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword, RecoveryCode: newCodes[0]})
	if res.State != StateAuthenticated {
		t.Fatalf("new code state = %d", res.State)
	}
}

func TestRegenerateRequiresEnabledSecondFactor(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)

	if _, err := env.engine.RegenerateRecoveryCodes(context.Background(), id, testPassword); !errors.Is(err, ErrSecondFactorNotEnabled) {
		t.Fatalf("regenerate without second factor: %v", err)
	}
}
