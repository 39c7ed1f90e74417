package vantor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)

	res := mustLogin(t, env, LoginRequest{
		Email:    testEmail,
		Password: testPassword,
		Client:   ClientMeta{IP: "203.0.113.7", UserAgent: "Mozilla/5.0 Chrome/120 Windows"},
	})

	if res.State != StateAuthenticated {
		t.Fatalf("state = %d, want authenticated", res.State)
	}
	if res.AccountID != id {
		t.Fatalf("account id = %q, want %q", res.AccountID, id)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens on success")
	}

	acct, _ := env.store.FindByID(context.Background(), id)
	if len(acct.RefreshTokens) != 1 {
		t.Fatalf("refresh tokens stored = %d, want 1", len(acct.RefreshTokens))
	}
	if len(acct.LoginEvents) != 1 || !acct.LoginEvents[0].Success {
		t.Fatalf("expected one successful login event, got %+v", acct.LoginEvents)
	}
	if acct.LoginEvents[0].IP != "203.0.113.7" {
		t.Fatalf("event IP = %q", acct.LoginEvents[0].IP)
	}
}

func TestLoginEmailNormalized(t *testing.T) {
	env := newTestEnv(t, testConfig())
	seedAccount(t, env, testEmail, testPassword)

	res := mustLogin(t, env, LoginRequest{Email: "  ALICE@Example.COM ", Password: testPassword})
	if res.State != StateAuthenticated {
		t.Fatalf("state = %d", res.State)
	}
}

func TestLoginUnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	env := newTestEnv(t, testConfig())
	seedAccount(t, env, testEmail, testPassword)

	_, errUnknown := env.engine.Login(context.Background(), LoginRequest{
		Email: "nobody@example.com", Password: testPassword,
	})
	_, errWrong := env.engine.Login(context.Background(), LoginRequest{
		Email: testEmail, Password: "not the password",
	})

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown account: %v", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("error text differs: %q vs %q", errUnknown, errWrong)
	}
}

func TestLoginFailureRecordsEvent(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)

	_, _ = env.engine.Login(context.Background(), LoginRequest{Email: testEmail, Password: "wrong"})

	acct, _ := env.store.FindByID(context.Background(), id)
	if acct.Lockout.Failures != 1 {
		t.Fatalf("failures = %d, want 1", acct.Lockout.Failures)
	}
	if len(acct.LoginEvents) != 1 || acct.LoginEvents[0].Success {
		t.Fatalf("expected one failed event, got %+v", acct.LoginEvents)
	}
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	// Correct password is refused while the lock holds.
	_, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lockout, got %v", err)
	}

	var lockErr *LockoutError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockoutError, got %T", err)
	}
	remaining := lockErr.Remaining(time.Now())
	if remaining <= 0 || remaining > 30*time.Minute {
		t.Fatalf("remaining = %v", remaining)
	}

	// Expired lock resets the window and lets the login through.
	env.store.mutate(id, func(a *Account) {
		a.Lockout.LockedUntil = time.Now().Add(-time.Minute)
	})
	res := mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword})
	if res.State != StateAuthenticated {
		t.Fatalf("state after lock expiry = %d", res.State)
	}

	acct, _ := env.store.FindByID(context.Background(), id)
	if acct.Lockout.Failures != 0 {
		t.Fatalf("failures not reset: %d", acct.Lockout.Failures)
	}
}

func TestLoginStatusGates(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	ctx := context.Background()

	cases := []struct {
		status AccountStatus
		want   error
	}{
		{StatusSuspended, ErrAccountSuspended},
		{StatusBanned, ErrAccountBanned},
		{StatusPending, ErrAccountUnverified},
	}
	for _, tc := range cases {
		env.store.mutate(id, func(a *Account) { a.Status = tc.status })
		if _, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword}); !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestLoginFederatedOnlyAccountRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	env.store.mutate(id, func(a *Account) {
		a.PasswordHash = ""
		a.FederatedProvider = "google"
	})

	_, err := env.engine.Login(context.Background(), LoginRequest{Email: testEmail, Password: testPassword})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginSecondFactorRequired(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	enrollSecondFactor(t, env, id)

	res := mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword})

	if res.State != StateSecondFactorRequired {
		t.Fatalf("state = %d, want second factor required", res.State)
	}
	if res.ChallengeID == "" {
		t.Fatal("expected challenge id")
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatal("no tokens may be issued before the second factor")
	}
	if res.EmailHint != "a****@example.com" {
		t.Fatalf("email hint = %q", res.EmailHint)
	}

	// The checkpoint does not count against the lockout window.
	acct, _ := env.store.FindByID(context.Background(), id)
	if acct.Lockout.Failures != 0 {
		t.Fatalf("failures = %d, want 0", acct.Lockout.Failures)
	}
	if len(acct.RefreshTokens) != 0 {
		t.Fatal("refresh hash stored before second factor")
	}
}

func TestLoginInlineTOTP(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, _ := enrollSecondFactor(t, env, id)

	res := mustLogin(t, env, LoginRequest{
		Email:    testEmail,
		Password: testPassword,
		Code:     totpCode(t, secret, time.Now()),
	})
	if res.State != StateAuthenticated {
		t.Fatalf("state = %d", res.State)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected tokens")
	}

	acct, _ := env.store.FindByID(context.Background(), id)
	if acct.SecondFactor.UseCount != 1 {
		t.Fatalf("use count = %d, want 1", acct.SecondFactor.UseCount)
	}
}

func TestLoginInlineTOTPAcceptsSpacedInput(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, _ := enrollSecondFactor(t, env, id)

	code := totpCode(t, secret, time.Now())
	spaced := code[:3] + " " + code[3:]

	res := mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword, Code: spaced})
	if res.State != StateAuthenticated {
		t.Fatalf("state = %d", res.State)
	}
}

func TestLoginBothCodesConflict(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, codes := enrollSecondFactor(t, env, id)

	_, err := env.engine.Login(context.Background(), LoginRequest{
		Email:        testEmail,
		Password:     testPassword,
		Code:         totpCode(t, secret, time.Now()),
		RecoveryCode: codes[0],
	})
	if !errors.Is(err, ErrSecondFactorConflict) {
		t.Fatalf("expected ErrSecondFactorConflict, got %v", err)
	}
}

func TestLoginRecoveryCodeSingleUse(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	_, codes := enrollSecondFactor(t, env, id)
	ctx := context.Background()

	res := mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword, RecoveryCode: codes[0]})
	if res.State != StateAuthenticated {
		t.Fatalf("state = %d", res.State)
	}

	acct, _ := env.store.FindByID(ctx, id)
	if got := acct.UnusedRecoveryCodes(); got != len(codes)-1 {
		t.Fatalf("unused codes = %d, want %d", got, len(codes)-1)
	}

	// Replay of the consumed code fails; a sibling still works.
	if _, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, RecoveryCode: codes[0]}); !errors.Is(err, ErrSecondFactorInvalid) {
		t.Fatalf("replayed code: %v", err)
	}
	res = mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword, RecoveryCode: codes[1]})
	if res.State != StateAuthenticated {
		t.Fatalf("sibling code state = %d", res.State)
	}
}

func TestLoginRecoveryCodeNormalization(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	_, codes := enrollSecondFactor(t, env, id)

	// Lowercased with an embedded dash still matches.
	raw := codes[0]
	entered := "  " + raw[:4] + "-" + raw[4:] + " "
	res := mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword, RecoveryCode: entered})
	if res.State != StateAuthenticated {
		t.Fatalf("state = %d", res.State)
	}
}

func TestLoginSecondFactorLockout(t *testing.T) {
	cfg := testConfig()
	cfg.SecondFactor.LockoutThreshold = 3
	env := newTestEnv(t, cfg)
	id := seedAccount(t, env, testEmail, testPassword)
	enrollSecondFactor(t, env, id)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, Code: "000000"})
		if !errors.Is(err, ErrSecondFactorInvalid) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	_, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, Code: "000000"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected second-factor lockout, got %v", err)
	}

	// The password-stage lockout is independent and untouched.
	acct, _ := env.store.FindByID(ctx, id)
	if acct.Lockout.Failures != 0 {
		t.Fatalf("password failures = %d, want 0", acct.Lockout.Failures)
	}
	if acct.SecondFactor.Lockout.Failures != 3 {
		t.Fatalf("second factor failures = %d, want 3", acct.SecondFactor.Lockout.Failures)
	}
}

func TestLoginTrustedDeviceBypass(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, _ := enrollSecondFactor(t, env, id)

	client := ClientMeta{IP: "198.51.100.4", UserAgent: "Mozilla/5.0 Chrome/120 Windows"}

	res := mustLogin(t, env, LoginRequest{
		Email:       testEmail,
		Password:    testPassword,
		Code:        totpCode(t, secret, time.Now()),
		TrustDevice: true,
		Client:      client,
	})
	if res.State != StateAuthenticated {
		t.Fatalf("state = %d", res.State)
	}

	acct, _ := env.store.FindByID(context.Background(), id)
	if len(acct.TrustedDevices) != 1 {
		t.Fatalf("trusted devices = %d, want 1", len(acct.TrustedDevices))
	}

	// Same device skips the second factor entirely.
	res = mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword, Client: client})
	if res.State != StateAuthenticated {
		t.Fatalf("bypass state = %d, want authenticated", res.State)
	}

	// A different device still gets challenged.
	other := ClientMeta{IP: "198.51.100.4", UserAgent: "Mozilla/5.0 Firefox/121 Linux"}
	res = mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword, Client: other})
	if res.State != StateSecondFactorRequired {
		t.Fatalf("unknown device state = %d, want second factor required", res.State)
	}
}

func TestLoginTrustedDeviceBypassPrecedesCodeCheck(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, _ := enrollSecondFactor(t, env, id)

	client := ClientMeta{IP: "198.51.100.9", UserAgent: "Mozilla/5.0 Chrome/120 Windows"}
	mustLogin(t, env, LoginRequest{
		Email:       testEmail,
		Password:    testPassword,
		Code:        totpCode(t, secret, time.Now()),
		TrustDevice: true,
		Client:      client,
	})

	// A trusted device authenticates even when it sends a stale code, and
	// the stale code does not count as a second-factor failure.
	res := mustLogin(t, env, LoginRequest{
		Email: testEmail, Password: testPassword, Code: "000000", Client: client,
	})
	if res.State != StateAuthenticated {
		t.Fatalf("stale code on trusted device: state = %d", res.State)
	}

	acct, _ := env.store.FindByID(context.Background(), id)
	if acct.SecondFactor.Lockout.Failures != 0 {
		t.Fatalf("second factor failures = %d, want 0", acct.SecondFactor.Lockout.Failures)
	}
}

func TestLoginWithoutTrustDoesNotStoreDevice(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)
	secret, _ := enrollSecondFactor(t, env, id)

	mustLogin(t, env, LoginRequest{
		Email:    testEmail,
		Password: testPassword,
		Code:     totpCode(t, secret, time.Now()),
		Client:   ClientMeta{IP: "198.51.100.4", UserAgent: "Mozilla/5.0 Chrome/120 Windows"},
	})

	acct, _ := env.store.FindByID(context.Background(), id)
	if len(acct.TrustedDevices) != 0 {
		t.Fatalf("trusted devices = %d, want 0", len(acct.TrustedDevices))
	}
}

func TestLoginEventHistoryBounded(t *testing.T) {
	cfg := testConfig()
	cfg.Events.HistoryLimit = 5
	env := newTestEnv(t, cfg)
	id := seedAccount(t, env, testEmail, testPassword)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, _ = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: "wrong"})
		// Stay under the lockout threshold.
		env.store.mutate(id, func(a *Account) { a.Lockout = a.Lockout.Reset() })
	}

	acct, _ := env.store.FindByID(ctx, id)
	if len(acct.LoginEvents) != 5 {
		t.Fatalf("events = %d, want 5", len(acct.LoginEvents))
	}
}

func TestLoginClientMetaFromContext(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)

	ctx := WithClientIP(context.Background(), "192.0.2.55")
	ctx = WithUserAgent(ctx, "Mozilla/5.0 Safari/17 Mac OS X")

	res, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.State != StateAuthenticated {
		t.Fatalf("state = %d", res.State)
	}

	acct, _ := env.store.FindByID(context.Background(), id)
	if acct.LoginEvents[0].IP != "192.0.2.55" {
		t.Fatalf("event IP = %q", acct.LoginEvents[0].IP)
	}
	if acct.LoginEvents[0].UserAgent == "" {
		t.Fatal("user agent not captured from context")
	}
}

func TestLoginPasswordUpgrade(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id := seedAccount(t, env, testEmail, testPassword)

	// Store a hash with weaker parameters so the login triggers a rehash.
	weakHash, err := newWeakHasher(t).Hash(testPassword)
	if err != nil {
		t.Fatalf("weak hash: %v", err)
	}
	env.store.mutate(id, func(a *Account) { a.PasswordHash = weakHash })

	mustLogin(t, env, LoginRequest{Email: testEmail, Password: testPassword})

	acct, _ := env.store.FindByID(context.Background(), id)
	if acct.PasswordHash == weakHash {
		t.Fatal("hash not upgraded on login")
	}

	// The upgraded hash still verifies.
	ok, err := env.engine.hasher.Verify(testPassword, acct.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("upgraded hash verify = %v, %v", ok, err)
	}
}
