package vantor

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"access ttl not below refresh", func(c *Config) { c.Token.AccessTTL = c.Token.RefreshTTL }, "shorter than"},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "none" }, "signing method"},
		{"ed25519 without keys", func(c *Config) {
			c.Token.SigningMethod = "ed25519"
			c.Token.PrivateKey = nil
		}, "PrivateKey"},
		{"zero refresh cap", func(c *Config) { c.Token.MaxActiveRefresh = 0 }, "MaxActiveRefresh"},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"invalid totp digits", func(c *Config) { c.SecondFactor.Digits = 7 }, "Digits"},
		{"excessive skew", func(c *Config) { c.SecondFactor.Skew = 2 }, "Skew"},
		{"reset ttl too long", func(c *Config) { c.PasswordReset.TTL = time.Hour }, "PasswordReset TTL"},
		{"reset attempts", func(c *Config) { c.PasswordReset.MaxAttempts = 0 }, "PasswordReset MaxAttempts"},
		{"recovery count too low", func(c *Config) { c.SecondFactor.RecoveryCodeCount = 4 }, "RecoveryCodeCount"},
		{"recovery count too high", func(c *Config) { c.SecondFactor.RecoveryCodeCount = 16 }, "RecoveryCodeCount"},
		{"zero lockout threshold", func(c *Config) { c.Lockout.Threshold = 0 }, "Threshold"},
		{"zero history limit", func(c *Config) { c.Events.HistoryLimit = 0 }, "HistoryLimit"},
		{"verification ttl too long", func(c *Config) { c.Verification.TTL = time.Hour }, "TTL"},
		{"verification attempts too high", func(c *Config) { c.Verification.MaxAttempts = 9 }, "MaxAttempts"},
		{"short encryption key", func(c *Config) { c.Secrets.EncryptionKey = []byte("short") }, "EncryptionKey"},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Lockout.Threshold != 5 || cfg.Lockout.Duration != 30*time.Minute {
		t.Fatalf("lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.SecondFactor.LockoutThreshold != 5 || cfg.SecondFactor.LockoutDuration != 15*time.Minute {
		t.Fatalf("second factor lockout defaults: %+v", cfg.SecondFactor)
	}
	if cfg.SecondFactor.Digits != 6 || cfg.SecondFactor.Period != 30 || cfg.SecondFactor.Skew != 1 {
		t.Fatalf("totp defaults: %+v", cfg.SecondFactor)
	}
	if cfg.SecondFactor.PendingWindow != 10*time.Minute {
		t.Fatalf("pending window = %v", cfg.SecondFactor.PendingWindow)
	}
	if cfg.Events.HistoryLimit != 20 {
		t.Fatalf("history limit = %d", cfg.Events.HistoryLimit)
	}
	if cfg.Token.MaxActiveRefresh != 5 {
		t.Fatalf("refresh cap = %d", cfg.Token.MaxActiveRefresh)
	}
}

func TestCloneConfigIsolation(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)

	clone.Token.PrivateKey[0] ^= 0xFF
	clone.Secrets.EncryptionKey[0] ^= 0xFF

	if cfg.Token.PrivateKey[0] == clone.Token.PrivateKey[0] {
		t.Fatal("private key aliases the original")
	}
	if cfg.Secrets.EncryptionKey[0] == clone.Secrets.EncryptionKey[0] {
		t.Fatal("encryption key aliases the original")
	}
}
