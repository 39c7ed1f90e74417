package totp

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	totplib "github.com/pquerna/otp/totp"
)

func testGenerator() *Generator {
	return New(Config{Issuer: "vantor-test", Digits: 6, Period: 30, Skew: 1})
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totplib.GenerateCodeCustom(secret, at, totplib.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("code generation failed: %v", err)
	}
	return code
}

func TestNewEnrollmentProducesSecretAndURI(t *testing.T) {
	g := testGenerator()

	enr, err := g.NewEnrollment("alice@example.com")
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}
	if enr.Secret == "" {
		t.Fatal("expected non-empty secret")
	}
	if !strings.HasPrefix(enr.URI, "otpauth://totp/") {
		t.Fatalf("expected otpauth URI, got %q", enr.URI)
	}
	if !strings.Contains(enr.URI, "vantor-test") {
		t.Fatalf("expected issuer in URI, got %q", enr.URI)
	}
}

func TestNewEnrollmentRequiresAccountName(t *testing.T) {
	g := testGenerator()
	if _, err := g.NewEnrollment("   "); err == nil {
		t.Fatal("expected error for blank account name")
	}
}

func TestVerifyAcceptsCurrentCode(t *testing.T) {
	g := testGenerator()
	enr, err := g.NewEnrollment("alice@example.com")
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}

	now := time.Now()
	if !g.Verify(codeAt(t, enr.Secret, now), enr.Secret, now) {
		t.Fatal("expected current code to verify")
	}
}

func TestVerifyAcceptsAdjacentStepWithinSkew(t *testing.T) {
	g := testGenerator()
	enr, err := g.NewEnrollment("alice@example.com")
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}

	now := time.Now()
	if !g.Verify(codeAt(t, enr.Secret, now.Add(-30*time.Second)), enr.Secret, now) {
		t.Fatal("expected previous-step code to verify within skew")
	}
	if !g.Verify(codeAt(t, enr.Secret, now.Add(30*time.Second)), enr.Secret, now) {
		t.Fatal("expected next-step code to verify within skew")
	}
}

func TestVerifyRejectsCodeOutsideSkew(t *testing.T) {
	g := testGenerator()
	enr, err := g.NewEnrollment("alice@example.com")
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}

	now := time.Now()
	if g.Verify(codeAt(t, enr.Secret, now.Add(-5*time.Minute)), enr.Secret, now) {
		t.Fatal("expected stale code to be rejected")
	}
}

func TestNormalizeStripsWhitespaceAndValidatesShape(t *testing.T) {
	g := testGenerator()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"123456", "123456", true},
		{" 123 456 ", "123456", true},
		{"12345", "", false},
		{"1234567", "", false},
		{"12a456", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := g.Normalize(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Normalize(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestVerifyRejectsMalformedCodeBeforeValidation(t *testing.T) {
	g := testGenerator()
	enr, err := g.NewEnrollment("alice@example.com")
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}

	if g.Verify("not-a-code", enr.Secret, time.Now()) {
		t.Fatal("expected malformed code to be rejected")
	}
}
