package vantor

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/vantorlabs/vantor/secret"
)

// Alphabet excludes 0/O/1/I to keep hand-typed codes unambiguous.
const recoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newRecoveryCode(length int) (string, error) {
	if length < 8 {
		return "", errors.New("invalid recovery code length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(recoveryCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(recoveryCodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// newRecoveryCodes returns the plaintext codes shown to the user exactly
// once, alongside the hash records stored on the account.
func newRecoveryCodes(count, length int) ([]string, []RecoveryCode, error) {
	plain := make([]string, 0, count)
	records := make([]RecoveryCode, 0, count)

	for i := 0; i < count; i++ {
		code, err := newRecoveryCode(length)
		if err != nil {
			return nil, nil, err
		}
		plain = append(plain, code)
		records = append(records, RecoveryCode{Hash: secret.HashString(code)})
	}

	return plain, records, nil
}

func normalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}

func newNumericOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// maskEmail keeps the first character of the local part and the full domain,
// enough for the account holder to recognize the address without leaking it.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return "***"
	}
	if at <= 1 {
		return "*" + email[at:]
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
