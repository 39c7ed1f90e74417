// Package secret provides the at-rest protection primitives for the
// authentication engine: reversible AEAD encryption for values the engine
// must read back (TOTP secrets) and one-way hashing for values it only ever
// compares (recovery codes, refresh tokens).
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const minKeyBytes = 32

var (
	// ErrKeyTooShort is an exported constant or variable used by the authentication engine.
	ErrKeyTooShort = errors.New("encryption key must be at least 32 bytes")
	// ErrCiphertextInvalid is an exported constant or variable used by the authentication engine.
	ErrCiphertextInvalid = errors.New("ciphertext invalid or tampered")
)

// Codec defines a public type used by vantor APIs.
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec struct {
	key [chacha20poly1305.KeySize]byte
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec(masterKey []byte) (*Codec, error) {
	if len(masterKey) < minKeyBytes {
		return nil, ErrKeyTooShort
	}

	// The AEAD key is derived from the master key, so callers may supply
	// any key material of sufficient length.
	c := &Codec{key: sha256.Sum256(masterKey)}
	return c, nil
}

// Encrypt describes the encrypt operation and its observable behavior.
//
// Encrypt may return an error when input validation, dependency calls, or security checks fail.
// Encrypt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt describes the decrypt operation and its observable behavior.
//
// Decrypt may return an error when input validation, dependency calls, or security checks fail.
// Decrypt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) Decrypt(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrCiphertextInvalid
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCiphertextInvalid
	}

	return plaintext, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HashString describes the hashstring operation and its observable behavior.
//
// HashString may return an error when input validation, dependency calls, or security checks fail.
// HashString does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func HashString(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

// Equal describes the equal operation and its observable behavior.
//
// Equal may return an error when input validation, dependency calls, or security checks fail.
// Equal does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Equal(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
