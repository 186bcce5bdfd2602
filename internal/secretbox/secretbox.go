// Package secretbox encrypts short secrets at rest with AES-256-GCM.
//
// Ciphertexts are transportable strings: base64(nonce || ciphertext || tag).
// Every authentication failure during decryption surfaces as the single
// [ErrDecryptionFailed] value so callers cannot distinguish a wrong key from
// corrupted input.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
)

// ErrDecryptionFailed is returned for every decryption failure, regardless
// of cause.
var ErrDecryptionFailed = errors.New("secretbox: decryption failed")

const (
	keySize   = 32
	nonceSize = 16
)

// Box performs authenticated encryption under a fixed 256-bit key.
type Box struct {
	key []byte
}

// New creates a Box. The key must be exactly 32 bytes.
func New(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, errors.New("secretbox: key must be 32 bytes")
	}
	owned := make([]byte, keySize)
	copy(owned, key)
	return &Box{key: owned}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Two calls with the
// same plaintext produce different outputs.
func (b *Box) Encrypt(plaintext string) (string, error) {
	gcm, err := b.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Truncated, corrupted, or
// wrong-key inputs all fail with ErrDecryptionFailed.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < nonceSize {
		return "", ErrDecryptionFailed
	}

	gcm, err := b.aead()
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func (b *Box) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// Equal compares two strings in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
