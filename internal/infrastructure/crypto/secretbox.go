// Package crypto seals and opens the secret-bearing columns (printer
// credentials, webhook URLs, SMTP password, OAuth client secret) that the
// State Store persists as ciphertext. The key is loaded once at process
// startup from ENCRYPTION_KEY and held read-only for the process lifetime.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeyBytes is the required raw key length for AES-256-GCM.
const KeyBytes = 32

// Sealer seals and opens secret-column plaintext with AES-GCM. It is safe
// for concurrent use; the key is never mutated after construction.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer constructs a Sealer from a raw 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeyBytes {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeyBytes, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

// NewSealerFromBase64 decodes a base64-encoded key (the ENCRYPTION_KEY
// environment variable format) and constructs a Sealer.
func NewSealerFromBase64(encoded string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts plaintext and returns a base64-encoded nonce||ciphertext
// blob suitable for storing in a secret column.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: read nonce: %w", err)
	}
	ciphertext := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("crypto: decode blob: %w", err)
	}
	nonceSize := s.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("crypto: ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open: %w", err)
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh random 32-byte key, base64-encoded, suitable
// for seeding ENCRYPTION_KEY in a new deployment.
func GenerateKey() (string, error) {
	key := make([]byte, KeyBytes)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("crypto: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
