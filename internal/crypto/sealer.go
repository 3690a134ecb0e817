// Package crypto seals secret material stored alongside API key records.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "campaign-agent-api/api-key-sealing/v1"

// ErrCiphertext is returned for sealed values that cannot be opened.
var ErrCiphertext = errors.New("invalid ciphertext")

// Sealer encrypts and decrypts small secrets with AES-256-GCM.
// It is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer. A 32-byte secret is used as the AES key
// directly; anything else of at least 16 bytes is stretched with HKDF.
func NewSealer(secret []byte) (*Sealer, error) {
	key := secret
	if len(secret) != 32 {
		if len(secret) < 16 {
			return nil, fmt.Errorf("encryption secret must be at least 16 bytes, got %d", len(secret))
		}
		key = make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
			return nil, fmt.Errorf("deriving encryption key: %w", err)
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
// The associated data binds the ciphertext to its record; Open must be
// given the same value.
func (s *Sealer) Seal(plaintext, associatedData []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nonce, nonce, plaintext, associatedData)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string, associatedData []byte) ([]byte, error) {
	enc, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrCiphertext
	}

	nonceSize := s.aead.NonceSize()
	if len(enc) < nonceSize {
		return nil, ErrCiphertext
	}

	nonce, ciphertext := enc[:nonceSize], enc[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, ErrCiphertext
	}

	return plaintext, nil
}
