package client

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/atinyakov/keeperimport/internal/secret"
)

// ErrEmptySecret is returned when a key is derived from empty material.
var ErrEmptySecret = errors.New("empty secret material")

// SHA256Crypto derives a 32-byte key as SHA-256(salt || material).
// It implements secret.Crypto.
type SHA256Crypto struct{}

var _ secret.Crypto = SHA256Crypto{}

// Derive returns the AES-256 key for s.
func (SHA256Crypto) Derive(ctx context.Context, s secret.SaltedSecret) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.IsEmpty() {
		return nil, ErrEmptySecret
	}
	var key []byte
	err := s.Use(func(material, salt []byte) error {
		h := sha256.New()
		h.Write(salt)
		h.Write(material)
		key = h.Sum(nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// NewAEAD returns AES-GCM over key.
func NewAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}
