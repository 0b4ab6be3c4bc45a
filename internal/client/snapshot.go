package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/atinyakov/keeperimport/internal/models"
	"github.com/atinyakov/keeperimport/internal/secret"
)

// SaltSize is the length of the random salt stored with a sealed snapshot.
const SaltSize = 16

// ErrSealed is returned when a sealed snapshot is loaded without key material.
var ErrSealed = errors.New("snapshot is sealed")

// snapshotEntry is the on-disk form of a vault entry. Unlike
// models.VaultEntry it carries the password.
type snapshotEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	Note     string `json:"note"`
	Version  int64  `json:"version"`
}

type sealedSnapshot struct {
	Salt string `json:"salt"`
	Data string `json:"data"` // base64(nonce || ciphertext)
}

func toFile(entries []models.VaultEntry) []snapshotEntry {
	out := make([]snapshotEntry, len(entries))
	for i, e := range entries {
		out[i] = snapshotEntry(e)
	}
	return out
}

func fromFile(entries []snapshotEntry) []models.VaultEntry {
	out := make([]models.VaultEntry, len(entries))
	for i, e := range entries {
		out[i] = models.VaultEntry(e)
	}
	return out
}

// SaveSnapshot writes entries to path. With non-empty material the file is
// sealed with AES-GCM under a key derived by c from material and a fresh
// random salt; otherwise it is written as a plain JSON array.
func SaveSnapshot(ctx context.Context, path string, entries []models.VaultEntry, material []byte, c secret.Crypto) error {
	plain, err := json.Marshal(toFile(entries))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if len(material) == 0 {
		return os.WriteFile(path, plain, 0600)
	}

	saltBytes := make([]byte, SaltSize)
	if _, err := rand.Read(saltBytes); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	salt := secret.NewSalt(saltBytes)
	key, err := c.Derive(ctx, secret.NewSaltedSecret(material, salt))
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	aead, err := NewAEAD(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	out, err := json.Marshal(sealedSnapshot{
		Salt: base64.StdEncoding.EncodeToString(salt.Bytes()),
		Data: base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, plain, nil)),
	})
	if err != nil {
		return fmt.Errorf("encode sealed snapshot: %w", err)
	}
	return os.WriteFile(path, out, 0600)
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. A plain snapshot is
// read regardless of material; a sealed one needs the material it was
// sealed with.
func LoadSnapshot(ctx context.Context, path string, material []byte, c secret.Crypto) ([]models.VaultEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		var entries []snapshotEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		return fromFile(entries), nil
	}

	var sealed sealedSnapshot
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, fmt.Errorf("decode sealed snapshot: %w", err)
	}
	if len(material) == 0 {
		return nil, ErrSealed
	}
	saltBytes, err := base64.StdEncoding.DecodeString(sealed.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(sealed.Data)
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}

	key, err := c.Derive(ctx, secret.NewSaltedSecret(material, secret.NewSalt(saltBytes)))
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, errors.New("sealed snapshot too short")
	}
	plain, err := aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}

	var entries []snapshotEntry
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return fromFile(entries), nil
}
