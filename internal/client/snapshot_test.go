package client

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/atinyakov/keeperimport/internal/models"
)

var entries = []models.VaultEntry{
	{ID: "e1", Name: "GitHub", URL: "https://github.com", Username: "alice", Password: "hunter22", Version: 3},
	{ID: "e2", Name: "Mail", URL: "https://mail.test", Username: "alice", Password: "s3cret", Note: "work"},
}

func TestSnapshot_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	ctx := context.Background()

	if err := SaveSnapshot(ctx, path, entries, nil, SHA256Crypto{}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err := LoadSnapshot(ctx, path, nil, SHA256Crypto{})
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("LoadSnapshot = %+v; want %+v", got, entries)
	}
}

func TestSnapshot_Sealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.sealed")
	ctx := context.Background()
	material := []byte("client certificate pem")

	if err := SaveSnapshot(ctx, path, entries, material, SHA256Crypto{}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if bytes.Contains(raw, []byte("hunter22")) || bytes.Contains(raw, []byte("GitHub")) {
		t.Error("sealed snapshot contains plaintext")
	}

	got, err := LoadSnapshot(ctx, path, material, SHA256Crypto{})
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("LoadSnapshot = %+v; want %+v", got, entries)
	}

	if _, err := LoadSnapshot(ctx, path, []byte("other"), SHA256Crypto{}); err == nil {
		t.Error("expected decryption error with the wrong material")
	}
	if _, err := LoadSnapshot(ctx, path, nil, SHA256Crypto{}); !errors.Is(err, ErrSealed) {
		t.Errorf("expected ErrSealed, got %v", err)
	}
}

func TestSnapshot_FreshSaltPerSave(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	material := []byte("k")
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	if err := SaveSnapshot(ctx, a, entries, material, SHA256Crypto{}); err != nil {
		t.Fatal(err)
	}
	if err := SaveSnapshot(ctx, b, entries, material, SHA256Crypto{}); err != nil {
		t.Fatal(err)
	}
	ra, _ := os.ReadFile(a)
	rb, _ := os.ReadFile(b)
	if bytes.Equal(ra, rb) {
		t.Error("two sealed snapshots are identical")
	}
}

func TestLoadSnapshot_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if _, err := LoadSnapshot(ctx, filepath.Join(dir, "missing"), nil, SHA256Crypto{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not exist, got %v", err)
	}

	bad := filepath.Join(dir, "bad")
	_ = os.WriteFile(bad, []byte("not-a-json"), 0600)
	if _, err := LoadSnapshot(ctx, bad, []byte("k"), SHA256Crypto{}); err == nil {
		t.Error("expected decode error")
	}

	short := filepath.Join(dir, "short")
	_ = os.WriteFile(short, []byte(`{"salt":"AAAA","data":"AAAA"}`), 0600)
	if _, err := LoadSnapshot(ctx, short, []byte("k"), SHA256Crypto{}); err == nil {
		t.Error("expected short data error")
	}
}
