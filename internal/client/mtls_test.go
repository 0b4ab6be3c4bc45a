package client

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// helper: generate a self-signed CA cert and key
func generateCACert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	certTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CA"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, certTmpl, certTmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM
}

func writeFiles(t *testing.T, files map[string][]byte) string {
	t.Helper()
	tmp := t.TempDir()
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(tmp, name), data, 0600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return tmp
}

func TestLoadClientCertificate(t *testing.T) {
	certPEM, keyPEM := generateCACert(t)
	// use same cert as CA
	tmp := writeFiles(t, map[string][]byte{"client.crt": certPEM, "client.key": keyPEM, "ca.pem": certPEM})

	client, err := LoadClientCertificate(
		filepath.Join(tmp, "client.crt"), filepath.Join(tmp, "client.key"), filepath.Join(tmp, "ca.pem"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v; want %v", client.Timeout, DefaultTimeout)
	}
	tcfg := client.Transport.(*http.Transport).TLSClientConfig
	if len(tcfg.Certificates) != 1 {
		t.Errorf("expected 1 client certificate, got %d", len(tcfg.Certificates))
	}
	found := false
	for _, subj := range tcfg.RootCAs.Subjects() {
		if bytes.Contains(subj, []byte("Test CA")) {
			found = true
			break
		}
	}
	if !found {
		t.Error("CA certificate not found in RootCAs")
	}
}

func TestLoadClientCertificate_MissingKeyPair(t *testing.T) {
	_, err := LoadClientCertificate("nonexistent.crt", "nonexistent.key", "ca.pem")
	if err == nil || !strings.Contains(err.Error(), "client cert/key") {
		t.Errorf("expected cert/key error, got %v", err)
	}
}

func TestLoadClientCertificate_MissingCA(t *testing.T) {
	certPEM, keyPEM := generateCACert(t)
	tmp := writeFiles(t, map[string][]byte{"client.crt": certPEM, "client.key": keyPEM})

	_, err := LoadClientCertificate(
		filepath.Join(tmp, "client.crt"), filepath.Join(tmp, "client.key"), filepath.Join(tmp, "ca.pem"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file not exist error, got %v", err)
	}
}

func TestLoadClientCertificate_InvalidCA(t *testing.T) {
	certPEM, keyPEM := generateCACert(t)
	tmp := writeFiles(t, map[string][]byte{"client.crt": certPEM, "client.key": keyPEM, "ca.pem": []byte("invalid pem")})

	_, err := LoadClientCertificate(
		filepath.Join(tmp, "client.crt"), filepath.Join(tmp, "client.key"), filepath.Join(tmp, "ca.pem"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse CA cert") {
		t.Errorf("expected parse CA error, got %v", err)
	}
}
