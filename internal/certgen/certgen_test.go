package certgen

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func parseCert(t *testing.T, certPEM []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("cert PEM invalid")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}
	return cert
}

func writeCA(t *testing.T, ca *CA) (certPath, keyPath string) {
	t.Helper()
	certPEM, keyPEM, err := ca.PEM()
	if err != nil {
		t.Fatalf("PEM: %v", err)
	}
	dir := t.TempDir()
	if err := WritePair(dir, "ca", certPEM, keyPEM); err != nil {
		t.Fatalf("WritePair: %v", err)
	}
	return filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")
}

func TestNewCA(t *testing.T) {
	ca, err := NewCA("Test CA")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if !ca.Cert.IsCA || !ca.Cert.BasicConstraintsValid {
		t.Error("CA certificate should have IsCA and BasicConstraintsValid")
	}
	if ca.Cert.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Error("CA KeyUsage lacks CertSign")
	}
	if ca.Cert.Subject.CommonName != "Test CA" {
		t.Errorf("CommonName = %q", ca.Cert.Subject.CommonName)
	}
}

func TestIssue_Client(t *testing.T) {
	ca, err := NewCA("Test CA")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	certPEM, keyPEM, err := ca.Issue("alice", RoleClient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cert := parseCert(t, certPEM)
	if cert.Subject.CommonName != "alice" {
		t.Errorf("CommonName = %q; want alice", cert.Subject.CommonName)
	}
	if !reflect.DeepEqual(cert.ExtKeyUsage, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}) {
		t.Errorf("ExtKeyUsage = %v", cert.ExtKeyUsage)
	}
	if len(cert.DNSNames) != 0 {
		t.Errorf("client cert has DNSNames %v", cert.DNSNames)
	}
	if err := cert.CheckSignatureFrom(ca.Cert); err != nil {
		t.Errorf("certificate not signed by CA: %v", err)
	}
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		t.Errorf("cert and key do not pair: %v", err)
	}
}

func TestIssue_Server(t *testing.T) {
	ca, _ := NewCA("Test CA")

	certPEM, _, err := ca.Issue("localhost", RoleServer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cert := parseCert(t, certPEM)
	if !reflect.DeepEqual(cert.DNSNames, []string{"localhost"}) {
		t.Errorf("DNSNames = %v; want [localhost]", cert.DNSNames)
	}
	if !reflect.DeepEqual(cert.ExtKeyUsage, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}) {
		t.Errorf("ExtKeyUsage = %v", cert.ExtKeyUsage)
	}

	certPEM, _, err = ca.Issue("127.0.0.1", RoleServer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cert = parseCert(t, certPEM)
	if len(cert.IPAddresses) != 1 || !cert.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("IPAddresses = %v", cert.IPAddresses)
	}
}

func TestIssue_EmptyCommonName(t *testing.T) {
	ca, _ := NewCA("Test CA")
	if _, _, err := ca.Issue("", RoleClient); err == nil {
		t.Error("expected error for empty common name")
	}
}

func TestLoadCA_RoundTrip(t *testing.T) {
	ca, _ := NewCA("Test CA")
	certPath, keyPath := writeCA(t, ca)

	loaded, err := LoadCA(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadCA: %v", err)
	}
	if loaded.Cert.Subject.CommonName != "Test CA" {
		t.Errorf("CommonName = %q", loaded.Cert.Subject.CommonName)
	}
	key, ok := loaded.Key.(*ecdsa.PrivateKey)
	if !ok {
		t.Fatalf("key type = %T; want *ecdsa.PrivateKey", loaded.Key)
	}
	if !key.PublicKey.Equal(ca.Key.Public()) {
		t.Error("public key mismatch")
	}

	// the loaded CA keeps signing
	certPEM, _, err := loaded.Issue("bob", RoleClient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := parseCert(t, certPEM).CheckSignatureFrom(ca.Cert); err != nil {
		t.Errorf("signature check failed: %v", err)
	}
}

func TestLoadCA_RSAKey(t *testing.T) {
	ca, _ := NewCA("Test CA")
	certPath, keyPath := writeCA(t, ca)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadCA(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadCA: %v", err)
	}
	if _, ok := loaded.Key.(*rsa.PrivateKey); !ok {
		t.Errorf("key type = %T; want *rsa.PrivateKey", loaded.Key)
	}
}

func TestLoadCA_Errors(t *testing.T) {
	ca, _ := NewCA("Test CA")
	certPath, keyPath := writeCA(t, ca)
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.pem")
	_ = os.WriteFile(junk, []byte("not a pem"), 0600)
	unknown := filepath.Join(dir, "unknown.pem")
	_ = os.WriteFile(unknown, pem.EncodeToMemory(&pem.Block{Type: "DSA PRIVATE KEY", Bytes: []byte{1}}), 0600)

	tests := []struct {
		name     string
		cert     string
		key      string
		contains string
	}{
		{"missing cert", "/no/such/file.pem", keyPath, "read ca cert"},
		{"missing key", certPath, "/no/such/key.pem", "read ca key"},
		{"bad cert", junk, keyPath, "invalid CA cert PEM"},
		{"bad key", certPath, junk, "invalid CA key PEM"},
		{"unsupported key", certPath, unknown, "unsupported key type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCA(tt.cert, tt.key)
			if err == nil || !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("got %v; want error containing %q", err, tt.contains)
			}
		})
	}
}

func TestWritePair_KeyMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	if err := WritePair(dir, "client", []byte("c"), []byte("k")); err != nil {
		t.Fatalf("WritePair: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "client.key"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key mode = %v; want 0600", info.Mode().Perm())
	}
}
