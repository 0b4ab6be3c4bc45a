// Package main generates the certificates for a development deployment:
// a CA, a server certificate and one client certificate per vault user,
// written under the certs directory.
//
// When <dir>/ca.crt already exists the CA is reused and only the requested
// client certificates are issued.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/keeperimport/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := flags.String("dir", "certs", "output directory")
	host := flags.String("host", "localhost", "server host name or IP")
	users := flags.String("users", "alice", "comma-separated vault user logins")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ca, created, err := loadOrCreateCA(*dir)
	if err != nil {
		return err
	}
	if created {
		certPEM, keyPEM, err := ca.Issue(*host, certgen.RoleServer)
		if err != nil {
			return fmt.Errorf("issue server cert: %w", err)
		}
		if err := certgen.WritePair(*dir, "server", certPEM, keyPEM); err != nil {
			return err
		}
	}

	for _, user := range strings.Split(*users, ",") {
		user = strings.TrimSpace(user)
		if user == "" {
			continue
		}
		certPEM, keyPEM, err := ca.Issue(user, certgen.RoleClient)
		if err != nil {
			return fmt.Errorf("issue client cert for %s: %w", user, err)
		}
		if err := certgen.WritePair(*dir, user, certPEM, keyPEM); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Certificates generated into %s\n", *dir)
	return nil
}

func loadOrCreateCA(dir string) (*certgen.CA, bool, error) {
	certPath, keyPath := filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")
	if _, err := os.Stat(certPath); err == nil {
		ca, err := certgen.LoadCA(certPath, keyPath)
		return ca, false, err
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	ca, err := certgen.NewCA("Keeper Import CA")
	if err != nil {
		return nil, false, err
	}
	certPEM, keyPEM, err := ca.PEM()
	if err != nil {
		return nil, false, err
	}
	if err := certgen.WritePair(dir, "ca", certPEM, keyPEM); err != nil {
		return nil, false, err
	}
	return ca, true, nil
}
