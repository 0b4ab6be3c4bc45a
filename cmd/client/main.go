package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/atinyakov/keeperimport/internal/breach"
	"github.com/atinyakov/keeperimport/internal/client"
	"github.com/atinyakov/keeperimport/internal/importer"
	"github.com/atinyakov/keeperimport/internal/reconcile"
	"github.com/atinyakov/keeperimport/internal/service"
)

var (
	version   string
	buildDate string
)

type flags struct {
	cmd       string
	baseURL   string
	certFile  string
	keyFile   string
	caFile    string
	file      string
	vault     string
	out       string
	ids       string
	seal      bool
	remote    bool
	high      float64
	prefilter bool
	showVer   bool
}

// main parses command-line flags and dispatches to the requested command.
func main() {
	var f flags
	flag.StringVar(&f.cmd, "cmd", "", "command: import | reconcile | seal | breach | audit")
	flag.StringVar(&f.baseURL, "url", "https://localhost:8080", "server base URL")
	flag.StringVar(&f.certFile, "cert", "certs/alice.crt", "path to client cert")
	flag.StringVar(&f.keyFile, "key", "certs/alice.key", "path to client key")
	flag.StringVar(&f.caFile, "ca", "certs/ca.crt", "path to CA cert")
	flag.StringVar(&f.file, "file", "", "exported CSV file")
	flag.StringVar(&f.vault, "vault", "vault.json", "local vault snapshot")
	flag.StringVar(&f.out, "out", "", "output path for seal")
	flag.StringVar(&f.ids, "ids", "", "comma-separated entry ids to audit")
	flag.BoolVar(&f.seal, "sealed", false, "vault snapshot is sealed with the client certificate")
	flag.BoolVar(&f.remote, "remote", false, "check breaches through the server")
	flag.Float64Var(&f.high, "high", reconcile.DefaultHighThreshold, "fuzzy candidate threshold for reconcile")
	flag.BoolVar(&f.prefilter, "prefilter", true, "pre-filter candidates for reconcile")
	flag.BoolVar(&f.showVer, "version", false, "show build version and date")
	flag.Parse()

	if f.showVer {
		fmt.Printf("Keeper Import Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch f.cmd {
	case "import":
		err = runImport(ctx, f)
	case "reconcile":
		err = runReconcile(ctx, f)
	case "seal":
		err = runSeal(ctx, f)
	case "breach":
		err = runBreach(ctx, f)
	case "audit":
		err = runAudit(ctx, f)
	default:
		log.Fatalf("unknown command: %s", f.cmd)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func newAPI(f flags) (*client.API, error) {
	hc, err := client.LoadClientCertificate(f.certFile, f.keyFile, f.caFile)
	if err != nil {
		return nil, err
	}
	return client.NewAPI(hc, f.baseURL), nil
}

// runImport uploads the export to the server and prints the report.
func runImport(ctx context.Context, f flags) error {
	export, err := openExport(f.file)
	if err != nil {
		return err
	}
	defer export.Close()

	api, err := newAPI(f)
	if err != nil {
		return err
	}
	report, err := api.Import(ctx, export)
	if err != nil {
		return err
	}
	return printJSON(report)
}

// runReconcile reconciles the export against a local vault snapshot without
// contacting the server.
func runReconcile(ctx context.Context, f flags) error {
	export, err := openExport(f.file)
	if err != nil {
		return err
	}
	defer export.Close()

	incoming, err := importer.Parse(export)
	if err != nil {
		return fmt.Errorf("parse export: %w", err)
	}
	material, err := sealMaterial(f)
	if err != nil {
		return err
	}
	existing, err := client.LoadSnapshot(ctx, f.vault, material, client.SHA256Crypto{})
	if err != nil {
		return err
	}

	engine, err := reconcile.New(
		reconcile.WithThresholds(reconcile.Thresholds{High: f.high}),
		reconcile.WithPrefilter(f.prefilter),
	)
	if err != nil {
		return err
	}
	decisions := engine.Reconcile(existing, incoming)
	return printJSON(service.ImportReport{
		ID:        "local",
		Summary:   reconcile.Summary(decisions),
		Decisions: decisions,
	})
}

// runSeal re-writes a plain vault snapshot sealed with the client
// certificate.
func runSeal(ctx context.Context, f flags) error {
	if f.out == "" {
		return fmt.Errorf("please provide -out=path")
	}
	entries, err := client.LoadSnapshot(ctx, f.vault, nil, client.SHA256Crypto{})
	if err != nil {
		return err
	}
	material, err := os.ReadFile(f.certFile)
	if err != nil {
		return fmt.Errorf("read client cert: %w", err)
	}
	if err := client.SaveSnapshot(ctx, f.out, entries, material, client.SHA256Crypto{}); err != nil {
		return err
	}
	fmt.Printf("Sealed %d entries into %s\n", len(entries), f.out)
	return nil
}

// runBreach prompts for a password and checks it, either directly against
// the range API or through the server.
func runBreach(ctx context.Context, f flags) error {
	password, err := client.PromptPassword(os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	var breached bool
	if f.remote {
		api, err := newAPI(f)
		if err != nil {
			return err
		}
		breached, err = api.CheckBreach(ctx, password)
		if err != nil {
			return err
		}
	} else {
		res, ok := <-breach.NewClient(&http.Client{Timeout: breach.DefaultTimeout}).CheckAsync(ctx, password)
		if !ok {
			return ctx.Err()
		}
		if res.Err != nil {
			return res.Err
		}
		breached = res.Breached
	}

	if breached {
		fmt.Println("This password appears in a known breach.")
	} else {
		fmt.Println("This password was not found in known breaches.")
	}
	return nil
}

// runAudit asks the server to audit the caller's vault.
func runAudit(ctx context.Context, f flags) error {
	api, err := newAPI(f)
	if err != nil {
		return err
	}
	var ids []string
	for _, id := range strings.Split(f.ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	results, err := api.Audit(ctx, ids)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func openExport(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("please provide -file=export.csv")
	}
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func sealMaterial(f flags) ([]byte, error) {
	if !f.seal {
		return nil, nil
	}
	material, err := os.ReadFile(f.certFile)
	if err != nil {
		return nil, fmt.Errorf("read client cert: %w", err)
	}
	return material, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
