// Package main initializes and starts the import HTTPS server, setting up
// configuration, logging, the vault snapshot repository, the reconciliation
// engine, the breach client, handlers, and TLS.
package main

import (
	"cmp"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/keeperimport/internal/breach"
	"github.com/atinyakov/keeperimport/internal/config"
	"github.com/atinyakov/keeperimport/internal/db"
	"github.com/atinyakov/keeperimport/internal/logger"
	"github.com/atinyakov/keeperimport/internal/reconcile"
	"github.com/atinyakov/keeperimport/internal/repository"
	"github.com/atinyakov/keeperimport/internal/server/handler/http"
	"github.com/atinyakov/keeperimport/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, environment and file configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	vaultRepo := repository.NewPostgresVaultRepository(postgresDB)

	engine, err := reconcile.New(
		reconcile.WithThresholds(options.Thresholds()),
		reconcile.WithPrefilter(options.Prefilter),
	)
	if err != nil {
		zapLogger.Fatal("invalid reconciliation settings", zap.Error(err))
	}

	breachClient := breach.NewClient(
		&nethttp.Client{Timeout: time.Duration(options.TimeoutSeconds) * time.Second},
		breach.WithBaseURL(options.BreachURL),
		breach.WithPrefixLength(options.PrefixLength),
		breach.WithLogger(zapLogger),
	)

	// Initialize business-logic services.
	importService := service.NewImportService(vaultRepo, engine, zapLogger)
	auditService := service.NewAuditService(vaultRepo, breachClient, options.AuditWorkers, zapLogger)

	// Create HTTP handlers and build the router.
	importHandler := &http.ImportHandler{ImportService: importService}
	breachHandler := &http.BreachHandler{AuditService: auditService}
	router := http.NewRouter(importHandler, breachHandler, zapLogger)

	// Load server TLS certificate and key.
	cert, err := tls.LoadX509KeyPair("certs/server.crt", "certs/server.key")
	if err != nil {
		zapLogger.Fatal("failed to load server TLS cert/key", zap.Error(err))
	}

	// Load and append CA certificate for client cert verification.
	caCert, err := os.ReadFile("certs/ca.crt")
	if err != nil {
		zapLogger.Fatal("failed to read CA cert", zap.Error(err))
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		zapLogger.Fatal("failed to append CA cert to pool")
	}

	// Health checks connect without a certificate; CertAuth rejects the rest.
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zapLogger.Info("starting HTTPS server",
		zap.String("addr", options.Port),
		zap.Float64("high_threshold", options.HighThreshold),
		zap.Bool("prefilter", options.Prefilter),
		zap.Int("prefix_length", breachClient.PrefixLength()),
	)
	if err := server.ListenAndServeTLS("", ""); err != nil {
		zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
	}
}
