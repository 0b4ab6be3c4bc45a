// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and an
// optional JSON or YAML config file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/atinyakov/keeperimport/internal/breach"
	"github.com/atinyakov/keeperimport/internal/reconcile"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port" yaml:"port"`

	// DatabaseDSN holds the database connection string for the vault snapshot.
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-" yaml:"-"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// BreachURL is the range endpoint; the hash prefix is appended to it.
	BreachURL string `json:"breach_url" yaml:"breach_url"`

	// PrefixLength is the number of hash characters sent per breach query.
	PrefixLength int `json:"prefix_length" yaml:"prefix_length"`

	// TimeoutSeconds bounds each breach query.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// HighThreshold is the minimum score for a fuzzy candidate.
	HighThreshold float64 `json:"high_threshold" yaml:"high_threshold"`

	// Prefilter narrows reconciliation candidates by host and name.
	Prefilter bool `json:"prefilter" yaml:"prefilter"`

	// AuditWorkers bounds concurrent breach checks during a vault audit.
	AuditWorkers int `json:"audit_workers" yaml:"audit_workers"`
}

// Default returns the options used when nothing else is configured.
func Default() *Options {
	return &Options{
		Port:           "localhost:8080",
		Config:         "config.json",
		LogLevel:       "info",
		BreachURL:      breach.DefaultBaseURL,
		PrefixLength:   breach.DefaultPrefixLength,
		TimeoutSeconds: 10,
		HighThreshold:  reconcile.DefaultHighThreshold,
		Prefilter:      true,
		AuditWorkers:   4,
	}
}

// Parse parses the process flags and environment variables. It exits the
// process on invalid configuration.
func Parse() *Options {
	opts, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return opts
}

// Load builds Options from args and getenv. Precedence, lowest first:
// defaults, config file, explicitly set flags, environment variables.
func Load(args []string, getenv func(string) string) (*Options, error) {
	opts := Default()
	flags := Default()

	fs := flag.NewFlagSet("keeperimport", flag.ContinueOnError)
	fs.StringVar(&flags.Port, "a", flags.Port, "run on ip:port server")
	fs.StringVar(&flags.DatabaseDSN, "d", flags.DatabaseDSN, "db address")
	fs.StringVar(&flags.Config, "config", flags.Config, "path to config file")
	fs.StringVar(&flags.Config, "c", flags.Config, "path to config file (shorthand)")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "log level")
	fs.StringVar(&flags.BreachURL, "breach-url", flags.BreachURL, "breach range endpoint")
	fs.IntVar(&flags.PrefixLength, "prefix", flags.PrefixLength, "hash prefix length sent to the breach endpoint")
	fs.IntVar(&flags.TimeoutSeconds, "timeout", flags.TimeoutSeconds, "breach query timeout in seconds")
	fs.Float64Var(&flags.HighThreshold, "high", flags.HighThreshold, "fuzzy candidate threshold")
	fs.BoolVar(&flags.Prefilter, "prefilter", flags.Prefilter, "pre-filter reconciliation candidates")
	fs.IntVar(&flags.AuditWorkers, "workers", flags.AuditWorkers, "concurrent breach checks during audit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	path := flags.Config
	if configPath := getenv("CONFIG"); configPath != "" {
		path = configPath
	}
	if err := loadFile(path, opts); err != nil {
		return nil, err
	}
	opts.Config = path

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			opts.Port = flags.Port
		case "d":
			opts.DatabaseDSN = flags.DatabaseDSN
		case "log-level":
			opts.LogLevel = flags.LogLevel
		case "breach-url":
			opts.BreachURL = flags.BreachURL
		case "prefix":
			opts.PrefixLength = flags.PrefixLength
		case "timeout":
			opts.TimeoutSeconds = flags.TimeoutSeconds
		case "high":
			opts.HighThreshold = flags.HighThreshold
		case "prefilter":
			opts.Prefilter = flags.Prefilter
		case "workers":
			opts.AuditWorkers = flags.AuditWorkers
		}
	})

	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		opts.Port = serverAddress
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		opts.DatabaseDSN = dsn
	}
	if u := getenv("BREACH_API_URL"); u != "" {
		opts.BreachURL = u
	}
	if lvl := getenv("LOG_LEVEL"); lvl != "" {
		opts.LogLevel = lvl
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// loadFile merges the config file at path into opts. A missing file is not
// an error.
func loadFile(path string, opts *Options) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, opts)
	default:
		err = json.Unmarshal(data, opts)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (o *Options) Validate() error {
	var errs []error
	if o.PrefixLength < 1 || o.PrefixLength > 40 {
		errs = append(errs, fmt.Errorf("prefix length %d out of range [1,40]", o.PrefixLength))
	}
	if o.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %d", o.TimeoutSeconds))
	}
	if o.AuditWorkers <= 0 {
		errs = append(errs, fmt.Errorf("audit workers must be positive, got %d", o.AuditWorkers))
	}
	if err := o.Thresholds().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Thresholds returns the reconciliation thresholds.
func (o *Options) Thresholds() reconcile.Thresholds {
	return reconcile.Thresholds{High: o.HighThreshold}
}
