// Package service wires the importer, the reconciliation engine and the
// breach client to the vault snapshot, delegating persistence to repository
// interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/keeperimport/internal/importer"
	"github.com/atinyakov/keeperimport/internal/models"
	"github.com/atinyakov/keeperimport/internal/reconcile"
)

// ErrInvalidExport wraps every failure to read or parse the uploaded export,
// as opposed to failures reading the vault.
var ErrInvalidExport = errors.New("parse export")

// VaultRepository defines the read operations needed from the vault snapshot.
type VaultRepository interface {
	// Snapshot returns every live entry of the user.
	Snapshot(ctx context.Context, userLogin string) ([]models.VaultEntry, error)
	// SnapshotByIDs returns the live entries of the user with the given ids.
	SnapshotByIDs(ctx context.Context, userLogin string, ids []string) ([]models.VaultEntry, error)
}

// Reconciler classifies incoming records against vault entries.
type Reconciler interface {
	Reconcile(existing []models.VaultEntry, incoming []importer.IncomingCredential) []reconcile.Decision
}

// ImportReport is the outcome of one import session. It describes; it does
// not change anything.
type ImportReport struct {
	// ID identifies the session in logs.
	ID string `json:"id"`
	// Summary counts decisions per kind.
	Summary map[models.DecisionKind]int `json:"summary"`
	// Decisions holds one decision per unique incoming record, in input order.
	Decisions []reconcile.Decision `json:"decisions"`
}

// ImportService parses an export and reconciles it against the user's vault.
type ImportService struct {
	repo   VaultRepository
	engine Reconciler
	log    *zap.Logger
}

// NewImportService constructs an ImportService. A nil logger is replaced
// with a no-op logger.
func NewImportService(repo VaultRepository, engine Reconciler, log *zap.Logger) *ImportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportService{repo: repo, engine: engine, log: log}
}

// Import parses r and reconciles the records against the current vault
// snapshot of userLogin. Export failures wrap ErrInvalidExport; a rejected
// header additionally wraps importer.ErrImportFormat.
func (s *ImportService) Import(ctx context.Context, userLogin string, r io.Reader) (*ImportReport, error) {
	id := uuid.NewString()
	log := s.log.With(zap.String("import_id", id), zap.String("user", userLogin))

	incoming, err := importer.Parse(r)
	if err != nil {
		log.Warn("import rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}

	existing, err := s.repo.Snapshot(ctx, userLogin)
	if err != nil {
		log.Error("vault snapshot failed", zap.Error(err))
		return nil, fmt.Errorf("vault snapshot: %w", err)
	}

	decisions := s.engine.Reconcile(existing, incoming)
	summary := reconcile.Summary(decisions)

	log.Info("import reconciled",
		zap.Int("incoming", len(incoming)),
		zap.Int("vault", len(existing)),
		zap.Int("new", summary[models.NewEntry]),
		zap.Int("duplicates", summary[models.ExactDuplicate]),
		zap.Int("fuzzy", summary[models.FuzzyCandidate]),
		zap.Int("conflicts", summary[models.Conflict]),
	)

	return &ImportReport{ID: id, Summary: summary, Decisions: decisions}, nil
}
