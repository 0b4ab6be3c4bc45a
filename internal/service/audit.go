package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/keeperimport/internal/models"
)

// BreachChecker reports whether a password appears in a breach corpus.
type BreachChecker interface {
	Check(ctx context.Context, password string) (bool, error)
}

// AuditResult is the breach status of one vault entry at the moment the
// check completed. Err is set when that single check failed.
type AuditResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Breached bool   `json:"breached"`
	Err      string `json:"error,omitempty"`
}

// AuditService checks vault passwords against the breach corpus.
type AuditService struct {
	repo    VaultRepository
	checker BreachChecker
	workers int
	log     *zap.Logger
}

// NewAuditService constructs an AuditService running at most workers checks
// at a time.
func NewAuditService(repo VaultRepository, checker BreachChecker, workers int, log *zap.Logger) *AuditService {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditService{repo: repo, checker: checker, workers: workers, log: log}
}

// CheckPassword runs a single breach check.
func (s *AuditService) CheckPassword(ctx context.Context, password string) (bool, error) {
	return s.checker.Check(ctx, password)
}

// Audit checks the passwords of the user's entries, or only those in ids when
// ids is non-empty. A failed check is reported in its result and does not
// affect the others. Results follow snapshot order.
func (s *AuditService) Audit(ctx context.Context, userLogin string, ids []string) ([]AuditResult, error) {
	var (
		entries []models.VaultEntry
		err     error
	)
	if len(ids) > 0 {
		entries, err = s.repo.SnapshotByIDs(ctx, userLogin, ids)
	} else {
		entries, err = s.repo.Snapshot(ctx, userLogin)
	}
	if err != nil {
		return nil, fmt.Errorf("vault snapshot: %w", err)
	}

	results := make([]AuditResult, len(entries))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, e := range entries {
		results[i] = AuditResult{ID: e.ID, Name: e.Name}
		if e.Password == "" {
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err().Error()
			continue
		}

		wg.Add(1)
		go func(i int, password string) {
			defer wg.Done()
			defer func() { <-sem }()

			breached, err := s.checker.Check(ctx, password)
			if err != nil {
				results[i].Err = err.Error()
				return
			}
			results[i].Breached = breached
		}(i, e.Password)
	}
	wg.Wait()

	breached, failed := 0, 0
	for _, r := range results {
		if r.Breached {
			breached++
		}
		if r.Err != "" {
			failed++
		}
	}
	s.log.Info("vault audit finished",
		zap.String("user", userLogin),
		zap.Int("entries", len(results)),
		zap.Int("breached", breached),
		zap.Int("failed", failed),
	)
	return results, nil
}
