// Package repository provides read-only access to the vault snapshot stored
// in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/keeperimport/internal/models"
)

const selectEntries = `
		SELECT id, name, url, username, password, note, version FROM vault_entries
		WHERE user_login = $1 AND deleted = false`

// PostgresVaultRepository reads vault entries. It never writes.
type PostgresVaultRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresVaultRepository creates a new PostgresVaultRepository using the
// provided *sql.DB. db must be a valid connection to a PostgreSQL instance.
func NewPostgresVaultRepository(db *sql.DB) *PostgresVaultRepository {
	return &PostgresVaultRepository{DB: db}
}

// Snapshot returns every live entry of the user, ordered by id so that
// reconciliation output is reproducible.
//
//	ctx:       context for cancellation and deadlines
//	userLogin: identifier of the user
func (r *PostgresVaultRepository) Snapshot(ctx context.Context, userLogin string) ([]models.VaultEntry, error) {
	rows, err := r.DB.QueryContext(ctx, selectEntries+` ORDER BY id`, userLogin)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: %w", err)
	}
	return scanEntries(rows)
}

// SnapshotByIDs returns the live entries of the user whose id is in ids.
//
//	ctx:       context for cancellation and deadlines
//	userLogin: identifier of the user
//	ids:       entry ids to fetch
func (r *PostgresVaultRepository) SnapshotByIDs(ctx context.Context, userLogin string, ids []string) ([]models.VaultEntry, error) {
	rows, err := r.DB.QueryContext(ctx, selectEntries+` AND id = ANY($2) ORDER BY id`, userLogin, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("SnapshotByIDs: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]models.VaultEntry, error) {
	defer rows.Close()

	entries := []models.VaultEntry{}
	for rows.Next() {
		var e models.VaultEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.URL, &e.Username, &e.Password, &e.Note, &e.Version); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}
