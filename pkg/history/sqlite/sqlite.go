// Package sqlite provides a file-backed history.Store on the pure-Go
// modernc.org/sqlite driver, for single-node deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/debug"
	"github.com/rhuss/tradelens/pkg/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS queries (
    id           TEXT PRIMARY KEY,
    tenant_id    TEXT NOT NULL DEFAULT '',
    query        TEXT NOT NULL,
    namespace    TEXT NOT NULL,
    record_type  TEXT NOT NULL,
    hit_count    INTEGER NOT NULL DEFAULT 0,
    summarized   INTEGER NOT NULL DEFAULT 0,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_tenant_created ON queries (tenant_id, created_at DESC, id DESC);
`

// Store is a SQLite-backed history.Store.
type Store struct {
	db *sql.DB
}

// Ensure Store implements history.Store at compile time.
var _ history.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the
// schema exists. The special path ":memory:" opens a private in-memory
// database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite history: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY and keeps :memory: databases
	// on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("history", "sqlite pragma failed", "pragma", pragma, "error", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save inserts rec under the context tenant.
func (s *Store) Save(ctx context.Context, rec *history.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queries (id, tenant_id, query, namespace, record_type, hit_count, summarized, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, history.GetTenant(ctx), rec.Query, string(rec.Namespace), string(rec.RecordType),
		rec.HitCount, rec.Summarized, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		if isConflict(err) {
			return history.ErrConflict
		}
		return fmt.Errorf("inserting query record: %w", err)
	}
	return nil
}

// isConflict reports whether err is a primary key or unique violation.
func isConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

const selectColumns = `id, tenant_id, query, namespace, record_type, hit_count, summarized, duration_ms, created_at`

// Get returns the record with id for the context tenant.
func (s *Store) Get(ctx context.Context, id string) (*history.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM queries WHERE id = ? AND tenant_id = ?`,
		id, history.GetTenant(ctx),
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, history.ErrNotFound
		}
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return rec, nil
}

// List returns the context tenant's records, newest first.
func (s *Store) List(ctx context.Context, opts history.ListOptions) ([]*history.Record, error) {
	opts = opts.Normalize()

	query := `SELECT ` + selectColumns + ` FROM queries WHERE tenant_id = ?`
	args := []any{history.GetTenant(ctx)}
	if opts.Namespace != "" {
		query += ` AND namespace = ?`
		args = append(args, string(opts.Namespace))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []*history.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return out, nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*history.Record, error) {
	var (
		rec        history.Record
		namespace  string
		recordType string
	)
	if err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.Query, &namespace, &recordType,
		&rec.HitCount, &rec.Summarized, &rec.DurationMS, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Namespace = api.Namespace(namespace)
	rec.RecordType = api.RecordType(recordType)
	return &rec, nil
}
