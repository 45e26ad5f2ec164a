// Package postgres provides a PostgreSQL implementation of history.Store
// using pgx/v5 connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/history"
)

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed history.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements history.Store at compile time.
var _ history.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if _, err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Save inserts rec under the context tenant.
func (s *Store) Save(ctx context.Context, rec *history.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queries (
			id, tenant_id, query, namespace, record_type,
			hit_count, summarized, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID, history.GetTenant(ctx), rec.Query, string(rec.Namespace), string(rec.RecordType),
		rec.HitCount, rec.Summarized, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return history.ErrConflict
		}
		return fmt.Errorf("inserting query record: %w", err)
	}
	return nil
}

const selectColumns = `id, tenant_id, query, namespace, record_type, hit_count, summarized, duration_ms, created_at`

// Get returns the record with id for the context tenant.
func (s *Store) Get(ctx context.Context, id string) (*history.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM queries WHERE id = $1 AND tenant_id = $2`,
		id, history.GetTenant(ctx),
	)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, history.ErrNotFound
		}
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return rec, nil
}

// List returns the context tenant's records, newest first.
func (s *Store) List(ctx context.Context, opts history.ListOptions) ([]*history.Record, error) {
	opts = opts.Normalize()

	query := `SELECT ` + selectColumns + ` FROM queries WHERE tenant_id = $1`
	args := []any{history.GetTenant(ctx)}
	if opts.Namespace != "" {
		args = append(args, string(opts.Namespace))
		query += fmt.Sprintf(" AND namespace = $%d", len(args))
	}
	args = append(args, opts.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, seq DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
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
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*history.Record, error) {
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

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
