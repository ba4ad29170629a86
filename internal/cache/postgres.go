package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// DBPool is the slice of pgxpool.Pool the postgres store needs. Narrowing
// the dependency to this interface lets the tests substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore persists cache entries in PostgreSQL, one table per
// namespace. It suits deployments where several workers share a cache.
type PostgresStore struct {
	pool   DBPool
	logger *zap.Logger
}

// NewPostgresPool connects a pgx pool suitable for NewPostgresStore.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresStore verifies connectivity and creates the schema if it does
// not exist yet.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger.Named("cache.postgres")}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// pgTableFor resolves a namespace to its table. As with the sqlite backend
// the name is interpolated into SQL, so only this closed mapping may
// produce one. Tables carry a stagehand_ prefix since the database is
// often shared.
func pgTableFor(ns schemas.Namespace) (string, error) {
	table, err := tableFor(ns)
	if err != nil {
		return "", err
	}
	return "stagehand_" + table, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	for _, ns := range schemas.Namespaces() {
		table, err := pgTableFor(ns)
		if err != nil {
			return err
		}
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key        TEXT PRIMARY KEY,
				result     TEXT NOT NULL,
				session_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, table)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

// Load reads every entry in one namespace.
func (s *PostgresStore) Load(ctx context.Context, ns schemas.Namespace) (map[schemas.CacheKey]schemas.CacheEntry, error) {
	table, err := pgTableFor(ns)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT key, result, session_id FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ns, err)
	}
	defer rows.Close()

	entries := make(map[schemas.CacheKey]schemas.CacheEntry)
	for rows.Next() {
		var key, result, sessionID string
		if err := rows.Scan(&key, &result, &sessionID); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", ns, err)
		}
		entries[schemas.CacheKey(key)] = schemas.CacheEntry{Result: result, SessionID: sessionID}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", ns, err)
	}

	s.logger.Debug("namespace loaded", zap.String("namespace", string(ns)), zap.Int("entries", len(entries)))
	return entries, nil
}

// Write upserts one entry.
func (s *PostgresStore) Write(ctx context.Context, ns schemas.Namespace, key schemas.CacheKey, entry schemas.CacheEntry) error {
	table, err := pgTableFor(ns)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, result, session_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			result     = EXCLUDED.result,
			session_id = EXCLUDED.session_id,
			created_at = now()`, table)

	if _, err := s.pool.Exec(ctx, query, string(key), entry.Result, entry.SessionID); err != nil {
		return fmt.Errorf("upsert %s entry: %w", ns, err)
	}
	return nil
}

// Clear drops every entry in one namespace.
func (s *PostgresStore) Clear(ctx context.Context, ns schemas.Namespace) error {
	table, err := pgTableFor(ns)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("clear %s: %w", ns, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
