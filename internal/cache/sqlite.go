package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// SQLiteStore persists cache entries in a local SQLite database, one table
// per namespace. It is the default backend: a single file, no server, and
// WAL mode with full synchronous writes so an upsert is on disk before
// Write returns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path, creating parent
// directories and the schema as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(full)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS observations (
		key        TEXT PRIMARY KEY,
		result     TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS actions (
		key        TEXT PRIMARY KEY,
		result     TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// tableFor resolves a namespace to its table. Table names are interpolated
// into SQL, so this closed mapping is the only path that produces one.
func tableFor(ns schemas.Namespace) (string, error) {
	switch ns {
	case schemas.NamespaceObservations:
		return "observations", nil
	case schemas.NamespaceActions:
		return "actions", nil
	}
	return "", fmt.Errorf("unknown cache namespace %q", string(ns))
}

// Load reads every entry in one namespace.
func (s *SQLiteStore) Load(ctx context.Context, ns schemas.Namespace) (map[schemas.CacheKey]schemas.CacheEntry, error) {
	table, err := tableFor(ns)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT key, result, session_id FROM %s`, table))
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
	return entries, nil
}

// Write upserts one entry. The row is durable when this returns.
func (s *SQLiteStore) Write(ctx context.Context, ns schemas.Namespace, key schemas.CacheKey, entry schemas.CacheEntry) error {
	table, err := tableFor(ns)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, result, session_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			result     = excluded.result,
			session_id = excluded.session_id,
			created_at = excluded.created_at`, table)

	if _, err := s.db.ExecContext(ctx, query,
		string(key), entry.Result, entry.SessionID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upsert %s entry: %w", ns, err)
	}
	return nil
}

// Clear drops every entry in one namespace.
func (s *SQLiteStore) Clear(ctx context.Context, ns schemas.Namespace) error {
	table, err := tableFor(ns)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("clear %s: %w", ns, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
