package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS namespaces (
	name    TEXT PRIMARY KEY,
	version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	checksum  TEXT NOT NULL,
	artifact  BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// Store persists any number of cache namespaces to a single SQLite file.
type Store struct {
	conn *sql.DB
	path string
}

type row struct {
	Key      string
	Checksum string
	Artifact []byte
}

// OpenStore opens (or creates) the cache file at path. A file that cannot be
// read as a cache is removed and recreated empty.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}

	s, err := openStore(path)
	if err == nil {
		return s, nil
	}

	logger.Debug("cache: unreadable cache file, rebuilding",
		slog.String("path", path),
		slog.String("error", err.Error()))
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return nil, fmt.Errorf("cache: remove corrupt file: %w", rmErr)
	}
	return openStore(path)
}

func openStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Path returns the location of the cache file.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// version returns the stored format version of a namespace.
func (s *Store) version(namespace string) (string, bool, error) {
	var v string
	err := s.conn.QueryRow(`SELECT version FROM namespaces WHERE name = ?`, namespace).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: read version: %w", err)
	}
	return v, true, nil
}

func (s *Store) entries(namespace string) ([]row, error) {
	rows, err := s.conn.Query(`SELECT key, checksum, artifact FROM entries WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("cache: read entries: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.Key, &r.Checksum, &r.Artifact); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// replace swaps the whole content of a namespace in one transaction.
func (s *Store) replace(namespace, version string, rows []row) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM entries WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("cache: clear namespace: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO namespaces (name, version) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET version = excluded.version
	`, namespace, version); err != nil {
		return fmt.Errorf("cache: write version: %w", err)
	}

	if len(rows) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO entries (namespace, key, checksum, artifact) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("cache: prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.Exec(namespace, r.Key, r.Checksum, r.Artifact); err != nil {
				return fmt.Errorf("cache: insert %s: %w", r.Key, err)
			}
		}
	}

	return tx.Commit()
}

// drop forgets a namespace entirely.
func (s *Store) drop(namespace string) error {
	if _, err := s.conn.Exec(`DELETE FROM entries WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("cache: drop entries: %w", err)
	}
	if _, err := s.conn.Exec(`DELETE FROM namespaces WHERE name = ?`, namespace); err != nil {
		return fmt.Errorf("cache: drop namespace: %w", err)
	}
	return nil
}
