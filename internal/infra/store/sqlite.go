package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // SQLite driver
)

const currentSchemaVersion = 1

// SQLite persists snapshots in a single sqlite table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	// Writes are serialized by sqlite anyway; one connection keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to init schema")
	}

	return &SQLite{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	return err
}

func (s *SQLite) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read %q", key)
	}
	return value, true, nil
}

func (s *SQLite) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return errors.Wrapf(err, "failed to write %q", key)
	}
	return nil
}

func (s *SQLite) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "failed to delete %q", key)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)
