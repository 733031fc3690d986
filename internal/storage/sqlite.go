package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding sessions, their chat logs, uploaded
// documents, and the extraction jobs for those documents.
type Store struct {
	db *sql.DB
}

// pragmas apply to the single connection the store uses. SQLite allows one
// writer; session commits and the ingest worker share it.
var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
}

// Open opens dataDir/reqchat.db, creating it if needed, and brings its
// schema up to date. ":memory:" opens a private in-memory database.
func Open(dataDir string) (*Store, error) {
	dsn := dataDir
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "reqchat.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded migrations newer than the schema's
// user_version, each in its own transaction.
func (s *Store) migrate() error {
	current, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	// fs.Glob returns names in lexical order; file names carry a zero-padded
	// version prefix.
	for _, name := range names {
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if version <= current {
			continue
		}
		script, err := migrationsFS.ReadFile(name)
		if err != nil {
			return err
		}
		err = s.inTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(script)); err != nil {
				return err
			}
			// PRAGMA does not accept bound parameters.
			_, err := tx.Exec("PRAGMA user_version = " + strconv.Itoa(version))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(name), err)
		}
		current = version
	}
	return nil
}

// migrationVersion parses the numeric prefix of names like "002_uploads.sql".
func migrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(filepath.Base(name), "_")
	if !ok {
		return 0, fmt.Errorf("migration %q has no version prefix", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migration %q has an invalid version prefix", name)
	}
	return v, nil
}

// schemaVersion reports the last applied migration.
func (s *Store) schemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
