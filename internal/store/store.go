package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a journal to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order against any journal whose user_version is lower.
// Append only; never edit a released step.
var migrations = []migration{
	{1, "unique call seq", `CREATE UNIQUE INDEX IF NOT EXISTS idx_calls_session_seq ON calls(session_id, seq)`},
	{2, "ext_call lookup", `CREATE INDEX IF NOT EXISTS idx_ext_calls_session ON ext_calls(session_id, seq)`},
}

// currentSchemaVersion is the user_version a fully migrated journal carries.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is the session journal. One connection, one writer.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at path, then applies the schema and any
// pending migrations. Opening an already current journal changes nothing.
//
// Connection settings travel in the DSN so the go-sqlite3 driver applies them
// to every connection it opens:
//   - journal_mode=WAL
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// A journal written by a newer build (user_version ahead of this one) is
// rejected rather than downgraded.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return path + "?" + q.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB. Tests use it to inspect or corrupt rows.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the file the journal lives in.
func (s *Store) Path() string {
	return s.path
}

// SchemaVersion reports the journal's user_version.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// applySchema creates missing tables, then runs pending migrations.
func applySchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := migrate(db, m); err != nil {
			return err
		}
	}
	return nil
}

// migrate runs one step and bumps user_version in the same transaction.
func migrate(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.stmt); err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("set user_version %d: %w", m.version, err)
	}
	return tx.Commit()
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
