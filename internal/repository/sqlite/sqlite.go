// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain and ":memory:" databases make fast, isolated test fixtures.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool. Users and Contacts expose the two
// repositories over the same pool.
type DB struct {
	conn     *sql.DB
	users    *UserStore
	contacts *ContactStore
}

// Users returns the repository.UserRepository implementation.
func (db *DB) Users() *UserStore { return db.users }

// Contacts returns the repository.ContactRepository implementation.
func (db *DB) Contacts() *ContactStore { return db.contacts }

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/contacts.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// PRAGMAS:
// foreign_keys and busy_timeout are per-connection settings, so they are
// passed in the DSN and applied by the driver to every pooled connection.
// An in-memory database exists only inside the connection that created it,
// so the pool is capped at one connection in that case.
func New(dbPath string) (*DB, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("sqlite: registering functions: %w", err)
	}

	inMemory := dbPath == ":memory:"

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if inMemory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress. It is a
	// property of the database file, so running it once is enough.
	if !inMemory {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{
		conn:     conn,
		users:    &UserStore{conn: conn},
		contacts: &ContactStore{conn: conn},
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// birth_date is TEXT ("2006-01-02") so the driver hands it back verbatim;
// a DATE column would be converted to time.Time in the server's zone.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			avatar_url    TEXT NOT NULL DEFAULT '',
			refresh_token TEXT,
			reset_token   TEXT,
			is_activated  INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Deleting a user removes their contacts.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS contacts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			first_name TEXT NOT NULL,
			last_name  TEXT NOT NULL,
			email      TEXT NOT NULL,
			phone      TEXT NOT NULL,
			birth_date TEXT NOT NULL,
			notes      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_user_id ON contacts(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating contacts table: %w", err)
	}

	return nil
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions adds go_lower, a Unicode-aware lower(). SQLite's own
// lower() folds ASCII only, so "Олена" would never match "оле".
// Functions are registered driver-wide and a second registration fails,
// hence the sync.Once.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = msqlite.RegisterDeterministicScalarFunction("go_lower", 1,
			func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case nil:
					return nil, nil
				case string:
					return strings.ToLower(v), nil
				case []byte:
					return strings.ToLower(string(v)), nil
				default:
					return v, nil
				}
			})
	})
	return registerErr
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
