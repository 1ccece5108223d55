// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// A blog with a handful of authors is a single-server app. SQLite keeps the whole
// database in one file next to the binary: nothing to install, and ":memory:" gives
// every test its own throwaway database.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite — no CGo, so `go build` and cross-compiling
// work without a C toolchain.
//
// WHY sqlx ON TOP OF database/sql?
// sqlx keeps the database/sql API (ExecContext, QueryRowContext, ...) and adds
// GetContext / SelectContext, which scan rows straight into structs using the
// `db:"..."` tags on model.User and model.Post. That removes the long
// Scan(&a, &b, &c, ...) lists that must be kept in sync with every SELECT.
//
// SCHEMA MIGRATIONS:
// The schema lives in migrations/*.sql, embedded into the binary and applied by
// goose when the database is opened. goose records what it ran in its own
// goose_db_version table, so reopening an existing file only applies new files.
package sqlite

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/companyblog/internal/apperror"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a sqlx connection pool and implements both
// repository.UserRepository and repository.PostRepository.
type DB struct {
	*sqlx.DB
}

// New opens (or creates) the database at dbPath and runs pending migrations.
//
// dbPath examples:
//   - "data/blog.db"  → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests)
//
// PRAGMAS IN THE DSN:
// foreign_keys and busy_timeout are per-connection settings in SQLite. Passing
// them as _pragma query parameters makes the driver apply them to EVERY
// connection the pool opens, not just the first one.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	inMemory := dbPath == ":memory:"
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	conn, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so every query sees the same tables.
	if inMemory {
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// migrate applies every migration in migrations/ that has not run yet.
func (db *DB) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	// goose works on the plain *sql.DB underneath sqlx.
	if err := goose.UpContext(ctx, db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// uniqueViolation translates a UNIQUE constraint failure on the users table
// into apperror.Conflict naming the offending column. Any other error is
// returned unchanged.
//
// SQLite reports the column only in the message text:
//
//	constraint failed: UNIQUE constraint failed: users.email (2067)
func uniqueViolation(err error) error {
	var sqlErr *sqlitedriver.Error
	if !errors.As(err, &sqlErr) || sqlErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}

	msg := sqlErr.Error()
	for _, field := range []string{"username", "email", "github_id"} {
		if strings.Contains(msg, "users."+field) {
			return apperror.Conflict("user", field)
		}
	}
	return err
}
