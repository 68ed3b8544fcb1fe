// Package sqlstore implements the repository interfaces on database/sql.
//
// Two dialects are supported:
//   - "sqlite": modernc.org/sqlite, pure Go, file-backed or ":memory:"
//   - "postgres": github.com/lib/pq, for a networked deployment
//
// Queries are written once with "?" placeholders and rebound to "$n" for
// Postgres. The schema keeps to types both engines accept; only the
// timestamp column type differs.
//
// The uniqueness invariants of the directory live in the schema (UNIQUE
// indexes), so a lost check-then-insert race still fails with a conflict.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in the parent package.
type DB struct {
	conn    *sql.DB
	dialect string
}

// Open connects to the SQLite database at dsn and runs migrations.
// Examples: "data/opencollab.db", ":memory:".
func Open(dsn string) (*DB, error) {
	return New(DialectSQLite, dsn)
}

// New opens a connection pool for the given dialect, verifies it with a
// ping and brings the schema up to date.
func New(dialect, dsn string) (*DB, error) {
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
	case DialectPostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening database: %w", err)
	}

	if dialect == DialectSQLite {
		// One connection: ":memory:" databases are per-connection, and SQLite
		// serializes writers anyway.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging database: %w", err)
	}

	db := &DB{conn: conn, dialect: dialect}

	if dialect == DialectSQLite {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlstore: setting WAL mode: %w", err)
		}
		// Off by default in SQLite.
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlstore: enabling foreign keys: %w", err)
		}
	}

	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate creates the three relations if they do not exist. It is
// idempotent and safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	ts := "DATETIME"
	if db.dialect == DialectPostgres {
		ts = "TIMESTAMPTZ"
	}

	stmts := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id             TEXT PRIMARY KEY,
				github_id      BIGINT UNIQUE,
				username       TEXT NOT NULL UNIQUE,
				email          TEXT NOT NULL DEFAULT '',
				avatar_url     TEXT NOT NULL DEFAULT '',
				password_hash  TEXT NOT NULL DEFAULT '',
				bio            TEXT NOT NULL DEFAULT '',
				skills         TEXT NOT NULL DEFAULT '',
				linkedin       TEXT NOT NULL DEFAULT '',
				full_name      TEXT NOT NULL DEFAULT '',
				department     TEXT NOT NULL DEFAULT '',
				year           TEXT NOT NULL DEFAULT '',
				discord_handle TEXT NOT NULL DEFAULT '',
				created_at     ` + ts + ` NOT NULL,
				updated_at     ` + ts + ` NOT NULL
			)`},
		{"projects", `
			CREATE TABLE IF NOT EXISTS projects (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				repo_url    TEXT NOT NULL UNIQUE,
				language    TEXT NOT NULL DEFAULT '',
				stars       INTEGER NOT NULL DEFAULT 0,
				owner_id    TEXT NOT NULL REFERENCES users(id),
				created_at  ` + ts + ` NOT NULL
			)`},
		{"projects owner index", `CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id)`},
		{"collab_requests", `
			CREATE TABLE IF NOT EXISTS collab_requests (
				id         TEXT PRIMARY KEY,
				sender_id  TEXT NOT NULL REFERENCES users(id),
				project_id TEXT NOT NULL REFERENCES projects(id),
				status     TEXT NOT NULL DEFAULT 'pending'
				           CHECK (status IN ('pending', 'accepted', 'rejected')),
				created_at ` + ts + ` NOT NULL,
				updated_at ` + ts + ` NOT NULL,
				UNIQUE (sender_id, project_id)
			)`},
		{"collab_requests project index", `CREATE INDEX IF NOT EXISTS idx_collab_requests_project_id ON collab_requests(project_id)`},
	}

	for _, st := range stmts {
		if _, err := db.conn.ExecContext(ctx, st.sql); err != nil {
			return fmt.Errorf("creating %s: %w", st.name, err)
		}
	}
	return nil
}

// q rebinds "?" placeholders for the active dialect.
func (db *DB) q(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint in either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}

// likePattern builds a case-insensitive LIKE pattern matching s anywhere,
// escaping LIKE metacharacters with a backslash.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

// nullInt64 stores zero as NULL so optional unique columns stay unique.
func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
