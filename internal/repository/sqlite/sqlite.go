// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage. For a
// personal inventory tracker that is exactly the right amount of
// infrastructure: single-server deployment, one writer per user, and
// ":memory:" databases for tests.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Blank import: the driver registers itself with database/sql under the
	// name "sqlite" in its init(). After this, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

// DB owns the sql.DB connection pool and hands out one repository per
// resource, all sharing the pool. The server passes each service the
// sub-repository it needs under the matching interface.
type DB struct {
	conn *sql.DB

	Collections *CollectionRepo
	Cards       *CardRepo
	Backups     *BackupRepo
	SeedMarkers *SeedMarkerRepo
	Users       *UserRepo
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/cardbinder.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces an immediate connection so a bad path or permissions issue
	// surfaces here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in flight — important
	// for a web server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (backwards compatibility).
	// We rely on them: cards reference collections, collections reference users.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{
		conn:        conn,
		Collections: &CollectionRepo{conn: conn},
		Cards:       &CardRepo{conn: conn},
		Backups:     &BackupRepo{conn: conn},
		SeedMarkers: &SeedMarkerRepo{conn: conn},
		Users:       &UserRepo{conn: conn},
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations. Every statement is idempotent
// (CREATE ... IF NOT EXISTS), so running migrate on an existing database
// is safe.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			github_id     INTEGER UNIQUE,
			login         TEXT NOT NULL,
			email         TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		-- Email is the login key for password accounts only; OAuth accounts
		-- may share the empty string, so uniqueness is partial.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email != '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color       TEXT NOT NULL DEFAULT '',
			icon        TEXT NOT NULL DEFAULT '',
			is_default  INTEGER NOT NULL DEFAULT 0,
			visibility  TEXT NOT NULL DEFAULT 'private',
			tags        TEXT NOT NULL DEFAULT '[]',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, name)
		);
		-- At most one default collection per user, enforced by the store
		-- itself. The service keeps the invariant; this index makes a bug
		-- fail loudly instead of corrupting state.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_collections_default
			ON collections(user_id) WHERE is_default = 1;
		CREATE INDEX IF NOT EXISTS idx_collections_user_id ON collections(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating collections table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cards (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL REFERENCES users(id),
			collection_id   TEXT NOT NULL REFERENCES collections(id),
			player          TEXT NOT NULL,
			team            TEXT NOT NULL DEFAULT '',
			year            INTEGER NOT NULL DEFAULT 0,
			brand           TEXT NOT NULL DEFAULT '',
			category        TEXT NOT NULL DEFAULT '',
			card_number     TEXT NOT NULL DEFAULT '',
			parallel        TEXT NOT NULL DEFAULT '',
			condition       TEXT NOT NULL DEFAULT '',
			grading_company TEXT NOT NULL DEFAULT '',
			purchase_price  REAL NOT NULL DEFAULT 0,
			purchase_date   TEXT NOT NULL DEFAULT '',
			current_value   REAL NOT NULL DEFAULT 0,
			sell_price      REAL NOT NULL DEFAULT 0,
			sell_date       TEXT NOT NULL DEFAULT '',
			notes           TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_cards_user_id ON cards(user_id);
		CREATE INDEX IF NOT EXISTS idx_cards_collection_id ON cards(collection_id);
	`)
	if err != nil {
		return fmt.Errorf("creating cards table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS backups (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			type       TEXT NOT NULL,
			snapshot   TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_backups_user_id ON backups(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating backups table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS seed_markers (
			user_id     TEXT PRIMARY KEY REFERENCES users(id),
			version     INTEGER NOT NULL,
			imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating seed_markers table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on the
// given column spec (e.g. "collections.name"). The modernc driver exposes
// constraint failures only through the error text.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// isConstraintViolation reports whether err is any constraint failure
// (unique, foreign key, not null). These condemn a single row, unlike
// connection-level failures.
func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
