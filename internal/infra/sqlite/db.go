// Package sqlite persists the node's ledger state: full state snapshots
// committed after every applied call, plus the append-only call journal and
// the settlement book.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle for the node's data directory.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the node database under dir and applies
// all schema migrations.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "voltgrid.db")
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Single-writer discipline: the chain host serializes calls, so one
	// connection is all we ever need.
	handle.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := handle.Exec(pragma); err != nil {
			handle.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}

	db := &DB{db: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Migrations returns the schema migration statements. Each string is a
// single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Host state (single row)
		`CREATE TABLE IF NOT EXISTS chain_state (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			height     INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Token ledger meta (single row)
		`CREATE TABLE IF NOT EXISTS token_state (
			id           INTEGER PRIMARY KEY CHECK (id = 1),
			owner        TEXT NOT NULL,
			initialized  INTEGER NOT NULL DEFAULT 0,
			total_supply TEXT NOT NULL DEFAULT '0'
		)`,

		// Token balances, amounts as decimal strings (256-bit range)
		`CREATE TABLE IF NOT EXISTS balances (
			principal TEXT PRIMARY KEY,
			amount    TEXT NOT NULL
		)`,

		// Allowance rows; a row may legitimately hold amount '0'
		`CREATE TABLE IF NOT EXISTS allowances (
			owner   TEXT NOT NULL,
			spender TEXT NOT NULL,
			amount  TEXT NOT NULL,
			PRIMARY KEY (owner, spender)
		)`,

		// Station registry meta (single row)
		`CREATE TABLE IF NOT EXISTS registry_state (
			id               INTEGER PRIMARY KEY CHECK (id = 1),
			admin            TEXT NOT NULL,
			registration_fee TEXT NOT NULL,
			next_id          INTEGER NOT NULL DEFAULT 0
		)`,

		// Stations. Owner and location uniqueness live in the domain
		// indexes, not the schema: an ownership transfer may leave one
		// owner holding two stations, and that state must still persist.
		`CREATE TABLE IF NOT EXISTS stations (
			id            INTEGER PRIMARY KEY,
			name          TEXT NOT NULL,
			owner         TEXT NOT NULL,
			location      TEXT NOT NULL,
			power_kw      INTEGER NOT NULL,
			price_per_kwh INTEGER NOT NULL,
			active        INTEGER NOT NULL DEFAULT 1,
			registered_at INTEGER NOT NULL
		)`,

		// Rewards distributor meta (single row)
		`CREATE TABLE IF NOT EXISTS distributor_state (
			id               INTEGER PRIMARY KEY CHECK (id = 1),
			oracle           TEXT NOT NULL DEFAULT '',
			token_contract   TEXT NOT NULL DEFAULT '',
			station_registry TEXT NOT NULL DEFAULT '',
			user_registry    TEXT NOT NULL DEFAULT '',
			nonce            INTEGER NOT NULL DEFAULT 0,
			total_rewards    INTEGER NOT NULL DEFAULT 0
		)`,

		// Charging sessions
		`CREATE TABLE IF NOT EXISTS sessions (
			id        INTEGER PRIMARY KEY,
			user      TEXT NOT NULL,
			station   TEXT NOT NULL,
			kwh       INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			off_peak  INTEGER NOT NULL,
			claimed   INTEGER NOT NULL DEFAULT 0,
			proof     BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user, claimed)`,

		// Per-user daily reward buckets
		`CREATE TABLE IF NOT EXISTS daily_rewards (
			user   TEXT NOT NULL,
			day    INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			PRIMARY KEY (user, day)
		)`,

		// Append-only call journal
		`CREATE TABLE IF NOT EXISTS call_journal (
			id          TEXT PRIMARY KEY,
			op          TEXT NOT NULL,
			caller      TEXT NOT NULL,
			height      INTEGER NOT NULL,
			executed_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_op ON call_journal(op)`,

		// Settlement book: registration-fee value transfers
		`CREATE TABLE IF NOT EXISTS settlements (
			id          TEXT PRIMARY KEY,
			amount      TEXT NOT NULL,
			from_p      TEXT NOT NULL,
			to_p        TEXT NOT NULL,
			height      INTEGER NOT NULL,
			recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}
