package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	_ "modernc.org/sqlite"
)

// RecordFormat is the version of the persisted record encoding written by
// this build. Stores stamped with an incompatible major version are refused.
const RecordFormat = "1.0.0"

const recordFormatConstraint = "^1.0.0"

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Commits validate and write under one connection; this also keeps
	// ":memory:" databases from splitting across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS world_state (
    partition TEXT NOT NULL,
    key TEXT NOT NULL,
    value BLOB NOT NULL,
    version INTEGER NOT NULL,
    PRIMARY KEY (partition, key)
);

CREATE TABLE IF NOT EXISTS state_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    partition TEXT NOT NULL,
    key TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    value BLOB,
    is_delete INTEGER NOT NULL DEFAULT 0,
    committed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_key ON state_history(partition, key, id);

CREATE TABLE IF NOT EXISTS ledger_meta (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tx_id TEXT NOT NULL,
    operation TEXT NOT NULL,
    caller TEXT NOT NULL,
    event TEXT,
    summary TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at);
`

// RunMigrations creates the schema if it does not exist.
func (db *DB) RunMigrations() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// EnsureRecordFormat stamps an empty store with RecordFormat and refuses a
// store written in an incompatible format.
func (db *DB) EnsureRecordFormat(ctx context.Context) error {
	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE name = 'record_format'`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.ExecContext(ctx, `INSERT INTO ledger_meta (name, value) VALUES ('record_format', ?)`, RecordFormat)
		if err != nil {
			return fmt.Errorf("stamping record format: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading record format: %w", err)
	}
	return checkRecordFormat(stored)
}

func checkRecordFormat(stored string) error {
	v, err := semver.NewVersion(stored)
	if err != nil {
		return fmt.Errorf("parsing stored record format %q: %w", stored, err)
	}
	c, err := semver.NewConstraint(recordFormatConstraint)
	if err != nil {
		return fmt.Errorf("parsing record format constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("store record format %s is incompatible with %s", v, RecordFormat)
	}
	return nil
}
