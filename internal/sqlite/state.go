package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rpggio/blossom/internal/repository"
)

// StateRepository implements repository.WorldState for SQLite.
type StateRepository struct {
	db *DB
}

// NewStateRepository creates a new StateRepository
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the committed value of a key.
func (r *StateRepository) Get(ctx context.Context, partition, key string) (repository.VersionedValue, error) {
	var vv repository.VersionedValue
	err := r.db.QueryRowContext(ctx,
		`SELECT value, version FROM world_state WHERE partition = ? AND key = ?`,
		partition, key,
	).Scan(&vv.Value, &vv.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.VersionedValue{}, repository.ErrNotFound
	}
	if err != nil {
		return repository.VersionedValue{}, fmt.Errorf("failed to get state: %w", err)
	}
	return vv, nil
}

// GetRange returns committed entries in [start, end) ordered by key.
func (r *StateRepository) GetRange(ctx context.Context, partition, start, end string) ([]repository.KV, error) {
	return scanRange(ctx, r.db, partition, start, end, true)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanRange(ctx context.Context, q queryer, partition, start, end string, withValues bool) ([]repository.KV, error) {
	query := `SELECT key, version FROM world_state WHERE partition = ? AND key >= ? AND key < ? ORDER BY key`
	if withValues {
		query = `SELECT key, version, value FROM world_state WHERE partition = ? AND key >= ? AND key < ? ORDER BY key`
	}
	rows, err := q.QueryContext(ctx, query, partition, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to scan state: %w", err)
	}
	defer rows.Close()

	var out []repository.KV
	for rows.Next() {
		var kv repository.KV
		dest := []any{&kv.Key, &kv.Version}
		if withValues {
			dest = append(dest, &kv.Value)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		out = append(out, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state rows: %w", err)
	}
	return out, nil
}

// History returns the committed modifications of a key, oldest first.
func (r *StateRepository) History(ctx context.Context, partition, key string) ([]repository.KeyModification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tx_id, committed_at, value, is_delete
		FROM state_history
		WHERE partition = ? AND key = ?
		ORDER BY id
	`, partition, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []repository.KeyModification
	for rows.Next() {
		var mod repository.KeyModification
		if err := rows.Scan(&mod.TxID, &mod.Timestamp, &mod.Value, &mod.IsDelete); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return out, nil
}

// Commit validates the read set and applies the writes in one SQL transaction.
func (r *StateRepository) Commit(ctx context.Context, batch repository.CommitBatch) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = validateReads(ctx, sqlTx, batch); err != nil {
		return err
	}

	height, err := nextHeight(ctx, sqlTx)
	if err != nil {
		return err
	}

	for _, w := range batch.Writes {
		if w.Delete {
			_, err = sqlTx.ExecContext(ctx, `DELETE FROM world_state WHERE partition = ? AND key = ?`, w.Partition, w.Key)
		} else {
			_, err = sqlTx.ExecContext(ctx, `
				INSERT INTO world_state (partition, key, value, version) VALUES (?, ?, ?, ?)
				ON CONFLICT (partition, key) DO UPDATE SET value = excluded.value, version = excluded.version
			`, w.Partition, w.Key, w.Value, height)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s/%s: %w", w.Partition, w.Key, err)
		}

		var value any
		if !w.Delete {
			value = w.Value
		}
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO state_history (partition, key, tx_id, value, is_delete, committed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, w.Partition, w.Key, batch.TxID, value, w.Delete, batch.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to record history for %s/%s: %w", w.Partition, w.Key, err)
		}
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func validateReads(ctx context.Context, sqlTx *sql.Tx, batch repository.CommitBatch) error {
	for _, read := range batch.Reads {
		var version uint64
		err := sqlTx.QueryRowContext(ctx,
			`SELECT version FROM world_state WHERE partition = ? AND key = ?`,
			read.Partition, read.Key,
		).Scan(&version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to validate read: %w", err)
		}
		if version != read.Version {
			return repository.ErrConflict
		}
	}

	for _, rr := range batch.Ranges {
		current, err := scanRange(ctx, sqlTx, rr.Partition, rr.Start, rr.End, false)
		if err != nil {
			return err
		}
		if len(current) != len(rr.Results) {
			return repository.ErrConflict
		}
		for i, kv := range current {
			if kv.Key != rr.Results[i].Key || kv.Version != rr.Results[i].Version {
				return repository.ErrConflict
			}
		}
	}
	return nil
}

func nextHeight(ctx context.Context, sqlTx *sql.Tx) (uint64, error) {
	var raw string
	err := sqlTx.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE name = 'height'`).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read height: %w", err)
	}
	var height uint64
	if raw != "" {
		height, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse height: %w", err)
		}
	}
	height++
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO ledger_meta (name, value) VALUES ('height', ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value
	`, strconv.FormatUint(height, 10))
	if err != nil {
		return 0, fmt.Errorf("failed to store height: %w", err)
	}
	return height, nil
}
