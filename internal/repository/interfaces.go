package repository

import (
	"context"
	"time"
)

// VersionedValue is a committed value and the version it was committed at.
type VersionedValue struct {
	Value   []byte
	Version uint64
}

// KV is one entry of a range scan.
type KV struct {
	Key     string
	Value   []byte
	Version uint64
}

// KeyModification is one committed change to a key.
type KeyModification struct {
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     []byte    `json:"value,omitempty"`
	IsDelete  bool      `json:"is_delete"`
}

// KeyVersion pins the version a transaction observed. Version 0 means absent.
type KeyVersion struct {
	Partition string
	Key       string
	Version   uint64
}

// RangeRead records a scan of [Start, End) and the keys it returned.
type RangeRead struct {
	Partition string
	Start     string
	End       string
	Results   []KeyVersion
}

// Write is a pending put or delete.
type Write struct {
	Partition string
	Key       string
	Value     []byte
	Delete    bool
}

// CommitBatch is everything a transaction read and wants to write.
type CommitBatch struct {
	TxID      string
	Timestamp time.Time
	Reads     []KeyVersion
	Ranges    []RangeRead
	Writes    []Write
}

// WorldState is the versioned key/value store a ledger commits into.
type WorldState interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, partition, key string) (VersionedValue, error)
	// GetRange returns entries with start <= key < end in ascending key order.
	GetRange(ctx context.Context, partition, start, end string) ([]KV, error)
	// History returns committed modifications of a key, oldest first.
	History(ctx context.Context, partition, key string) ([]KeyModification, error)
	// Commit validates every read in the batch against the latest committed
	// versions and applies the writes atomically. A stale read returns ErrConflict.
	Commit(ctx context.Context, batch CommitBatch) error
}
