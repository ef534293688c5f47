// Package ledger runs operations as isolated transactions against a
// versioned world state split into organization partitions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/blossom/internal/repository"
)

// ErrMVCCConflict indicates the transaction read a key that changed before
// commit. Resubmitting the transaction is safe.
var ErrMVCCConflict = fmt.Errorf("mvcc read conflict: %w", repository.ErrConflict)

// IsRetryable reports whether err is a stale-read rejection.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrMVCCConflict) || errors.Is(err, repository.ErrConflict)
}

const implicitPrefix = "_implicit_org_"

// OrgPartition names the private partition of an organization.
func OrgPartition(msp string) string {
	return implicitPrefix + msp
}

// Identity is the organizational identity of a transaction submitter.
type Identity struct {
	MSPID   string `json:"msp_id"`
	Subject string `json:"subject,omitempty"`
}

// Stub is the transaction context handed to every operation.
type Stub interface {
	TxID() string
	TxTimestamp() time.Time
	Caller() Identity
	AdminMSP() string

	// GetPrivateData returns nil when the key is absent.
	GetPrivateData(ctx context.Context, partition, key string) ([]byte, error)
	// GetPrivateDataHash returns the SHA-256 of the stored bytes, or nil when absent.
	GetPrivateDataHash(ctx context.Context, partition, key string) ([]byte, error)
	// GetPrivateDataByRange scans start <= key < end in ascending key order.
	GetPrivateDataByRange(ctx context.Context, partition, start, end string) (*RangeIterator, error)
	GetHistoryForKey(ctx context.Context, partition, key string) ([]repository.KeyModification, error)

	PutPrivateData(partition, key string, value []byte) error
	DelPrivateData(partition, key string) error

	// SetEvent attaches the transaction's event. A later call replaces an earlier one.
	SetEvent(name string, payload []byte) error
}

// AdminPartition is the partition holding the authoritative records.
func AdminPartition(stub Stub) string {
	return OrgPartition(stub.AdminMSP())
}

// CallerIsAdmin reports whether the submitter belongs to the administrator.
func CallerIsAdmin(stub Stub) bool {
	return stub.Caller().MSPID == stub.AdminMSP()
}

// RangeEnd is the exclusive upper bound covering every key under prefix.
func RangeEnd(prefix string) string {
	return prefix + "~"
}

// RangeIterator walks a range scan. It cannot be rewound.
type RangeIterator struct {
	kvs    []repository.KV
	pos    int
	closed bool
}

func (it *RangeIterator) HasNext() bool {
	return !it.closed && it.pos < len(it.kvs)
}

// Next returns the next entry.
func (it *RangeIterator) Next() (repository.KV, error) {
	if !it.HasNext() {
		return repository.KV{}, errors.New("range iterator exhausted")
	}
	kv := it.kvs[it.pos]
	it.pos++
	return kv, nil
}

func (it *RangeIterator) Close() error {
	it.closed = true
	it.kvs = nil
	return nil
}
