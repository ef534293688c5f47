package ledger

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/repository"
)

// Event is the single event a transaction may emit.
type Event struct {
	TxID      string    `json:"tx_id"`
	Name      string    `json:"name"`
	Payload   []byte    `json:"payload,omitempty"`
	Caller    string    `json:"caller"`
	Timestamp time.Time `json:"timestamp"`
}

type pendingWrite struct {
	value  []byte
	delete bool
}

type writeKey struct {
	partition string
	key       string
}

// tx tracks what a transaction read and wants to write.
type tx struct {
	id        string
	timestamp time.Time
	caller    Identity
	adminMSP  string
	state     repository.WorldState

	reads      map[writeKey]uint64
	readOrder  []writeKey
	ranges     []repository.RangeRead
	writes     map[writeKey]pendingWrite
	writeOrder []writeKey
	event      *Event
}

func newTx(state repository.WorldState, id string, ts time.Time, caller Identity, adminMSP string) *tx {
	return &tx{
		id:        id,
		timestamp: ts.UTC(),
		caller:    caller,
		adminMSP:  adminMSP,
		state:     state,
		reads:     make(map[writeKey]uint64),
		writes:    make(map[writeKey]pendingWrite),
	}
}

func (t *tx) TxID() string           { return t.id }
func (t *tx) TxTimestamp() time.Time { return t.timestamp }
func (t *tx) Caller() Identity       { return t.caller }
func (t *tx) AdminMSP() string       { return t.adminMSP }

// checkAccess enforces partition visibility for values. Hashes are public.
func (t *tx) checkAccess(partition string) error {
	if partition == OrgPartition(t.adminMSP) {
		return nil
	}
	if t.caller.MSPID == t.adminMSP || partition == OrgPartition(t.caller.MSPID) {
		return nil
	}
	return errs.Unauthorized("%s may not access partition %s", t.caller.MSPID, partition)
}

func (t *tx) read(ctx context.Context, partition, key string) ([]byte, error) {
	wk := writeKey{partition, key}
	if w, ok := t.writes[wk]; ok {
		if w.delete {
			return nil, nil
		}
		return slices.Clone(w.value), nil
	}

	vv, err := t.state.Get(ctx, partition, key)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("reading %s/%s: %w", partition, key, err)
	}
	if _, seen := t.reads[wk]; !seen {
		t.readOrder = append(t.readOrder, wk)
	}
	t.reads[wk] = vv.Version
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return vv.Value, nil
}

func (t *tx) GetPrivateData(ctx context.Context, partition, key string) ([]byte, error) {
	if err := t.checkAccess(partition); err != nil {
		return nil, err
	}
	return t.read(ctx, partition, key)
}

func (t *tx) GetPrivateDataHash(ctx context.Context, partition, key string) ([]byte, error) {
	value, err := t.read(ctx, partition, key)
	if err != nil || value == nil {
		return nil, err
	}
	sum := sha256.Sum256(value)
	return sum[:], nil
}

func (t *tx) GetPrivateDataByRange(ctx context.Context, partition, start, end string) (*RangeIterator, error) {
	if err := t.checkAccess(partition); err != nil {
		return nil, err
	}
	committed, err := t.state.GetRange(ctx, partition, start, end)
	if err != nil {
		return nil, fmt.Errorf("scanning %s [%s, %s): %w", partition, start, end, err)
	}

	rr := repository.RangeRead{Partition: partition, Start: start, End: end}
	merged := make(map[string]repository.KV, len(committed))
	for _, kv := range committed {
		rr.Results = append(rr.Results, repository.KeyVersion{Partition: partition, Key: kv.Key, Version: kv.Version})
		merged[kv.Key] = kv
	}
	t.ranges = append(t.ranges, rr)

	for _, wk := range t.writeOrder {
		if wk.partition != partition || wk.key < start || wk.key >= end {
			continue
		}
		w := t.writes[wk]
		if w.delete {
			delete(merged, wk.key)
			continue
		}
		merged[wk.key] = repository.KV{Key: wk.key, Value: slices.Clone(w.value)}
	}

	kvs := make([]repository.KV, 0, len(merged))
	for _, kv := range merged {
		kvs = append(kvs, kv)
	}
	slices.SortFunc(kvs, func(a, b repository.KV) int { return strings.Compare(a.Key, b.Key) })
	return &RangeIterator{kvs: kvs}, nil
}

func (t *tx) GetHistoryForKey(ctx context.Context, partition, key string) ([]repository.KeyModification, error) {
	if err := t.checkAccess(partition); err != nil {
		return nil, err
	}
	return t.state.History(ctx, partition, key)
}

func (t *tx) PutPrivateData(partition, key string, value []byte) error {
	if key == "" {
		return errs.InvalidArgument("key must not be empty")
	}
	if value == nil {
		return errs.InvalidArgument("value for %s must not be nil", key)
	}
	if err := t.checkAccess(partition); err != nil {
		return err
	}
	t.stage(writeKey{partition, key}, pendingWrite{value: slices.Clone(value)})
	return nil
}

func (t *tx) DelPrivateData(partition, key string) error {
	if err := t.checkAccess(partition); err != nil {
		return err
	}
	t.stage(writeKey{partition, key}, pendingWrite{delete: true})
	return nil
}

func (t *tx) stage(wk writeKey, w pendingWrite) {
	if _, ok := t.writes[wk]; !ok {
		t.writeOrder = append(t.writeOrder, wk)
	}
	t.writes[wk] = w
}

func (t *tx) SetEvent(name string, payload []byte) error {
	if name == "" {
		return errs.InvalidArgument("event name must not be empty")
	}
	t.event = &Event{
		TxID:      t.id,
		Name:      name,
		Payload:   slices.Clone(payload),
		Caller:    t.caller.MSPID,
		Timestamp: t.timestamp,
	}
	return nil
}

func (t *tx) batch() repository.CommitBatch {
	b := repository.CommitBatch{
		TxID:      t.id,
		Timestamp: t.timestamp,
		Ranges:    t.ranges,
	}
	for _, wk := range t.readOrder {
		b.Reads = append(b.Reads, repository.KeyVersion{Partition: wk.partition, Key: wk.key, Version: t.reads[wk]})
	}
	for _, wk := range t.writeOrder {
		w := t.writes[wk]
		b.Writes = append(b.Writes, repository.Write{Partition: wk.partition, Key: wk.key, Value: w.value, Delete: w.delete})
	}
	return b
}
