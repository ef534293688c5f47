package ledger

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rpggio/blossom/internal/repository"
)

type memEntry struct {
	value   []byte
	version uint64
}

// MemoryState is an in-process world state. Versions are commit heights, so a
// key deleted and re-created never repeats a version.
type MemoryState struct {
	mu      sync.RWMutex
	height  uint64
	data    map[string]map[string]memEntry
	history map[string]map[string][]repository.KeyModification
}

// NewMemoryState creates an empty world state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		data:    make(map[string]map[string]memEntry),
		history: make(map[string]map[string][]repository.KeyModification),
	}
}

func (m *MemoryState) Get(_ context.Context, partition, key string) (repository.VersionedValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[partition][key]
	if !ok {
		return repository.VersionedValue{}, repository.ErrNotFound
	}
	return repository.VersionedValue{Value: slices.Clone(entry.value), Version: entry.version}, nil
}

func (m *MemoryState) GetRange(_ context.Context, partition, start, end string) ([]repository.KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scan(partition, start, end), nil
}

func (m *MemoryState) scan(partition, start, end string) []repository.KV {
	var out []repository.KV
	for key, entry := range m.data[partition] {
		if key >= start && key < end {
			out = append(out, repository.KV{Key: key, Value: slices.Clone(entry.value), Version: entry.version})
		}
	}
	slices.SortFunc(out, func(a, b repository.KV) int { return strings.Compare(a.Key, b.Key) })
	return out
}

func (m *MemoryState) History(_ context.Context, partition, key string) ([]repository.KeyModification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.history[partition][key]), nil
}

func (m *MemoryState) Commit(_ context.Context, batch repository.CommitBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range batch.Reads {
		if m.data[r.Partition][r.Key].version != r.Version {
			return repository.ErrConflict
		}
	}
	for _, rr := range batch.Ranges {
		current := m.scan(rr.Partition, rr.Start, rr.End)
		if len(current) != len(rr.Results) {
			return repository.ErrConflict
		}
		for i, kv := range current {
			if kv.Key != rr.Results[i].Key || kv.Version != rr.Results[i].Version {
				return repository.ErrConflict
			}
		}
	}

	m.height++
	for _, w := range batch.Writes {
		part := m.data[w.Partition]
		if part == nil {
			part = make(map[string]memEntry)
			m.data[w.Partition] = part
		}
		mod := repository.KeyModification{TxID: batch.TxID, Timestamp: batch.Timestamp, IsDelete: w.Delete}
		if w.Delete {
			delete(part, w.Key)
		} else {
			part[w.Key] = memEntry{value: slices.Clone(w.Value), version: m.height}
			mod.Value = slices.Clone(w.Value)
		}
		hist := m.history[w.Partition]
		if hist == nil {
			hist = make(map[string][]repository.KeyModification)
			m.history[w.Partition] = hist
		}
		hist[w.Key] = append(hist[w.Key], mod)
	}
	return nil
}
