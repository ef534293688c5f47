// Package redisstate keeps the ledger world state in Redis.
//
// Each key is a hash holding the value and its version; a sorted set per
// partition indexes keys for lexical range scans. Commits re-validate the
// read set under WATCH and apply writes in MULTI/EXEC.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/blossom/internal/repository"
)

const (
	fieldValue   = "v"
	fieldVersion = "ver"
)

// Store implements repository.WorldState on Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a store whose keys are namespaced by prefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "blossom"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) valueKey(partition, key string) string {
	return s.prefix + ":ws:" + partition + ":" + key
}

func (s *Store) indexKey(partition string) string {
	return s.prefix + ":idx:" + partition
}

func (s *Store) historyKey(partition, key string) string {
	return s.prefix + ":hist:" + partition + ":" + key
}

func (s *Store) heightKey() string {
	return s.prefix + ":height"
}

type hashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Store) load(ctx context.Context, c hashGetter, partition, key string) (repository.VersionedValue, bool, error) {
	fields, err := c.HGetAll(ctx, s.valueKey(partition, key)).Result()
	if err != nil {
		return repository.VersionedValue{}, false, fmt.Errorf("failed to get state: %w", err)
	}
	raw, ok := fields[fieldVersion]
	if !ok {
		return repository.VersionedValue{}, false, nil
	}
	version, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return repository.VersionedValue{}, false, fmt.Errorf("failed to parse version of %s: %w", key, err)
	}
	return repository.VersionedValue{Value: []byte(fields[fieldValue]), Version: version}, true, nil
}

// Get returns the committed value of a key.
func (s *Store) Get(ctx context.Context, partition, key string) (repository.VersionedValue, error) {
	vv, ok, err := s.load(ctx, s.client, partition, key)
	if err != nil {
		return repository.VersionedValue{}, err
	}
	if !ok {
		return repository.VersionedValue{}, repository.ErrNotFound
	}
	return vv, nil
}

type rangeReader interface {
	hashGetter
	ZRangeByLex(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
}

func (s *Store) scan(ctx context.Context, c rangeReader, partition, start, end string) ([]repository.KV, error) {
	keys, err := c.ZRangeByLex(ctx, s.indexKey(partition), &redis.ZRangeBy{
		Min: "[" + start,
		Max: "(" + end,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan index: %w", err)
	}
	out := make([]repository.KV, 0, len(keys))
	for _, key := range keys {
		vv, ok, err := s.load(ctx, c, partition, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, repository.KV{Key: key, Value: vv.Value, Version: vv.Version})
	}
	return out, nil
}

// GetRange returns committed entries in [start, end) ordered by key.
func (s *Store) GetRange(ctx context.Context, partition, start, end string) ([]repository.KV, error) {
	return s.scan(ctx, s.client, partition, start, end)
}

// History returns the committed modifications of a key, oldest first.
func (s *Store) History(ctx context.Context, partition, key string) ([]repository.KeyModification, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(partition, key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	out := make([]repository.KeyModification, 0, len(raw))
	for _, item := range raw {
		var mod repository.KeyModification
		if err := json.Unmarshal([]byte(item), &mod); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		out = append(out, mod)
	}
	return out, nil
}

// Commit validates the read set under WATCH and applies the writes atomically.
func (s *Store) Commit(ctx context.Context, batch repository.CommitBatch) error {
	watched := make([]string, 0, len(batch.Reads)+len(batch.Ranges))
	for _, r := range batch.Reads {
		watched = append(watched, s.valueKey(r.Partition, r.Key))
	}
	for _, rr := range batch.Ranges {
		watched = append(watched, s.indexKey(rr.Partition))
		for _, kv := range rr.Results {
			watched = append(watched, s.valueKey(rr.Partition, kv.Key))
		}
	}

	txf := func(tx *redis.Tx) error {
		if err := s.validate(ctx, tx, batch); err != nil {
			return err
		}

		height, err := s.client.Incr(ctx, s.heightKey()).Uint64()
		if err != nil {
			return fmt.Errorf("failed to advance height: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range batch.Writes {
				mod := repository.KeyModification{TxID: batch.TxID, Timestamp: batch.Timestamp, IsDelete: w.Delete}
				if w.Delete {
					pipe.Del(ctx, s.valueKey(w.Partition, w.Key))
					pipe.ZRem(ctx, s.indexKey(w.Partition), w.Key)
				} else {
					mod.Value = w.Value
					pipe.HSet(ctx, s.valueKey(w.Partition, w.Key), fieldValue, w.Value, fieldVersion, height)
					pipe.ZAdd(ctx, s.indexKey(w.Partition), redis.Z{Score: 0, Member: w.Key})
				}
				entry, err := json.Marshal(mod)
				if err != nil {
					return fmt.Errorf("failed to encode history entry: %w", err)
				}
				pipe.RPush(ctx, s.historyKey(w.Partition, w.Key), entry)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, watched...)
	if errors.Is(err, redis.TxFailedErr) {
		return repository.ErrConflict
	}
	return err
}

func (s *Store) validate(ctx context.Context, tx *redis.Tx, batch repository.CommitBatch) error {
	for _, r := range batch.Reads {
		vv, _, err := s.load(ctx, tx, r.Partition, r.Key)
		if err != nil {
			return err
		}
		if vv.Version != r.Version {
			return repository.ErrConflict
		}
	}
	for _, rr := range batch.Ranges {
		current, err := s.scan(ctx, tx, rr.Partition, rr.Start, rr.End)
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
