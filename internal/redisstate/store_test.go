package redisstate_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/rpggio/blossom/internal/redisstate"
	"github.com/rpggio/blossom/internal/repository"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *redisstate.Store {
	t.Helper()
	addr := os.Getenv("BLOSSOM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BLOSSOM_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	return redisstate.New(client, "blossom-test-"+uuid.NewString())
}

func TestStore_CommitReadAndRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, repository.CommitBatch{
		TxID:      "tx1",
		Timestamp: time.Now().UTC(),
		Writes: []repository.Write{
			{Partition: "p", Key: "asset:b", Value: []byte("B")},
			{Partition: "p", Key: "asset:a", Value: []byte("A")},
			{Partition: "p", Key: "order:x", Value: []byte("X")},
		},
	}))

	got, err := store.Get(ctx, "p", "asset:a")
	require.NoError(t, err)
	require.Equal(t, []byte("A"), got.Value)

	kvs, err := store.GetRange(ctx, "p", "asset:", "asset:~")
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	require.Equal(t, "asset:a", kvs[0].Key)

	_, err = store.Get(ctx, "p", "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_StaleReadConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	exec := ledger.NewExecutor(store, "AdminMSP")
	admin := ledger.Identity{MSPID: "AdminMSP"}
	part := ledger.OrgPartition("AdminMSP")

	_, err := exec.Submit(ctx, admin, "seed", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return nil, stub.PutPrivateData(part, "k", []byte("1"))
	})
	require.NoError(t, err)

	_, err = exec.Submit(ctx, admin, "loser", func(ctx context.Context, stub ledger.Stub) (any, error) {
		_, err := stub.GetPrivateData(ctx, part, "k")
		require.NoError(t, err)
		_, err = exec.Submit(ctx, admin, "winner", func(ctx context.Context, stub ledger.Stub) (any, error) {
			return nil, stub.PutPrivateData(part, "k", []byte("2"))
		})
		require.NoError(t, err)
		return nil, stub.PutPrivateData(part, "k", []byte("3"))
	})
	require.ErrorIs(t, err, ledger.ErrMVCCConflict)

	hist, err := store.History(ctx, part, "k")
	require.NoError(t, err)
	require.Len(t, hist, 2)
}
