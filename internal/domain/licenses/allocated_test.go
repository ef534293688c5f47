package licenses_test

import (
	"context"
	"testing"

	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/stretchr/testify/require"
)

var adminID = ledger.Identity{MSPID: "AdminMSP"}

func submit(t *testing.T, exec *ledger.Executor, fn ledger.Func) any {
	t.Helper()
	out, err := exec.Submit(context.Background(), adminID, "test", fn)
	require.NoError(t, err)
	return out
}

func TestAllocated_CanonicalIgnoresInsertionOrder(t *testing.T) {
	a := &licenses.Allocated{OrderID: "o1", AssetID: "a1", Account: "Org2MSP", Expiration: "2026-01-01", Licenses: licenses.NewSet("L2", "L1")}
	b := &licenses.Allocated{OrderID: "o1", AssetID: "a1", Account: "Org2MSP", Expiration: "2026-01-01", Licenses: licenses.NewSet("L1", "L2")}

	ca, err := a.Canonical()
	require.NoError(t, err)
	cb, err := b.Canonical()
	require.NoError(t, err)
	require.Equal(t, ca, cb)
	require.Equal(t, "allocated:a1:o1", a.Key())
}

func TestAllocated_SaveLoadScan(t *testing.T) {
	exec := ledger.NewExecutor(ledger.NewMemoryState(), adminID.MSPID)
	part := ledger.OrgPartition(adminID.MSPID)

	submit(t, exec, func(ctx context.Context, stub ledger.Stub) (any, error) {
		for _, rec := range []*licenses.Allocated{
			{OrderID: "o2", AssetID: "a1", Account: "Org2MSP", Licenses: licenses.NewSet("L3")},
			{OrderID: "o1", AssetID: "a1", Account: "Org3MSP", Licenses: licenses.NewSet("L1", "L2")},
			{OrderID: "o9", AssetID: "a10", Account: "Org2MSP", Licenses: licenses.NewSet("X1")},
		} {
			if err := licenses.SaveAllocated(stub, part, rec); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	submit(t, exec, func(ctx context.Context, stub ledger.Stub) (any, error) {
		rec, found, err := licenses.LoadAllocated(ctx, stub, part, "a1", "o1")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []string{"L1", "L2"}, rec.Licenses.Sorted())

		_, found, err = licenses.LoadAllocated(ctx, stub, part, "a1", "missing")
		require.NoError(t, err)
		require.False(t, found)

		var orders []string
		err = licenses.ScanAllocated(ctx, stub, part, "a1", func(rec *licenses.Allocated) error {
			orders = append(orders, rec.OrderID)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"o1", "o2"}, orders, "a10 must not match the a1 prefix")

		holders, err := licenses.Holders(ctx, stub, part, "a1")
		require.NoError(t, err)
		require.Len(t, holders, 3)
		require.Equal(t, "Org3MSP", holders["L2"].Account)
		require.Equal(t, "o2", holders["L3"].OrderID)
		return nil, nil
	})
}
