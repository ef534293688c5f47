package asset_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/stretchr/testify/require"
)

const adminMSP = "AdminMSP"

var (
	admin = ledger.Identity{MSPID: adminMSP}
	org2  = ledger.Identity{MSPID: "Org2MSP"}
	org3  = ledger.Identity{MSPID: "Org3MSP"}
)

type fixture struct {
	exec *ledger.Executor
	svc  *asset.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	policy, err := authz.NewPolicy(adminMSP, nil)
	require.NoError(t, err)

	ts := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	n := 0
	exec := ledger.NewExecutor(ledger.NewMemoryState(), adminMSP,
		ledger.WithClock(func() time.Time { return ts }),
		ledger.WithTxIDs(func() string {
			n++
			return fmt.Sprintf("tx%02d", n)
		}),
	)
	return &fixture{exec: exec, svc: asset.NewService(policy, nil)}
}

func (f *fixture) create(t *testing.T, ids ...string) *asset.Asset {
	t.Helper()
	out, err := f.exec.Submit(context.Background(), admin, "CreateAsset", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.Create(ctx, stub, asset.CreateRequest{Name: "Editor", EndDate: "2030-01-01", Licenses: ids})
	})
	require.NoError(t, err)
	return out.(*asset.Asset)
}

// allocate moves ids from the pool into an admin allocation record.
func (f *fixture) allocate(t *testing.T, assetID, orderID, account string, ids ...string) {
	t.Helper()
	_, err := f.exec.Submit(context.Background(), admin, "seed", func(ctx context.Context, stub ledger.Stub) (any, error) {
		a, err := asset.Load(ctx, stub, assetID)
		if err != nil {
			return nil, err
		}
		a.AvailableLicenses.Remove(ids...)
		if err := asset.Save(stub, a); err != nil {
			return nil, err
		}
		return nil, licenses.SaveAllocated(stub, ledger.AdminPartition(stub), &licenses.Allocated{
			OrderID:    orderID,
			AssetID:    assetID,
			Account:    account,
			Expiration: "2026-03-14",
			Licenses:   licenses.NewSet(ids...),
		})
	})
	require.NoError(t, err)
}

func (f *fixture) detail(t *testing.T, caller ledger.Identity, assetID string) *asset.AssetDetail {
	t.Helper()
	out, err := f.exec.Evaluate(context.Background(), caller, "GetAssetDetail", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.Detail(ctx, stub, assetID)
	})
	require.NoError(t, err)
	return out.(*asset.AssetDetail)
}

func TestService_Create_FreshAssetDetail(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L2", "L1")

	require.Equal(t, "tx01", a.ID)
	require.Equal(t, "2025-03-14", a.StartDate)

	d := f.detail(t, admin, a.ID)
	require.Equal(t, 2, d.NumAvailable)
	require.Equal(t, 2, d.TotalLicenses)
	require.Equal(t, []string{"L1", "L2"}, d.AvailableLicenses)
	require.Empty(t, d.AllocatedLicenses)
}

func TestService_Create_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []asset.CreateRequest{
		{Name: "Editor", EndDate: "2030-13-01"},
		{Name: "Editor", EndDate: "01/01/2030"},
		{Name: "", EndDate: "2030-01-01"},
		{Name: "Editor", EndDate: "2030-01-01", Licenses: []string{"L1", " "}},
	}
	for _, req := range cases {
		_, err := f.exec.Submit(ctx, admin, "CreateAsset", func(ctx context.Context, stub ledger.Stub) (any, error) {
			return f.svc.Create(ctx, stub, req)
		})
		require.ErrorIs(t, err, errs.ErrInvalidArgument, "request %+v", req)
	}
}

func TestService_Create_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Submit(context.Background(), org2, "CreateAsset", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.Create(ctx, stub, asset.CreateRequest{Name: "Editor", EndDate: "2030-01-01"})
	})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestService_AddLicenses_DuplicateAvailableIsAtomic(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1", "L2")

	_, err := f.exec.Submit(context.Background(), admin, "AddLicenses", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.AddLicenses(ctx, stub, a.ID, []string{"L3", "L1"})
	})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Contains(t, err.Error(), "L1")

	d := f.detail(t, admin, a.ID)
	require.Equal(t, []string{"L1", "L2"}, d.AvailableLicenses)
}

func TestService_AddLicenses_DuplicateAllocatedConflicts(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1", "L2")
	f.allocate(t, a.ID, "o1", org2.MSPID, "L1")

	_, err := f.exec.Submit(context.Background(), admin, "AddLicenses", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.AddLicenses(ctx, stub, a.ID, []string{"L1"})
	})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Contains(t, err.Error(), "Org2MSP")
}

func TestService_AddLicenses_Success(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1")

	_, err := f.exec.Submit(context.Background(), admin, "AddLicenses", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.AddLicenses(ctx, stub, a.ID, []string{"L3", "L2"})
	})
	require.NoError(t, err)
	require.Equal(t, []string{"L1", "L2", "L3"}, f.detail(t, admin, a.ID).AvailableLicenses)
}

func TestService_RemoveLicenses_AllocatedNamesHolder(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1", "L2")
	f.allocate(t, a.ID, "o1", org2.MSPID, "L1")

	_, err := f.exec.Submit(context.Background(), admin, "RemoveLicenses", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.RemoveLicenses(ctx, stub, a.ID, []string{"L1"})
	})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Contains(t, err.Error(), "Org2MSP")
}

func TestService_RemoveLicenses_UnknownIsNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1", "L2")

	_, err := f.exec.Submit(context.Background(), admin, "RemoveLicenses", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.RemoveLicenses(ctx, stub, a.ID, []string{"L2", "L9"})
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Equal(t, []string{"L1", "L2"}, f.detail(t, admin, a.ID).AvailableLicenses)
}

func TestService_UpdateEndDate(t *testing.T) {
	f := newFixture(t)
	a := f.create(t)
	ctx := context.Background()

	_, err := f.exec.Submit(ctx, admin, "UpdateEndDate", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.UpdateEndDate(ctx, stub, a.ID, "2031-02-30")
	})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.exec.Submit(ctx, admin, "UpdateEndDate", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.UpdateEndDate(ctx, stub, a.ID, "2031-02-28")
	})
	require.NoError(t, err)
	require.Equal(t, "2031-02-28", f.detail(t, admin, a.ID).EndDate)
}

func TestService_Remove_RejectsOutstandingAllocations(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1", "L2")
	f.allocate(t, a.ID, "o1", org2.MSPID, "L1")

	_, err := f.exec.Submit(context.Background(), admin, "RemoveAsset", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return nil, f.svc.Remove(ctx, stub, a.ID)
	})
	require.ErrorIs(t, err, errs.ErrConflict)

	d := f.detail(t, admin, a.ID)
	require.Equal(t, 2, d.TotalLicenses)
}

func TestService_Remove_DeletesAndKeepsHistory(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1")
	ctx := context.Background()

	_, err := f.exec.Submit(ctx, admin, "RemoveAsset", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return nil, f.svc.Remove(ctx, stub, a.ID)
	})
	require.NoError(t, err)

	_, err = f.exec.Evaluate(ctx, admin, "GetAssetDetail", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.Detail(ctx, stub, a.ID)
	})
	require.ErrorIs(t, err, errs.ErrNotFound)

	out, err := f.exec.Evaluate(ctx, org2, "GetAssetHistory", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return f.svc.History(ctx, stub, a.ID)
	})
	require.NoError(t, err)
	hist := out.([]asset.HistoryEntry)
	require.Len(t, hist, 2)
	require.Equal(t, a.ID, hist[0].Asset.ID)
	require.True(t, hist[1].IsDelete)
	require.Nil(t, hist[1].Asset)
}

func TestService_List_OrderedByID(t *testing.T) {
	f := newFixture(t)
	f.create(t, "L1")
	f.create(t, "L1", "L2", "L3")

	out, err := f.exec.Evaluate(context.Background(), org2, "ListAssets", func(ctx context.Context, stub ledger.Stub) (any, error) {
		seq, err := f.svc.List(ctx, stub)
		if err != nil {
			return nil, err
		}
		var got []asset.AssetSummary
		for s, err := range seq {
			if err != nil {
				return nil, err
			}
			got = append(got, s)
		}
		return got, nil
	})
	require.NoError(t, err)

	got := out.([]asset.AssetSummary)
	require.Len(t, got, 2)
	require.Equal(t, "tx01", got[0].ID)
	require.Equal(t, 1, got[0].NumAvailable)
	require.Equal(t, "tx02", got[1].ID)
	require.Equal(t, 3, got[1].NumAvailable)
}

func TestService_Detail_MembersSeeOwnAllocations(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "L1", "L2", "L3")
	f.allocate(t, a.ID, "o1", org2.MSPID, "L1")
	f.allocate(t, a.ID, "o2", org3.MSPID, "L3")

	full := f.detail(t, admin, a.ID)
	require.Len(t, full.AllocatedLicenses, 2)
	require.Equal(t, []asset.LicenseWithExpiration{{LicenseID: "L1", Expiration: "2026-03-14"}},
		full.AllocatedLicenses[org2.MSPID]["o1"])

	own := f.detail(t, org2, a.ID)
	require.Len(t, own.AllocatedLicenses, 1)
	require.Contains(t, own.AllocatedLicenses, org2.MSPID)
	require.Equal(t, 3, own.TotalLicenses)
	require.Equal(t, 1, own.NumAvailable)
}
