package order_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/domain/order"
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
	exec    *ledger.Executor
	orders  *order.Service
	assetID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	policy, err := authz.NewPolicy(adminMSP, nil)
	require.NoError(t, err)
	dir, err := authz.NewStaticDirectory(adminMSP, map[string]string{
		org2.MSPID: "AUTHORIZED",
		org3.MSPID: "PENDING",
	})
	require.NoError(t, err)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	exec := ledger.NewExecutor(ledger.NewMemoryState(), adminMSP,
		ledger.WithClock(func() time.Time { return ts }),
		ledger.WithTxIDs(func() string {
			n++
			return fmt.Sprintf("tx%02d", n)
		}),
	)

	assets := asset.NewService(policy, nil)
	out, err := exec.Submit(context.Background(), admin, "CreateAsset", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return assets.Create(ctx, stub, asset.CreateRequest{Name: "Editor", EndDate: "2030-01-01", Licenses: []string{"L1", "L2"}})
	})
	require.NoError(t, err)

	return &fixture{
		exec:    exec,
		orders:  order.NewService(policy, dir, nil),
		assetID: out.(*asset.Asset).ID,
	}
}

func (f *fixture) submit(t *testing.T, caller ledger.Identity, fn func(ctx context.Context, stub ledger.Stub) (*order.Order, error)) (*order.Order, error) {
	t.Helper()
	out, err := f.exec.Submit(context.Background(), caller, "test", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return fn(ctx, stub)
	})
	if err != nil {
		return nil, err
	}
	return out.(*order.Order), nil
}

func (f *fixture) load(t *testing.T, account, id string) *order.Order {
	t.Helper()
	out, err := f.exec.Evaluate(context.Background(), admin, "load", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return order.Load(ctx, stub, account, id)
	})
	require.NoError(t, err)
	return out.(*order.Order)
}

func (f *fixture) initiate(t *testing.T) *order.Order {
	t.Helper()
	o, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.InitiateOrder(ctx, stub, order.InitiateRequest{AssetID: f.assetID, Amount: 1, Duration: 1})
	})
	require.NoError(t, err)
	return o
}

// seedStatus forces an order into status, standing in for the allocation engine.
func (f *fixture) seedStatus(t *testing.T, o *order.Order, status order.Status) {
	t.Helper()
	_, err := f.exec.Submit(context.Background(), admin, "seed", func(ctx context.Context, stub ledger.Stub) (any, error) {
		o.Status = status
		return nil, order.Save(stub, o)
	})
	require.NoError(t, err)
}

func TestService_RequestQuote_NewOrder(t *testing.T) {
	f := newFixture(t)

	o, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.RequestQuote(ctx, stub, order.QuoteRequest{AssetID: f.assetID, Amount: 2, Duration: 3})
	})
	require.NoError(t, err)
	require.Equal(t, "tx02", o.ID)
	require.Equal(t, org2.MSPID, o.Account)
	require.Equal(t, order.StatusQuoteRequested, o.Status)
	require.Equal(t, 2, o.Amount)

	stored := f.load(t, org2.MSPID, o.ID)
	require.Equal(t, o, stored)
}

func TestService_RequestQuote_UnknownAsset(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.RequestQuote(ctx, stub, order.QuoteRequest{AssetID: "nope"})
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_RequestQuote_PendingAccountUnauthorized(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(t, org3, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.RequestQuote(ctx, stub, order.QuoteRequest{AssetID: f.assetID})
	})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestService_SendQuote(t *testing.T) {
	f := newFixture(t)
	o, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.RequestQuote(ctx, stub, order.QuoteRequest{AssetID: f.assetID})
	})
	require.NoError(t, err)

	_, err = f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.SendQuote(ctx, stub, order.SendQuoteRequest{OrderID: o.ID, Account: org2.MSPID, Price: -1})
	})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.SendQuote(ctx, stub, order.SendQuoteRequest{OrderID: o.ID, Account: org2.MSPID, Price: 10})
	})
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	quoted, err := f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.SendQuote(ctx, stub, order.SendQuoteRequest{OrderID: o.ID, Account: org2.MSPID, Price: 99.5})
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusQuoteReceived, quoted.Status)
	require.Equal(t, 99.5, quoted.Price)

	_, err = f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.SendQuote(ctx, stub, order.SendQuoteRequest{OrderID: o.ID, Account: org2.MSPID, Price: 1})
	})
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.Equal(t, 99.5, f.load(t, org2.MSPID, o.ID).Price)
}

func TestService_InitiateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []order.InitiateRequest{
		{AssetID: f.assetID, Amount: 0, Duration: 1},
		{AssetID: f.assetID, Amount: 1, Duration: 0},
		{AssetID: f.assetID, Amount: -1, Duration: 1},
	}
	for _, req := range cases {
		_, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
			return f.orders.InitiateOrder(ctx, stub, req)
		})
		require.ErrorIs(t, err, errs.ErrInvalidArgument, "request %+v", req)
	}
}

func TestService_ApproveAndDeny(t *testing.T) {
	f := newFixture(t)
	o := f.initiate(t)
	require.Equal(t, order.StatusInitiated, o.Status)
	require.Equal(t, "2025-06-01", o.InitiationDate)

	approved, err := f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.Approve(ctx, stub, order.Ref{OrderID: o.ID, Account: org2.MSPID})
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusApproved, approved.Status)
	require.Equal(t, "2025-06-01", approved.ApprovalDate)

	_, err = f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.Approve(ctx, stub, order.Ref{OrderID: o.ID, Account: org2.MSPID})
	})
	require.ErrorIs(t, err, errs.ErrInvalidState)

	denied, err := f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.Deny(ctx, stub, order.Ref{OrderID: o.ID, Account: org2.MSPID})
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusDenied, denied.Status)

	_, err = f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.Deny(ctx, stub, order.Ref{OrderID: o.ID, Account: org2.MSPID})
	})
	require.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestService_RenewalBranch(t *testing.T) {
	f := newFixture(t)
	o := f.initiate(t)
	ref := order.Ref{OrderID: o.ID, Account: org2.MSPID}

	_, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.RequestQuote(ctx, stub, order.QuoteRequest{OrderID: o.ID})
	})
	require.ErrorIs(t, err, errs.ErrInvalidState)

	f.seedStatus(t, o, order.StatusAllocated)

	renewal, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.RequestQuote(ctx, stub, order.QuoteRequest{OrderID: o.ID})
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusRenewalQuoteRequested, renewal.Status)
	require.Equal(t, o.ID, renewal.ID)

	initiated, err := f.submit(t, org2, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.InitiateOrder(ctx, stub, order.InitiateRequest{OrderID: o.ID, Duration: 2})
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusRenewalInitiated, initiated.Status)
	require.Equal(t, 2, initiated.Duration)

	denied, err := f.submit(t, admin, func(ctx context.Context, stub ledger.Stub) (*order.Order, error) {
		return f.orders.Deny(ctx, stub, ref)
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusRenewalDenied, denied.Status)
}

func TestService_Delete_RejectsHeldLicenses(t *testing.T) {
	f := newFixture(t)
	o := f.initiate(t)
	ref := order.Ref{OrderID: o.ID, Account: org2.MSPID}

	_, err := f.exec.Submit(context.Background(), admin, "seed", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return nil, licenses.SaveAllocated(stub, ledger.AdminPartition(stub), &licenses.Allocated{
			OrderID: o.ID, AssetID: f.assetID, Account: org2.MSPID, Expiration: "2026-06-01",
			Licenses: licenses.NewSet("L1"),
		})
	})
	require.NoError(t, err)

	_, err = f.exec.Submit(context.Background(), org2, "DeleteOrder", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return nil, f.orders.Delete(ctx, stub, ref)
	})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Equal(t, o.ID, f.load(t, org2.MSPID, o.ID).ID)
}

func TestService_Delete_RemovesEmptyOrder(t *testing.T) {
	f := newFixture(t)
	o := f.initiate(t)
	ref := order.Ref{OrderID: o.ID, Account: org2.MSPID}

	_, err := f.exec.Submit(context.Background(), org3, "DeleteOrder", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return nil, f.orders.Delete(ctx, stub, ref)
	})
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.exec.Submit(context.Background(), org2, "DeleteOrder", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return nil, f.orders.Delete(ctx, stub, ref)
	})
	require.NoError(t, err)

	_, err = f.exec.Evaluate(context.Background(), admin, "load", func(ctx context.Context, stub ledger.Stub) (any, error) {
		return order.Load(ctx, stub, org2.MSPID, o.ID)
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
}
