package contract_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/contract"
	"github.com/rpggio/blossom/internal/domain/activity"
	"github.com/rpggio/blossom/internal/domain/allocation"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/domain/order"
	"github.com/rpggio/blossom/internal/domain/projection"
	"github.com/rpggio/blossom/internal/gateway"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const adminMSP = "AdminMSP"

var (
	admin = ledger.Identity{MSPID: adminMSP}
	org2  = ledger.Identity{MSPID: "Org2MSP"}
)

type mockActivity struct {
	mock.Mock
}

func (m *mockActivity) GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	entries, _ := args.Get(0).([]activity.ActivityEntry)
	return entries, args.Error(1)
}

func newHandler(t *testing.T, act contract.ActivityService) *contract.Handler {
	t.Helper()
	policy, err := authz.NewPolicy(adminMSP, nil)
	require.NoError(t, err)
	dir, err := authz.NewStaticDirectory(adminMSP, map[string]string{org2.MSPID: "AUTHORIZED"})
	require.NoError(t, err)

	ts := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	n := 0
	exec := ledger.NewExecutor(ledger.NewMemoryState(), adminMSP,
		ledger.WithClock(func() time.Time { return ts }),
		ledger.WithTxIDs(func() string {
			n++
			return fmt.Sprintf("tx%02d", n)
		}),
	)
	return contract.NewHandler(gateway.New(exec, gateway.Options{MaxRetries: 3}, nil), contract.Services{
		Assets:      asset.NewService(policy, nil),
		Orders:      order.NewService(policy, dir, nil),
		Allocations: allocation.NewService(policy, dir, nil),
		Projections: projection.NewService(policy, nil),
		Activity:    act,
		Authorizer:  policy,
	})
}

func call(t *testing.T, h *contract.Handler, caller ledger.Identity, method string, params any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return h.Handle(context.Background(), caller, method, raw)
}

func mustCall(t *testing.T, h *contract.Handler, caller ledger.Identity, method string, params any) any {
	t.Helper()
	out, err := call(t, h, caller, method, params)
	require.NoError(t, err, method)
	return out
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	apiErr := contract.MapError(err)
	require.NotNil(t, apiErr, "unmapped error: %v", err)
	require.Equal(t, code, apiErr.Code)
}

func TestHandler_Handle_OrderToDeallocation(t *testing.T) {
	h := newHandler(t, &mockActivity{})

	a := mustCall(t, h, admin, "CreateAsset", map[string]any{
		"name": "Editor", "end_date": "2030-01-01", "licenses": []string{"L1", "L2"},
	}).(*asset.Asset)

	detail := mustCall(t, h, org2, "GetAssetDetail", map[string]any{"asset_id": a.ID}).(*asset.AssetDetail)
	require.Equal(t, 2, detail.NumAvailable)
	require.Empty(t, detail.AllocatedLicenses)

	o := mustCall(t, h, org2, "InitiateOrder", map[string]any{
		"asset_id": a.ID, "amount": 1, "duration": 1,
	}).(*order.Order)
	ref := map[string]any{"order_id": o.ID, "account": org2.MSPID}

	mustCall(t, h, admin, "ApproveOrder", ref)
	rec := mustCall(t, h, admin, "AllocateLicenses", ref).(*licenses.Allocated)
	require.Equal(t, "2026-01-15", rec.Expiration)

	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(payload, &sent))
	mustCall(t, h, admin, "SendLicenses", sent)

	got := mustCall(t, h, org2, "GetOrder", ref).(*order.Order)
	require.Equal(t, order.StatusAllocated, got.Status)

	held := mustCall(t, h, org2, "ListAllocatedLicensesForAsset", map[string]any{
		"account": org2.MSPID, "asset_id": a.ID,
	}).([]*licenses.Allocated)
	require.Len(t, held, 1)
	require.Equal(t, []string{"L1"}, held[0].Licenses.Sorted())

	mustCall(t, h, org2, "ReturnLicenses", map[string]any{
		"order_id": o.ID, "asset_id": a.ID, "account": org2.MSPID, "licenses": []string{"L1"},
	})
	res := mustCall(t, h, admin, "DeallocateLicenses", map[string]any{
		"order_id": o.ID, "account": org2.MSPID, "licenses": []string{},
	}).(*allocation.DeallocateResult)
	require.Equal(t, []string{"L1"}, res.Returned)
	require.Equal(t, 0, res.Amount)

	detail = mustCall(t, h, admin, "GetAssetDetail", map[string]any{"asset_id": a.ID}).(*asset.AssetDetail)
	require.Equal(t, []string{"L1", "L2"}, detail.AvailableLicenses)

	mustCall(t, h, org2, "DeleteOrder", ref)
	mustCall(t, h, admin, "RemoveAsset", map[string]any{"asset_id": a.ID})

	assets := mustCall(t, h, org2, "ListAssets", nil).([]asset.AssetSummary)
	require.Empty(t, assets)
}

func TestHandler_Handle_ErrorCodes(t *testing.T) {
	h := newHandler(t, &mockActivity{})
	a := mustCall(t, h, admin, "CreateAsset", map[string]any{
		"name": "Editor", "end_date": "2030-01-01", "licenses": []string{"L1"},
	}).(*asset.Asset)

	_, err := call(t, h, admin, "CreateAsset", map[string]any{"name": "Editor", "end_date": "2030/01/01"})
	requireCode(t, err, "INVALID_ARGUMENT")

	_, err = call(t, h, admin, "AddLicenses", map[string]any{"asset_id": a.ID, "licenses": []string{"L1"}})
	requireCode(t, err, "CONFLICT")

	_, err = call(t, h, admin, "GetAssetDetail", map[string]any{"asset_id": "missing"})
	requireCode(t, err, "NOT_FOUND")

	_, err = call(t, h, org2, "CreateAsset", map[string]any{"name": "Editor", "end_date": "2030-01-01"})
	requireCode(t, err, "UNAUTHORIZED")

	o := mustCall(t, h, org2, "InitiateOrder", map[string]any{"asset_id": a.ID, "amount": 2, "duration": 1}).(*order.Order)
	ref := map[string]any{"order_id": o.ID, "account": org2.MSPID}

	_, err = call(t, h, admin, "AllocateLicenses", ref)
	requireCode(t, err, "INVALID_STATE")

	mustCall(t, h, admin, "ApproveOrder", ref)
	_, err = call(t, h, admin, "AllocateLicenses", ref)
	requireCode(t, err, "INSUFFICIENT_INVENTORY")

	_, err = call(t, h, admin, "SendLicenses", map[string]any{
		"order_id": o.ID, "asset_id": a.ID, "account": org2.MSPID, "expiration": "2026-01-15", "licenses": []string{"L1"},
	})
	requireCode(t, err, "INTEGRITY_MISMATCH")

	_, err = h.Handle(context.Background(), admin, "MintLicenses", nil)
	requireCode(t, err, "UNKNOWN_OPERATION")

	_, err = h.Handle(context.Background(), admin, "AddLicenses", json.RawMessage(`{"asset_id": 7}`))
	requireCode(t, err, "INVALID_ARGUMENT")
}

func TestHandler_Handle_ListActivity(t *testing.T) {
	act := &mockActivity{}
	entries := []activity.ActivityEntry{{ID: 1, TxID: "tx01", Operation: "CreateAsset", Caller: adminMSP}}
	act.On("GetRecentActivity", mock.Anything, activity.ListActivityOptions{Operation: "CreateAsset", Limit: 10}).
		Return(entries, nil).Once()
	h := newHandler(t, act)

	out, err := call(t, h, admin, "ListActivity", map[string]any{"operation": "CreateAsset", "limit": 10})
	require.NoError(t, err)
	require.Equal(t, entries, out)

	_, err = call(t, h, org2, "ListActivity", map[string]any{})
	requireCode(t, err, "UNAUTHORIZED")
	act.AssertExpectations(t)
}

func TestOperations_AllDispatchable(t *testing.T) {
	h := newHandler(t, &mockActivity{})
	for _, op := range contract.Operations() {
		_, err := h.Handle(context.Background(), ledger.Identity{}, string(op), json.RawMessage(`{}`))
		if err == nil {
			continue
		}
		apiErr := contract.MapError(err)
		if apiErr != nil {
			require.NotEqual(t, "UNKNOWN_OPERATION", apiErr.Code, op)
		}
	}
}
