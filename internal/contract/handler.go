// Package contract maps operation names and JSON payloads onto domain calls,
// each run inside one ledger transaction.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/domain/activity"
	"github.com/rpggio/blossom/internal/domain/allocation"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/domain/order"
	"github.com/rpggio/blossom/internal/domain/projection"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// Runner executes ledger transactions.
type Runner interface {
	Submit(ctx context.Context, caller ledger.Identity, operation string, fn ledger.Func) (any, error)
	Evaluate(ctx context.Context, caller ledger.Identity, operation string, fn ledger.Func) (any, error)
}

// AssetService defines asset operations.
type AssetService interface {
	Create(ctx context.Context, stub ledger.Stub, req asset.CreateRequest) (*asset.Asset, error)
	AddLicenses(ctx context.Context, stub ledger.Stub, assetID string, ids []string) (*asset.Asset, error)
	RemoveLicenses(ctx context.Context, stub ledger.Stub, assetID string, ids []string) (*asset.Asset, error)
	UpdateEndDate(ctx context.Context, stub ledger.Stub, assetID, endDate string) (*asset.Asset, error)
	Remove(ctx context.Context, stub ledger.Stub, assetID string) error
	List(ctx context.Context, stub ledger.Stub) (iter.Seq2[asset.AssetSummary, error], error)
	Detail(ctx context.Context, stub ledger.Stub, assetID string) (*asset.AssetDetail, error)
	History(ctx context.Context, stub ledger.Stub, assetID string) ([]asset.HistoryEntry, error)
}

// OrderService defines order lifecycle operations.
type OrderService interface {
	RequestQuote(ctx context.Context, stub ledger.Stub, req order.QuoteRequest) (*order.Order, error)
	SendQuote(ctx context.Context, stub ledger.Stub, req order.SendQuoteRequest) (*order.Order, error)
	InitiateOrder(ctx context.Context, stub ledger.Stub, req order.InitiateRequest) (*order.Order, error)
	Approve(ctx context.Context, stub ledger.Stub, ref order.Ref) (*order.Order, error)
	Deny(ctx context.Context, stub ledger.Stub, ref order.Ref) (*order.Order, error)
	Delete(ctx context.Context, stub ledger.Stub, ref order.Ref) error
}

// AllocationService defines allocation engine operations.
type AllocationService interface {
	Allocate(ctx context.Context, stub ledger.Stub, ref order.Ref) (*licenses.Allocated, error)
	Send(ctx context.Context, stub ledger.Stub, rec *licenses.Allocated) error
	Return(ctx context.Context, stub ledger.Stub, req allocation.ReturnRequest) (*licenses.Allocated, error)
	Deallocate(ctx context.Context, stub ledger.Stub, req allocation.DeallocateRequest) (*allocation.DeallocateResult, error)
}

// ProjectionService defines read-only queries.
type ProjectionService interface {
	GetOrder(ctx context.Context, stub ledger.Stub, ref order.Ref) (*order.Order, error)
	ListOrdersForAccount(ctx context.Context, stub ledger.Stub, account string) ([]*order.Order, error)
	ListOrdersForAsset(ctx context.Context, stub ledger.Stub, assetID string) ([]*order.Order, error)
	ListAllocatedLicensesForAsset(ctx context.Context, stub ledger.Stub, account, assetID string) ([]*licenses.Allocated, error)
	ListOrdersWithExpiredLicenses(ctx context.Context, stub ledger.Stub, account string) ([]projection.ExpiredOrder, error)
}

// ActivityService defines activity log reads.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services groups the domain services a Handler dispatches to.
type Services struct {
	Assets      AssetService
	Orders      OrderService
	Allocations AllocationService
	Projections ProjectionService
	Activity    ActivityService
	Authorizer  authz.Authorizer
}

// Handler dispatches operations.
type Handler struct {
	runner Runner
	svc    Services
}

// NewHandler creates a new operation handler.
func NewHandler(runner Runner, svc Services) *Handler {
	return &Handler{runner: runner, svc: svc}
}

type call func(ctx context.Context, stub ledger.Stub) (any, error)

// Handle runs method with params on behalf of caller. Mutating operations
// are submitted; queries are evaluated without commit.
func (h *Handler) Handle(ctx context.Context, caller ledger.Identity, method string, params json.RawMessage) (any, error) {
	if method == string(authz.OpListActivity) {
		out, err := h.listActivity(ctx, caller, params)
		if err != nil {
			return nil, mapError(err)
		}
		return out, nil
	}

	fn, query, err := h.resolve(method, params)
	if err != nil {
		return nil, mapError(err)
	}
	var out any
	if query {
		out, err = h.runner.Evaluate(ctx, caller, method, ledger.Func(fn))
	} else {
		out, err = h.runner.Submit(ctx, caller, method, ledger.Func(fn))
	}
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// resolve decodes params and returns the transaction body for method.
func (h *Handler) resolve(method string, params json.RawMessage) (call, bool, error) {
	switch authz.Operation(method) {
	case authz.OpCreateAsset:
		var req asset.CreateRequest
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Assets.Create(ctx, stub, req)
		}, false, nil
	case authz.OpAddLicenses:
		var req AssetLicensesParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Assets.AddLicenses(ctx, stub, req.AssetID, req.Licenses)
		}, false, nil
	case authz.OpRemoveLicenses:
		var req AssetLicensesParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Assets.RemoveLicenses(ctx, stub, req.AssetID, req.Licenses)
		}, false, nil
	case authz.OpUpdateEndDate:
		var req UpdateEndDateParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Assets.UpdateEndDate(ctx, stub, req.AssetID, req.EndDate)
		}, false, nil
	case authz.OpRemoveAsset:
		var req AssetIDParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			if err := h.svc.Assets.Remove(ctx, stub, req.AssetID); err != nil {
				return nil, err
			}
			return StatusResponse{Status: "removed"}, nil
		}, false, nil
	case authz.OpListAssets:
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			seq, err := h.svc.Assets.List(ctx, stub)
			if err != nil {
				return nil, err
			}
			out := []asset.AssetSummary{}
			for summary, err := range seq {
				if err != nil {
					return nil, err
				}
				out = append(out, summary)
			}
			return out, nil
		}, true, nil
	case authz.OpGetAssetDetail:
		var req AssetIDParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Assets.Detail(ctx, stub, req.AssetID)
		}, true, nil
	case authz.OpGetAssetHistory:
		var req AssetIDParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Assets.History(ctx, stub, req.AssetID)
		}, true, nil
	case authz.OpRequestQuote:
		var req order.QuoteRequest
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Orders.RequestQuote(ctx, stub, req)
		}, false, nil
	case authz.OpSendQuote:
		var req order.SendQuoteRequest
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Orders.SendQuote(ctx, stub, req)
		}, false, nil
	case authz.OpInitiateOrder:
		var req order.InitiateRequest
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Orders.InitiateOrder(ctx, stub, req)
		}, false, nil
	case authz.OpApproveOrder:
		var ref order.Ref
		if err := decodeParams(method, params, &ref); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Orders.Approve(ctx, stub, ref)
		}, false, nil
	case authz.OpDenyOrder:
		var ref order.Ref
		if err := decodeParams(method, params, &ref); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Orders.Deny(ctx, stub, ref)
		}, false, nil
	case authz.OpDeleteOrder:
		var ref order.Ref
		if err := decodeParams(method, params, &ref); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			if err := h.svc.Orders.Delete(ctx, stub, ref); err != nil {
				return nil, err
			}
			return StatusResponse{Status: "deleted"}, nil
		}, false, nil
	case authz.OpAllocateLicenses:
		var ref order.Ref
		if err := decodeParams(method, params, &ref); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Allocations.Allocate(ctx, stub, ref)
		}, false, nil
	case authz.OpSendLicenses:
		var rec licenses.Allocated
		if err := decodeParams(method, params, &rec); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			if err := h.svc.Allocations.Send(ctx, stub, &rec); err != nil {
				return nil, err
			}
			return StatusResponse{Status: "sent"}, nil
		}, false, nil
	case authz.OpReturnLicenses:
		var req allocation.ReturnRequest
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Allocations.Return(ctx, stub, req)
		}, false, nil
	case authz.OpDeallocateLicenses:
		var req allocation.DeallocateRequest
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Allocations.Deallocate(ctx, stub, req)
		}, false, nil
	case authz.OpGetOrder:
		var ref order.Ref
		if err := decodeParams(method, params, &ref); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Projections.GetOrder(ctx, stub, ref)
		}, true, nil
	case authz.OpListOrdersForAccount:
		var req AccountParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Projections.ListOrdersForAccount(ctx, stub, req.Account)
		}, true, nil
	case authz.OpListOrdersForAsset:
		var req AssetIDParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Projections.ListOrdersForAsset(ctx, stub, req.AssetID)
		}, true, nil
	case authz.OpListAllocatedLicensesForAsset:
		var req AccountAssetParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Projections.ListAllocatedLicensesForAsset(ctx, stub, req.Account, req.AssetID)
		}, true, nil
	case authz.OpListOrdersWithExpiredLicenses:
		var req AccountParams
		if err := decodeParams(method, params, &req); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, stub ledger.Stub) (any, error) {
			return h.svc.Projections.ListOrdersWithExpiredLicenses(ctx, stub, req.Account)
		}, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownOperation, method)
	}
}

func (h *Handler) listActivity(ctx context.Context, caller ledger.Identity, params json.RawMessage) (any, error) {
	var req ListActivityParams
	if err := decodeParams(string(authz.OpListActivity), params, &req); err != nil {
		return nil, err
	}
	ok, err := h.svc.Authorizer.CanPerform(ctx, caller, authz.OpListActivity, "")
	if err != nil {
		return nil, fmt.Errorf("authorizing %s: %w", authz.OpListActivity, err)
	}
	if !ok {
		return nil, errs.Unauthorized("%s may not perform %s", caller.MSPID, authz.OpListActivity)
	}
	if req.Limit < 0 || req.Offset < 0 {
		return nil, errs.InvalidArgument("limit and offset must not be negative")
	}
	entries, err := h.svc.Activity.GetRecentActivity(ctx, activity.ListActivityOptions{
		Operation: req.Operation,
		Caller:    req.Caller,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	return entries, nil
}

func decodeParams(method string, params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return errs.InvalidArgument("invalid params for %s: %v", method, err)
	}
	return nil
}

// Operations lists every operation name Handle accepts.
func Operations() []authz.Operation {
	return []authz.Operation{
		authz.OpCreateAsset,
		authz.OpAddLicenses,
		authz.OpRemoveLicenses,
		authz.OpUpdateEndDate,
		authz.OpRemoveAsset,
		authz.OpListAssets,
		authz.OpGetAssetDetail,
		authz.OpGetAssetHistory,
		authz.OpRequestQuote,
		authz.OpSendQuote,
		authz.OpInitiateOrder,
		authz.OpApproveOrder,
		authz.OpDenyOrder,
		authz.OpAllocateLicenses,
		authz.OpSendLicenses,
		authz.OpDeleteOrder,
		authz.OpReturnLicenses,
		authz.OpDeallocateLicenses,
		authz.OpGetOrder,
		authz.OpListOrdersForAccount,
		authz.OpListOrdersForAsset,
		authz.OpListAllocatedLicensesForAsset,
		authz.OpListOrdersWithExpiredLicenses,
		authz.OpListActivity,
	}
}
