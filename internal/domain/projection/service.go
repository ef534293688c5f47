// Package projection answers read-only questions that span orders and
// allocation records.
package projection

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/dates"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/domain/order"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// ExpiredOrder is an order whose held licenses have lapsed.
type ExpiredOrder struct {
	Order      *order.Order `json:"order"`
	Expiration string       `json:"expiration"`
	Licenses   []string     `json:"licenses"`
}

type Service struct {
	authz  authz.Authorizer
	logger *slog.Logger
}

func NewService(a authz.Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{authz: a, logger: logger}
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, stub ledger.Stub, ref order.Ref) (*order.Order, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpGetOrder, ref.Account); err != nil {
		return nil, err
	}
	return order.Load(ctx, stub, ref.Account, ref.OrderID)
}

// ListOrdersForAccount returns every order of account in id order.
func (s *Service) ListOrdersForAccount(ctx context.Context, stub ledger.Stub, account string) ([]*order.Order, error) {
	if account == "" {
		return nil, errs.InvalidArgument("account is required")
	}
	if err := authz.Require(ctx, s.authz, stub, authz.OpListOrdersForAccount, account); err != nil {
		return nil, err
	}
	out := []*order.Order{}
	err := order.Scan(ctx, stub, account, func(o *order.Order) error {
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return out, nil
}

// ListOrdersForAsset returns the orders on assetID the caller may read: all
// of them for the administrator, the caller's own otherwise.
func (s *Service) ListOrdersForAsset(ctx context.Context, stub ledger.Stub, assetID string) ([]*order.Order, error) {
	if assetID == "" {
		return nil, errs.InvalidArgument("asset id is required")
	}
	if err := authz.Require(ctx, s.authz, stub, authz.OpListOrdersForAsset, assetID); err != nil {
		return nil, err
	}
	account := ""
	if !ledger.CallerIsAdmin(stub) {
		account = stub.Caller().MSPID
	}
	out := []*order.Order{}
	err := order.Scan(ctx, stub, account, func(o *order.Order) error {
		if o.AssetID == assetID {
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return out, nil
}

// ListAllocatedLicensesForAsset returns the account's own non-empty
// allocation records for assetID, read from the account's partition.
func (s *Service) ListAllocatedLicensesForAsset(ctx context.Context, stub ledger.Stub, account, assetID string) ([]*licenses.Allocated, error) {
	if account == "" || assetID == "" {
		return nil, errs.InvalidArgument("account and asset id are required")
	}
	if err := authz.Require(ctx, s.authz, stub, authz.OpListAllocatedLicensesForAsset, account); err != nil {
		return nil, err
	}
	out := []*licenses.Allocated{}
	err := licenses.ScanAllocated(ctx, stub, ledger.OrgPartition(account), assetID, func(rec *licenses.Allocated) error {
		if rec.Licenses.Len() > 0 {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning allocations: %w", err)
	}
	return out, nil
}

// ListOrdersWithExpiredLicenses returns the orders whose licenses in the
// account's partition expired before the transaction date.
func (s *Service) ListOrdersWithExpiredLicenses(ctx context.Context, stub ledger.Stub, account string) ([]ExpiredOrder, error) {
	if account == "" {
		return nil, errs.InvalidArgument("account is required")
	}
	if err := authz.Require(ctx, s.authz, stub, authz.OpListOrdersWithExpiredLicenses, account); err != nil {
		return nil, err
	}
	now := stub.TxTimestamp()
	var expired []*licenses.Allocated
	err := licenses.ScanAllocated(ctx, stub, ledger.OrgPartition(account), "", func(rec *licenses.Allocated) error {
		if rec.Licenses.Len() == 0 {
			return nil
		}
		lapsed, err := dates.Expired(rec.Expiration, now)
		if err != nil {
			return err
		}
		if lapsed {
			expired = append(expired, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning allocations: %w", err)
	}

	out := make([]ExpiredOrder, 0, len(expired))
	for _, rec := range expired {
		o, err := order.Load(ctx, stub, account, rec.OrderID)
		if err != nil {
			return nil, fmt.Errorf("resolving order of %s: %w", rec.Key(), err)
		}
		out = append(out, ExpiredOrder{Order: o, Expiration: rec.Expiration, Licenses: rec.Licenses.Sorted()})
	}
	return out, nil
}
