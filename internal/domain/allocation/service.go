// Package allocation hands licenses out to accounts and takes them back.
//
// The administrator partition holds the authoritative allocation record of
// each order; the holding account keeps its own copy under the same key. The
// two copies are reconciled only through commit-reveal checks on the
// ledger's private data hashes, never by reading the other party's values.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/commitreveal"
	"github.com/rpggio/blossom/internal/dates"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/domain/order"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// Service is the allocation engine.
type Service struct {
	authz    authz.Authorizer
	accounts authz.AccountDirectory
	logger   *slog.Logger
}

// NewService creates a new allocation service.
func NewService(a authz.Authorizer, accounts authz.AccountDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{authz: a, accounts: accounts, logger: logger}
}

// Allocate fulfils an approved order or renewal.
//
// A new order takes the order's amount of license ids from the asset's pool,
// smallest first. A renewal keeps the held ids and only moves the expiration.
// In both cases the expiration is the transaction time plus the order's
// duration in years. The returned record is the payload for Send.
func (s *Service) Allocate(ctx context.Context, stub ledger.Stub, ref order.Ref) (*licenses.Allocated, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpAllocateLicenses, ref.Account); err != nil {
		return nil, err
	}
	if err := authz.RequireAccount(ctx, s.accounts, ref.Account); err != nil {
		return nil, err
	}
	o, err := order.Load(ctx, stub, ref.Account, ref.OrderID)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if err := order.Transition(o, order.ActionAllocate); err != nil {
		return nil, err
	}

	now := stub.TxTimestamp()
	expiration := dates.Format(dates.AddYears(now, o.Duration))
	adminPart := ledger.AdminPartition(stub)

	var rec *licenses.Allocated
	if from == order.StatusRenewalApproved {
		existing, found, err := licenses.LoadAllocated(ctx, stub, adminPart, o.AssetID, o.ID)
		if err != nil {
			return nil, fmt.Errorf("loading allocation: %w", err)
		}
		if !found {
			return nil, errs.NotFound("order %s has no allocation to renew", o.ID)
		}
		existing.Expiration = expiration
		rec = existing
	} else {
		a, err := asset.Load(ctx, stub, o.AssetID)
		if err != nil {
			return nil, err
		}
		if a.AvailableLicenses.Len() < o.Amount {
			return nil, errs.InsufficientInventory("asset %s has %d available licenses, order %s needs %d",
				a.ID, a.AvailableLicenses.Len(), o.ID, o.Amount)
		}
		ids := a.AvailableLicenses.Take(o.Amount)
		a.AvailableLicenses.Remove(ids...)
		if err := asset.Save(stub, a); err != nil {
			return nil, fmt.Errorf("saving asset: %w", err)
		}
		rec = &licenses.Allocated{
			OrderID:    o.ID,
			AssetID:    o.AssetID,
			Account:    o.Account,
			Expiration: expiration,
			Licenses:   licenses.NewSet(ids...),
		}
		o.AllocatedDate = dates.Format(now)
	}
	o.LatestRenewalDate = dates.Format(now)

	if err := order.Save(stub, o); err != nil {
		return nil, err
	}
	if err := licenses.SaveAllocated(stub, adminPart, rec); err != nil {
		return nil, fmt.Errorf("saving allocation: %w", err)
	}
	if err := emit(stub, EventAllocated, rec, rec.Licenses.Len()); err != nil {
		return nil, err
	}
	s.logger.Debug("licenses allocated", "order_id", o.ID, "asset_id", o.AssetID,
		"account", o.Account, "count", rec.Licenses.Len(), "expiration", expiration, "renewal", from == order.StatusRenewalApproved)
	return rec, nil
}

// Send copies an allocation record into the holding account's partition
// after checking it is exactly the record the administrator committed.
// The check hashes the record's canonical encoding, so the order of the
// submitted license ids and the payload's whitespace do not matter.
func (s *Service) Send(ctx context.Context, stub ledger.Stub, rec *licenses.Allocated) error {
	if rec == nil || rec.OrderID == "" || rec.AssetID == "" || rec.Account == "" {
		return errs.InvalidArgument("order id, asset id and account are required")
	}
	if err := authz.Require(ctx, s.authz, stub, authz.OpSendLicenses, rec.Account); err != nil {
		return err
	}
	payload, err := rec.Canonical()
	if err != nil {
		return err
	}
	digest, err := stub.GetPrivateDataHash(ctx, ledger.AdminPartition(stub), rec.Key())
	if err != nil {
		return fmt.Errorf("reading allocation hash: %w", err)
	}
	if err := s.verify(commitreveal.FromDigest(digest), payload, rec); err != nil {
		return err
	}

	if err := stub.PutPrivateData(ledger.OrgPartition(rec.Account), rec.Key(), payload); err != nil {
		return fmt.Errorf("writing account copy: %w", err)
	}
	if err := emit(stub, EventSent, rec, rec.Licenses.Len()); err != nil {
		return err
	}
	s.logger.Debug("licenses sent", "order_id", rec.OrderID, "account", rec.Account, "count", rec.Licenses.Len())
	return nil
}

// Return removes ids from the caller's own copy of an allocation record.
// The authoritative record is untouched until Deallocate confirms it.
func (s *Service) Return(ctx context.Context, stub ledger.Stub, req ReturnRequest) (*licenses.Allocated, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpReturnLicenses, req.Account); err != nil {
		return nil, err
	}
	if req.OrderID == "" || req.AssetID == "" {
		return nil, errs.InvalidArgument("order id and asset id are required")
	}
	if len(req.Licenses) == 0 {
		return nil, errs.InvalidArgument("at least one license id is required")
	}

	part := ledger.OrgPartition(req.Account)
	rec, found, err := licenses.LoadAllocated(ctx, stub, part, req.AssetID, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("loading account copy: %w", err)
	}
	if !found {
		return nil, errs.NotFound("account %s holds no licenses of asset %s for order %s", req.Account, req.AssetID, req.OrderID)
	}
	for _, id := range req.Licenses {
		if !rec.Licenses.Has(id) {
			return nil, errs.NotFound("license %s is not held by %s for order %s", id, req.Account, req.OrderID)
		}
	}

	rec.Licenses.Remove(req.Licenses...)
	if err := licenses.SaveAllocated(stub, part, rec); err != nil {
		return nil, fmt.Errorf("saving account copy: %w", err)
	}
	if err := emit(stub, EventReturned, rec, len(req.Licenses)); err != nil {
		return nil, err
	}
	s.logger.Debug("licenses returned", "order_id", rec.OrderID, "account", rec.Account, "count", len(req.Licenses))
	return rec, nil
}

// Deallocate confirms a return declared by the account. The authoritative
// record reduced to the retained ids must hash to the account's copy; on a
// match the released ids go back to the asset's pool and the order's amount
// drops by their count.
func (s *Service) Deallocate(ctx context.Context, stub ledger.Stub, req DeallocateRequest) (*DeallocateResult, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpDeallocateLicenses, req.Account); err != nil {
		return nil, err
	}
	o, err := order.Load(ctx, stub, req.Account, req.OrderID)
	if err != nil {
		return nil, err
	}
	adminPart := ledger.AdminPartition(stub)
	rec, found, err := licenses.LoadAllocated(ctx, stub, adminPart, o.AssetID, o.ID)
	if err != nil {
		return nil, fmt.Errorf("loading allocation: %w", err)
	}
	if !found {
		return nil, errs.NotFound("order %s has no allocated licenses", o.ID)
	}

	retained := licenses.NewSet(req.Licenses...)
	for _, id := range req.Licenses {
		if !rec.Licenses.Has(id) {
			return nil, errs.InvalidArgument("license %s is not allocated to order %s", id, o.ID)
		}
	}

	declared := *rec
	declared.Licenses = retained
	payload, err := declared.Canonical()
	if err != nil {
		return nil, err
	}
	digest, err := stub.GetPrivateDataHash(ctx, ledger.OrgPartition(o.Account), rec.Key())
	if err != nil {
		return nil, fmt.Errorf("reading account copy hash: %w", err)
	}
	if err := s.verify(commitreveal.FromDigest(digest), payload, rec); err != nil {
		return nil, err
	}

	returned := rec.Licenses.Difference(retained)
	rec.Licenses = retained
	if err := licenses.SaveAllocated(stub, adminPart, rec); err != nil {
		return nil, fmt.Errorf("saving allocation: %w", err)
	}

	o.Amount -= returned.Len()
	if err := order.Save(stub, o); err != nil {
		return nil, err
	}

	a, err := asset.Load(ctx, stub, o.AssetID)
	if err != nil {
		return nil, err
	}
	a.AvailableLicenses.Add(returned.Sorted()...)
	if err := asset.Save(stub, a); err != nil {
		return nil, fmt.Errorf("saving asset: %w", err)
	}

	if err := emit(stub, EventDeallocated, rec, returned.Len()); err != nil {
		return nil, err
	}
	s.logger.Debug("licenses deallocated", "order_id", o.ID, "account", o.Account, "returned", returned.Len())
	return &DeallocateResult{
		OrderID:  o.ID,
		AssetID:  o.AssetID,
		Account:  o.Account,
		Returned: returned.Sorted(),
		Retained: retained.Sorted(),
		Amount:   o.Amount,
	}, nil
}

func (s *Service) verify(c commitreveal.Commitment, payload []byte, rec *licenses.Allocated) error {
	err := c.Verify(payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, commitreveal.ErrNoCommitment):
		return errs.IntegrityMismatch("no allocation record is committed for order %s of %s", rec.OrderID, rec.Account)
	default:
		s.logger.Warn("allocation integrity mismatch", "order_id", rec.OrderID, "account", rec.Account, "commitment", c.String())
		return errs.IntegrityMismatch("licenses for order %s of %s do not match the committed record", rec.OrderID, rec.Account)
	}
}
