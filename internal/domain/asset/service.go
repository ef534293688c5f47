package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/dates"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// Service handles asset inventory operations.
type Service struct {
	authz  authz.Authorizer
	logger *slog.Logger
}

// NewService creates a new asset service.
func NewService(a authz.Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{authz: a, logger: logger}
}

// CreateRequest defines asset creation inputs.
type CreateRequest struct {
	Name     string   `json:"name"`
	EndDate  string   `json:"end_date"`
	Licenses []string `json:"licenses"`
}

// Create registers a new asset whose id is the transaction id.
func (s *Service) Create(ctx context.Context, stub ledger.Stub, req CreateRequest) (*Asset, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpCreateAsset, ""); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errs.InvalidArgument("asset name is required")
	}
	if err := dates.Validate(req.EndDate); err != nil {
		return nil, err
	}
	if err := validateIDs(req.Licenses, true); err != nil {
		return nil, err
	}

	a := &Asset{
		ID:                stub.TxID(),
		Name:              req.Name,
		StartDate:         dates.Format(stub.TxTimestamp()),
		EndDate:           req.EndDate,
		AvailableLicenses: licenses.NewSet(req.Licenses...),
	}
	if err := Save(stub, a); err != nil {
		return nil, fmt.Errorf("saving asset: %w", err)
	}
	if err := emit(stub, a, "created"); err != nil {
		return nil, err
	}
	s.logger.Debug("asset created", "asset_id", a.ID, "licenses", a.AvailableLicenses.Len())
	return a, nil
}

// AddLicenses adds ids to the available pool. Nothing is added if any id
// already exists in the pool or in an allocation record of the asset.
func (s *Service) AddLicenses(ctx context.Context, stub ledger.Stub, assetID string, ids []string) (*Asset, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpAddLicenses, assetID); err != nil {
		return nil, err
	}
	if err := validateIDs(ids, false); err != nil {
		return nil, err
	}
	a, err := Load(ctx, stub, assetID)
	if err != nil {
		return nil, err
	}
	holders, err := licenses.Holders(ctx, stub, ledger.AdminPartition(stub), assetID)
	if err != nil {
		return nil, fmt.Errorf("scanning allocations: %w", err)
	}

	for _, id := range ids {
		if a.AvailableLicenses.Has(id) {
			return nil, errs.Conflict("license %s already exists for asset %s", id, assetID)
		}
		if rec, ok := holders[id]; ok {
			return nil, errs.Conflict("license %s of asset %s is already allocated to %s", id, assetID, rec.Account)
		}
	}

	a.AvailableLicenses.Add(ids...)
	if err := Save(stub, a); err != nil {
		return nil, fmt.Errorf("saving asset: %w", err)
	}
	if err := emit(stub, a, "licenses_added"); err != nil {
		return nil, err
	}
	s.logger.Debug("licenses added", "asset_id", assetID, "count", len(ids))
	return a, nil
}

// RemoveLicenses removes ids from the available pool. Allocated ids are
// refused naming the holding account.
func (s *Service) RemoveLicenses(ctx context.Context, stub ledger.Stub, assetID string, ids []string) (*Asset, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpRemoveLicenses, assetID); err != nil {
		return nil, err
	}
	if err := validateIDs(ids, false); err != nil {
		return nil, err
	}
	a, err := Load(ctx, stub, assetID)
	if err != nil {
		return nil, err
	}
	holders, err := licenses.Holders(ctx, stub, ledger.AdminPartition(stub), assetID)
	if err != nil {
		return nil, fmt.Errorf("scanning allocations: %w", err)
	}

	for _, id := range ids {
		if rec, ok := holders[id]; ok {
			return nil, errs.Conflict("license %s of asset %s is allocated to %s", id, assetID, rec.Account)
		}
		if !a.AvailableLicenses.Has(id) {
			return nil, errs.NotFound("license %s does not exist for asset %s", id, assetID)
		}
	}

	a.AvailableLicenses.Remove(ids...)
	if err := Save(stub, a); err != nil {
		return nil, fmt.Errorf("saving asset: %w", err)
	}
	if err := emit(stub, a, "licenses_removed"); err != nil {
		return nil, err
	}
	s.logger.Debug("licenses removed", "asset_id", assetID, "count", len(ids))
	return a, nil
}

// UpdateEndDate replaces the contract end date.
func (s *Service) UpdateEndDate(ctx context.Context, stub ledger.Stub, assetID, endDate string) (*Asset, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpUpdateEndDate, assetID); err != nil {
		return nil, err
	}
	if err := dates.Validate(endDate); err != nil {
		return nil, err
	}
	a, err := Load(ctx, stub, assetID)
	if err != nil {
		return nil, err
	}
	a.EndDate = endDate
	if err := Save(stub, a); err != nil {
		return nil, fmt.Errorf("saving asset: %w", err)
	}
	if err := emit(stub, a, "end_date_updated"); err != nil {
		return nil, err
	}
	return a, nil
}

// Remove deletes an asset that has no licenses allocated.
func (s *Service) Remove(ctx context.Context, stub ledger.Stub, assetID string) error {
	if err := authz.Require(ctx, s.authz, stub, authz.OpRemoveAsset, assetID); err != nil {
		return err
	}
	a, err := Load(ctx, stub, assetID)
	if err != nil {
		return err
	}

	err = licenses.ScanAllocated(ctx, stub, ledger.AdminPartition(stub), assetID, func(rec *licenses.Allocated) error {
		if rec.Licenses.Len() > 0 {
			return errs.Conflict("asset %s has %d licenses allocated to %s for order %s",
				assetID, rec.Licenses.Len(), rec.Account, rec.OrderID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := stub.DelPrivateData(ledger.AdminPartition(stub), Key(assetID)); err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}
	if err := emit(stub, a, "removed"); err != nil {
		return err
	}
	s.logger.Debug("asset removed", "asset_id", assetID)
	return nil
}

// List returns a lazy, key-ordered sequence of asset summaries. The sequence
// can be ranged over once.
func (s *Service) List(ctx context.Context, stub ledger.Stub) (iter.Seq2[AssetSummary, error], error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpListAssets, ""); err != nil {
		return nil, err
	}
	it, err := stub.GetPrivateDataByRange(ctx, ledger.AdminPartition(stub), KeyPrefix, ledger.RangeEnd(KeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("scanning assets: %w", err)
	}

	return func(yield func(AssetSummary, error) bool) {
		defer it.Close()
		for it.HasNext() {
			kv, err := it.Next()
			if err != nil {
				yield(AssetSummary{}, err)
				return
			}
			var a Asset
			if err := json.Unmarshal(kv.Value, &a); err != nil {
				yield(AssetSummary{}, fmt.Errorf("decoding %s: %w", kv.Key, err))
				return
			}
			if !yield(a.Summary(), nil) {
				return
			}
		}
	}, nil
}

// Detail returns the asset with its allocation breakdown. Members only see
// their own allocations.
func (s *Service) Detail(ctx context.Context, stub ledger.Stub, assetID string) (*AssetDetail, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpGetAssetDetail, assetID); err != nil {
		return nil, err
	}
	a, err := Load(ctx, stub, assetID)
	if err != nil {
		return nil, err
	}

	detail := &AssetDetail{
		AssetSummary:      a.Summary(),
		AvailableLicenses: a.AvailableLicenses.Sorted(),
		AllocatedLicenses: make(map[string]map[string][]LicenseWithExpiration),
	}
	numAllocated := 0
	isAdmin := ledger.CallerIsAdmin(stub)
	caller := stub.Caller().MSPID

	err = licenses.ScanAllocated(ctx, stub, ledger.AdminPartition(stub), assetID, func(rec *licenses.Allocated) error {
		numAllocated += rec.Licenses.Len()
		if rec.Licenses.Len() == 0 || (!isAdmin && rec.Account != caller) {
			return nil
		}
		byOrder, ok := detail.AllocatedLicenses[rec.Account]
		if !ok {
			byOrder = make(map[string][]LicenseWithExpiration)
			detail.AllocatedLicenses[rec.Account] = byOrder
		}
		for _, id := range rec.Licenses.Sorted() {
			byOrder[rec.OrderID] = append(byOrder[rec.OrderID], LicenseWithExpiration{LicenseID: id, Expiration: rec.Expiration})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning allocations: %w", err)
	}
	detail.TotalLicenses = a.AvailableLicenses.Len() + numAllocated
	return detail, nil
}

// History lists committed changes to an asset record, oldest first.
func (s *Service) History(ctx context.Context, stub ledger.Stub, assetID string) ([]HistoryEntry, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpGetAssetHistory, assetID); err != nil {
		return nil, err
	}
	if assetID == "" {
		return nil, errs.InvalidArgument("asset id is required")
	}
	mods, err := stub.GetHistoryForKey(ctx, ledger.AdminPartition(stub), Key(assetID))
	if err != nil {
		return nil, fmt.Errorf("loading asset history: %w", err)
	}
	if len(mods) == 0 {
		return nil, errs.NotFound("asset %s has no history", assetID)
	}

	out := make([]HistoryEntry, 0, len(mods))
	for _, mod := range mods {
		entry := HistoryEntry{TxID: mod.TxID, Timestamp: mod.Timestamp, IsDelete: mod.IsDelete}
		if !mod.IsDelete {
			var a Asset
			if err := json.Unmarshal(mod.Value, &a); err != nil {
				return nil, fmt.Errorf("decoding asset at %s: %w", mod.TxID, err)
			}
			entry.Asset = &a
		}
		out = append(out, entry)
	}
	return out, nil
}

func validateIDs(ids []string, allowEmpty bool) error {
	if len(ids) == 0 && !allowEmpty {
		return errs.InvalidArgument("at least one license id is required")
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return errs.InvalidArgument("license ids must not be empty")
		}
	}
	return nil
}
