package asset

import (
	"context"

	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// KeyPrefix starts every asset key.
const KeyPrefix = "asset:"

// Key is the storage key of an asset.
func Key(id string) string {
	return KeyPrefix + id
}

// Load reads an asset from the administrator partition.
func Load(ctx context.Context, stub ledger.Stub, id string) (*Asset, error) {
	if id == "" {
		return nil, errs.InvalidArgument("asset id is required")
	}
	var a Asset
	found, err := ledger.GetJSON(ctx, stub, ledger.AdminPartition(stub), Key(id), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.NotFound("asset %s does not exist", id)
	}
	if a.AvailableLicenses == nil {
		a.AvailableLicenses = licenses.NewSet()
	}
	return &a, nil
}

// Save stages the asset in the administrator partition.
func Save(stub ledger.Stub, a *Asset) error {
	return ledger.PutJSON(stub, ledger.AdminPartition(stub), Key(a.ID), a)
}
