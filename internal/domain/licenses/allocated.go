package licenses

import (
	"context"
	"fmt"

	"github.com/rpggio/blossom/internal/ledger"
)

// AllocatedPrefix starts every allocation record key.
const AllocatedPrefix = "allocated:"

// AllocatedKey is the key of an allocation record in any partition.
func AllocatedKey(assetID, orderID string) string {
	return AllocatedPrefix + assetID + ":" + orderID
}

// AssetAllocationsPrefix covers every allocation record of an asset.
func AssetAllocationsPrefix(assetID string) string {
	return AllocatedPrefix + assetID + ":"
}

// Allocated records which license ids an account holds for an order. The
// administrator and the holding account each keep a copy under the same key.
type Allocated struct {
	OrderID    string `json:"order_id"`
	AssetID    string `json:"asset_id"`
	Account    string `json:"account"`
	Expiration string `json:"expiration"`
	Licenses   Set    `json:"licenses"`
}

// Key returns the record's storage key.
func (a *Allocated) Key() string {
	return AllocatedKey(a.AssetID, a.OrderID)
}

// Canonical returns the bytes stored for the record, which are also the
// bytes both partitions' hashes are computed over.
func (a *Allocated) Canonical() ([]byte, error) {
	if a.Licenses == nil {
		a.Licenses = NewSet()
	}
	return ledger.Marshal(a)
}

// LoadAllocated reads an allocation record from partition.
func LoadAllocated(ctx context.Context, stub ledger.Stub, partition, assetID, orderID string) (*Allocated, bool, error) {
	var rec Allocated
	found, err := ledger.GetJSON(ctx, stub, partition, AllocatedKey(assetID, orderID), &rec)
	if err != nil || !found {
		return nil, found, err
	}
	if rec.Licenses == nil {
		rec.Licenses = NewSet()
	}
	return &rec, true, nil
}

// SaveAllocated stages the canonical bytes of rec in partition.
func SaveAllocated(stub ledger.Stub, partition string, rec *Allocated) error {
	data, err := rec.Canonical()
	if err != nil {
		return err
	}
	return stub.PutPrivateData(partition, rec.Key(), data)
}

// ScanAllocated calls fn for every allocation record of assetID in partition,
// in order id order. An empty assetID scans every asset.
func ScanAllocated(ctx context.Context, stub ledger.Stub, partition, assetID string, fn func(rec *Allocated) error) error {
	prefix := AllocatedPrefix
	if assetID != "" {
		prefix = AssetAllocationsPrefix(assetID)
	}
	return ledger.ScanJSON(ctx, stub, partition, prefix, ledger.RangeEnd(prefix), func(key string, rec Allocated) error {
		if rec.Licenses == nil {
			rec.Licenses = NewSet()
		}
		if err := fn(&rec); err != nil {
			return fmt.Errorf("visiting %s: %w", key, err)
		}
		return nil
	})
}

// Holders maps each allocated license id of assetID to the record holding it.
func Holders(ctx context.Context, stub ledger.Stub, partition, assetID string) (map[string]*Allocated, error) {
	holders := make(map[string]*Allocated)
	err := ScanAllocated(ctx, stub, partition, assetID, func(rec *Allocated) error {
		for id := range rec.Licenses {
			holders[id] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holders, nil
}
