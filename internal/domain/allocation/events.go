package allocation

import (
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/ledger"
)

const (
	EventAllocated   = "LicensesAllocated"
	EventSent        = "LicensesSent"
	EventReturned    = "LicensesReturned"
	EventDeallocated = "LicensesDeallocated"
)

type licensesEvent struct {
	OrderID    string `json:"order_id"`
	AssetID    string `json:"asset_id"`
	Account    string `json:"account"`
	Expiration string `json:"expiration,omitempty"`
	Count      int    `json:"count"`
}

func emit(stub ledger.Stub, name string, rec *licenses.Allocated, count int) error {
	return ledger.SetJSONEvent(stub, name, licensesEvent{
		OrderID:    rec.OrderID,
		AssetID:    rec.AssetID,
		Account:    rec.Account,
		Expiration: rec.Expiration,
		Count:      count,
	})
}
