package asset

import "github.com/rpggio/blossom/internal/ledger"

// EventUpdated is emitted by every asset mutation.
const EventUpdated = "AssetUpdated"

type updatedEvent struct {
	AssetID      string `json:"asset_id"`
	Action       string `json:"action"`
	NumAvailable int    `json:"num_available"`
}

func emit(stub ledger.Stub, a *Asset, action string) error {
	return ledger.SetJSONEvent(stub, EventUpdated, updatedEvent{
		AssetID:      a.ID,
		Action:       action,
		NumAvailable: a.AvailableLicenses.Len(),
	})
}
