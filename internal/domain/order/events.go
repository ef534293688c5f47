package order

import "github.com/rpggio/blossom/internal/ledger"

// EventUpdated is emitted by every order mutation.
const EventUpdated = "OrderUpdated"

type updatedEvent struct {
	OrderID string `json:"order_id"`
	Account string `json:"account"`
	Status  Status `json:"status,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func emit(stub ledger.Stub, o *Order) error {
	return ledger.SetJSONEvent(stub, EventUpdated, updatedEvent{OrderID: o.ID, Account: o.Account, Status: o.Status})
}

func emitDeleted(stub ledger.Stub, o *Order) error {
	return ledger.SetJSONEvent(stub, EventUpdated, updatedEvent{OrderID: o.ID, Account: o.Account, Deleted: true})
}
