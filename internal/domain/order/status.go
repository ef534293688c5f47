package order

import (
	"encoding/json"
	"fmt"

	"github.com/rpggio/blossom/internal/errs"
)

// Status is the lifecycle stage of an order. The set of values is closed;
// decoding an unknown value fails.
type Status string

const (
	StatusQuoteRequested        Status = "QUOTE_REQUESTED"
	StatusQuoteReceived         Status = "QUOTE_RECEIVED"
	StatusInitiated             Status = "INITIATED"
	StatusApproved              Status = "APPROVED"
	StatusDenied                Status = "DENIED"
	StatusAllocated             Status = "ALLOCATED"
	StatusRenewalQuoteRequested Status = "RENEWAL_QUOTE_REQUESTED"
	StatusRenewalQuoteReceived  Status = "RENEWAL_QUOTE_RECEIVED"
	StatusRenewalInitiated      Status = "RENEWAL_INITIATED"
	StatusRenewalApproved       Status = "RENEWAL_APPROVED"
	StatusRenewalDenied         Status = "RENEWAL_DENIED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusQuoteRequested,
	StatusQuoteReceived,
	StatusInitiated,
	StatusApproved,
	StatusDenied,
	StatusAllocated,
	StatusRenewalQuoteRequested,
	StatusRenewalQuoteReceived,
	StatusRenewalInitiated,
	StatusRenewalApproved,
	StatusRenewalDenied,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsRenewal reports whether s belongs to the renewal branch.
func (s Status) IsRenewal() bool {
	switch s {
	case StatusRenewalQuoteRequested, StatusRenewalQuoteReceived, StatusRenewalInitiated,
		StatusRenewalApproved, StatusRenewalDenied:
		return true
	}
	return false
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !Status(raw).Valid() {
		return fmt.Errorf("unknown order status %q", raw)
	}
	*s = Status(raw)
	return nil
}

// Action is an operation that moves an existing order between statuses.
type Action string

const (
	ActionRequestQuote  Action = "RequestQuote"
	ActionSendQuote     Action = "SendQuote"
	ActionInitiateOrder Action = "InitiateOrder"
	ActionApprove       Action = "ApproveOrder"
	ActionDeny          Action = "DenyOrder"
	ActionAllocate      Action = "AllocateLicenses"
)

type edge struct {
	from   Status
	action Action
}

// transitions is the complete table of legal moves for existing orders.
// Creation (RequestQuote/InitiateOrder without an order id) and deletion are
// handled by the service.
// ALLOCATED has no Deny edge: the order holds licenses, which only
// Deallocate can return to inventory.
var transitions = map[edge]Status{
	{StatusAllocated, ActionRequestQuote}: StatusRenewalQuoteRequested,

	{StatusQuoteRequested, ActionSendQuote}:        StatusQuoteReceived,
	{StatusRenewalQuoteRequested, ActionSendQuote}: StatusRenewalQuoteReceived,

	{StatusRenewalQuoteReceived, ActionInitiateOrder}:  StatusRenewalInitiated,
	{StatusRenewalQuoteRequested, ActionInitiateOrder}: StatusRenewalInitiated,

	{StatusInitiated, ActionApprove}:        StatusApproved,
	{StatusRenewalInitiated, ActionApprove}: StatusRenewalApproved,

	{StatusQuoteRequested, ActionDeny}:        StatusDenied,
	{StatusQuoteReceived, ActionDeny}:         StatusDenied,
	{StatusInitiated, ActionDeny}:             StatusDenied,
	{StatusApproved, ActionDeny}:              StatusDenied,
	{StatusRenewalQuoteRequested, ActionDeny}: StatusRenewalDenied,
	{StatusRenewalQuoteReceived, ActionDeny}:  StatusRenewalDenied,
	{StatusRenewalInitiated, ActionDeny}:      StatusRenewalDenied,
	{StatusRenewalApproved, ActionDeny}:       StatusRenewalDenied,

	{StatusApproved, ActionAllocate}:        StatusAllocated,
	{StatusRenewalApproved, ActionAllocate}: StatusAllocated,
}

// Next returns the status reached by applying action to an order in from,
// or an InvalidState error when the move is not in the table.
func Next(from Status, action Action) (Status, error) {
	to, ok := transitions[edge{from, action}]
	if !ok {
		return "", errs.InvalidState("%s is not allowed for an order in status %s", action, from)
	}
	return to, nil
}

// Allowed reports whether action may be applied in from.
func Allowed(from Status, action Action) bool {
	_, ok := transitions[edge{from, action}]
	return ok
}
