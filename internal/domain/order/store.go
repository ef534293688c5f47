package order

import (
	"context"
	"fmt"

	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// KeyPrefix starts every order key.
const KeyPrefix = "order:"

// Key is the storage key of an order.
func Key(account, id string) string {
	return KeyPrefix + account + ":" + id
}

// AccountPrefix covers every order of account.
func AccountPrefix(account string) string {
	return KeyPrefix + account + ":"
}

// Load reads an order from the administrator partition.
func Load(ctx context.Context, stub ledger.Stub, account, id string) (*Order, error) {
	if id == "" {
		return nil, errs.InvalidArgument("order id is required")
	}
	if account == "" {
		return nil, errs.InvalidArgument("account is required")
	}
	var o Order
	found, err := ledger.GetJSON(ctx, stub, ledger.AdminPartition(stub), Key(account, id), &o)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.NotFound("order %s does not exist for account %s", id, account)
	}
	return &o, nil
}

// Save stages the order in the administrator partition.
func Save(stub ledger.Stub, o *Order) error {
	if err := ledger.PutJSON(stub, ledger.AdminPartition(stub), Key(o.Account, o.ID), o); err != nil {
		return fmt.Errorf("saving order: %w", err)
	}
	return nil
}

// Scan calls fn for every order of account in id order. An empty account
// scans all orders.
func Scan(ctx context.Context, stub ledger.Stub, account string, fn func(*Order) error) error {
	prefix := KeyPrefix
	if account != "" {
		prefix = AccountPrefix(account)
	}
	return ledger.ScanJSON(ctx, stub, ledger.AdminPartition(stub), prefix, ledger.RangeEnd(prefix), func(_ string, o Order) error {
		return fn(&o)
	})
}
