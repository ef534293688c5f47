// Package authz decides whether a caller may perform an operation and
// whether an account may transact at all.
package authz

import (
	"context"
	"fmt"

	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// Operation names an invocable ledger operation.
type Operation string

const (
	OpCreateAsset                   Operation = "CreateAsset"
	OpAddLicenses                   Operation = "AddLicenses"
	OpRemoveLicenses                Operation = "RemoveLicenses"
	OpUpdateEndDate                 Operation = "UpdateEndDate"
	OpRemoveAsset                   Operation = "RemoveAsset"
	OpListAssets                    Operation = "ListAssets"
	OpGetAssetDetail                Operation = "GetAssetDetail"
	OpGetAssetHistory               Operation = "GetAssetHistory"
	OpRequestQuote                  Operation = "RequestQuote"
	OpSendQuote                     Operation = "SendQuote"
	OpInitiateOrder                 Operation = "InitiateOrder"
	OpApproveOrder                  Operation = "ApproveOrder"
	OpDenyOrder                     Operation = "DenyOrder"
	OpAllocateLicenses              Operation = "AllocateLicenses"
	OpSendLicenses                  Operation = "SendLicenses"
	OpDeleteOrder                   Operation = "DeleteOrder"
	OpReturnLicenses                Operation = "ReturnLicenses"
	OpDeallocateLicenses            Operation = "DeallocateLicenses"
	OpGetOrder                      Operation = "GetOrder"
	OpListOrdersForAccount          Operation = "ListOrdersForAccount"
	OpListOrdersForAsset            Operation = "ListOrdersForAsset"
	OpListAllocatedLicensesForAsset Operation = "ListAllocatedLicensesForAsset"
	OpListOrdersWithExpiredLicenses Operation = "ListOrdersWithExpiredLicenses"
	OpListActivity                  Operation = "ListActivity"
)

// Authorizer answers "may this caller perform op on target".
type Authorizer interface {
	CanPerform(ctx context.Context, caller ledger.Identity, op Operation, target string) (bool, error)
}

// AccountDirectory answers "is this account allowed to transact".
type AccountDirectory interface {
	IsAuthorized(ctx context.Context, account string) (bool, error)
}

// Require returns an Unauthorized error unless the stub's caller may
// perform op on target.
func Require(ctx context.Context, a Authorizer, stub ledger.Stub, op Operation, target string) error {
	caller := stub.Caller()
	ok, err := a.CanPerform(ctx, caller, op, target)
	if err != nil {
		return fmt.Errorf("authorizing %s: %w", op, err)
	}
	if !ok {
		if target == "" {
			return errs.Unauthorized("%s may not perform %s", caller.MSPID, op)
		}
		return errs.Unauthorized("%s may not perform %s on %s", caller.MSPID, op, target)
	}
	return nil
}

// RequireAccount returns an Unauthorized error unless account may transact.
func RequireAccount(ctx context.Context, d AccountDirectory, account string) error {
	ok, err := d.IsAuthorized(ctx, account)
	if err != nil {
		return fmt.Errorf("checking account %s: %w", account, err)
	}
	if !ok {
		return errs.Unauthorized("account %s is not authorized to transact", account)
	}
	return nil
}

// Fixed is an Authorizer and AccountDirectory returning a constant verdict.
type Fixed bool

func (f Fixed) CanPerform(context.Context, ledger.Identity, Operation, string) (bool, error) {
	return bool(f), nil
}

func (f Fixed) IsAuthorized(context.Context, string) (bool, error) {
	return bool(f), nil
}
