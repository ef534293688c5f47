package order

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/dates"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/licenses"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
)

// Service drives orders through their lifecycle.
type Service struct {
	authz    authz.Authorizer
	accounts authz.AccountDirectory
	logger   *slog.Logger
}

// NewService creates a new order service.
func NewService(a authz.Authorizer, accounts authz.AccountDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{authz: a, accounts: accounts, logger: logger}
}

// RequestQuote opens a new order in QUOTE_REQUESTED, or moves an allocated
// order into its renewal branch. The caller is the ordering account.
func (s *Service) RequestQuote(ctx context.Context, stub ledger.Stub, req QuoteRequest) (*Order, error) {
	account := stub.Caller().MSPID
	if err := s.authorizeAccount(ctx, stub, authz.OpRequestQuote, account); err != nil {
		return nil, err
	}
	if req.Amount < 0 || req.Duration < 0 {
		return nil, errs.InvalidArgument("amount and duration must not be negative")
	}

	if req.OrderID != "" {
		o, err := Load(ctx, stub, account, req.OrderID)
		if err != nil {
			return nil, err
		}
		if err := s.transition(o, ActionRequestQuote); err != nil {
			return nil, err
		}
		o.Price = 0
		if req.Duration > 0 {
			o.Duration = req.Duration
		}
		return o, s.persist(stub, o)
	}

	if _, err := asset.Load(ctx, stub, req.AssetID); err != nil {
		return nil, err
	}
	o := &Order{
		ID:       stub.TxID(),
		Account:  account,
		Status:   StatusQuoteRequested,
		AssetID:  req.AssetID,
		Amount:   req.Amount,
		Duration: req.Duration,
	}
	return o, s.persist(stub, o)
}

// SendQuote prices a requested quote.
func (s *Service) SendQuote(ctx context.Context, stub ledger.Stub, req SendQuoteRequest) (*Order, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpSendQuote, req.Account); err != nil {
		return nil, err
	}
	if req.Price < 0 {
		return nil, errs.InvalidArgument("price must not be negative")
	}
	o, err := Load(ctx, stub, req.Account, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(o, ActionSendQuote); err != nil {
		return nil, err
	}
	o.Price = req.Price
	return o, s.persist(stub, o)
}

// InitiateOrder opens a new INITIATED order, or initiates the renewal of a
// quoted order. The caller is the ordering account.
func (s *Service) InitiateOrder(ctx context.Context, stub ledger.Stub, req InitiateRequest) (*Order, error) {
	account := stub.Caller().MSPID
	if err := s.authorizeAccount(ctx, stub, authz.OpInitiateOrder, account); err != nil {
		return nil, err
	}
	if req.Duration <= 0 {
		return nil, errs.InvalidArgument("duration must be positive")
	}

	if req.OrderID != "" {
		o, err := Load(ctx, stub, account, req.OrderID)
		if err != nil {
			return nil, err
		}
		if err := s.transition(o, ActionInitiateOrder); err != nil {
			return nil, err
		}
		o.Duration = req.Duration
		return o, s.persist(stub, o)
	}

	if req.Amount <= 0 {
		return nil, errs.InvalidArgument("amount must be positive")
	}
	if _, err := asset.Load(ctx, stub, req.AssetID); err != nil {
		return nil, err
	}
	o := &Order{
		ID:             stub.TxID(),
		Account:        account,
		Status:         StatusInitiated,
		InitiationDate: dates.Format(stub.TxTimestamp()),
		AssetID:        req.AssetID,
		Amount:         req.Amount,
		Duration:       req.Duration,
	}
	return o, s.persist(stub, o)
}

// Approve moves an initiated order (or renewal) to approved.
func (s *Service) Approve(ctx context.Context, stub ledger.Stub, ref Ref) (*Order, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpApproveOrder, ref.Account); err != nil {
		return nil, err
	}
	o, err := Load(ctx, stub, ref.Account, ref.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(o, ActionApprove); err != nil {
		return nil, err
	}
	o.ApprovalDate = dates.Format(stub.TxTimestamp())
	return o, s.persist(stub, o)
}

// Deny ends the current branch of an order. Renewal denials leave the
// existing allocation in place.
func (s *Service) Deny(ctx context.Context, stub ledger.Stub, ref Ref) (*Order, error) {
	if err := authz.Require(ctx, s.authz, stub, authz.OpDenyOrder, ref.Account); err != nil {
		return nil, err
	}
	o, err := Load(ctx, stub, ref.Account, ref.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(o, ActionDeny); err != nil {
		return nil, err
	}
	return o, s.persist(stub, o)
}

// Delete removes an order whose allocation record is empty or absent,
// together with both copies of that record.
func (s *Service) Delete(ctx context.Context, stub ledger.Stub, ref Ref) error {
	if err := authz.Require(ctx, s.authz, stub, authz.OpDeleteOrder, ref.Account); err != nil {
		return err
	}
	o, err := Load(ctx, stub, ref.Account, ref.OrderID)
	if err != nil {
		return err
	}

	adminPart := ledger.AdminPartition(stub)
	rec, found, err := licenses.LoadAllocated(ctx, stub, adminPart, o.AssetID, o.ID)
	if err != nil {
		return fmt.Errorf("loading allocation: %w", err)
	}
	if found {
		if rec.Licenses.Len() > 0 {
			return errs.Conflict("order %s still holds %d licenses of asset %s", o.ID, rec.Licenses.Len(), o.AssetID)
		}
		if err := stub.DelPrivateData(adminPart, rec.Key()); err != nil {
			return fmt.Errorf("deleting allocation: %w", err)
		}
	}

	memberPart := ledger.OrgPartition(o.Account)
	allocKey := licenses.AllocatedKey(o.AssetID, o.ID)
	hash, err := stub.GetPrivateDataHash(ctx, memberPart, allocKey)
	if err != nil {
		return fmt.Errorf("checking account copy: %w", err)
	}
	if hash != nil {
		if err := stub.DelPrivateData(memberPart, allocKey); err != nil {
			return fmt.Errorf("deleting account copy: %w", err)
		}
	}

	if err := stub.DelPrivateData(adminPart, Key(o.Account, o.ID)); err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}
	if err := emitDeleted(stub, o); err != nil {
		return err
	}
	s.logger.Debug("order deleted", "order_id", o.ID, "account", o.Account)
	return nil
}

// Transition moves o to the status action leads to from its current one.
func Transition(o *Order, action Action) error {
	to, err := Next(o.Status, action)
	if err != nil {
		return errs.InvalidState("order %s: %s", o.ID, errs.MessageOf(err))
	}
	o.Status = to
	return nil
}

func (s *Service) transition(o *Order, action Action) error {
	from := o.Status
	if err := Transition(o, action); err != nil {
		return err
	}
	s.logger.Debug("order transition", "order_id", o.ID, "account", o.Account, "from", from, "to", o.Status)
	return nil
}

func (s *Service) persist(stub ledger.Stub, o *Order) error {
	if err := Save(stub, o); err != nil {
		return err
	}
	return emit(stub, o)
}

func (s *Service) authorizeAccount(ctx context.Context, stub ledger.Stub, op authz.Operation, account string) error {
	if err := authz.Require(ctx, s.authz, stub, op, account); err != nil {
		return err
	}
	return authz.RequireAccount(ctx, s.accounts, account)
}
