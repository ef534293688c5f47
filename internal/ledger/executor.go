package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/blossom/internal/repository"
)

// EventPublisher receives the event of each committed transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxID      string
	Operation string
	Caller    Identity
	Timestamp time.Time
	Writes    int
	Event     *Event
}

// TxLogger records committed transactions.
type TxLogger interface {
	LogTransaction(ctx context.Context, receipt Receipt) error
}

// Func is the body of one transaction.
type Func func(ctx context.Context, stub Stub) (any, error)

// Executor runs operations as transactions against a world state.
type Executor struct {
	state    repository.WorldState
	adminMSP string
	clock    func() time.Time
	newTxID  func() string
	events   EventPublisher
	txLog    TxLogger
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the transaction timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithTxIDs overrides the transaction id source.
func WithTxIDs(next func() string) Option {
	return func(e *Executor) { e.newTxID = next }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(e *Executor) { e.events = p }
}

func WithTxLogger(l TxLogger) Option {
	return func(e *Executor) { e.txLog = l }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor whose administrator is adminMSP.
func NewExecutor(state repository.WorldState, adminMSP string, opts ...Option) *Executor {
	e := &Executor{
		state:    state,
		adminMSP: adminMSP,
		clock:    time.Now,
		newTxID:  uuid.NewString,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AdminMSP returns the administrator organization.
func (e *Executor) AdminMSP() string {
	return e.adminMSP
}

// Submit executes fn and commits its writes. Any error from fn discards them;
// a stale read at commit returns ErrMVCCConflict.
func (e *Executor) Submit(ctx context.Context, caller Identity, operation string, fn Func) (any, error) {
	t := newTx(e.state, e.newTxID(), e.clock(), caller, e.adminMSP)

	result, err := fn(ctx, t)
	if err != nil {
		e.logger.Debug("transaction rejected", "tx_id", t.id, "operation", operation, "caller", caller.MSPID, "error", err)
		return nil, err
	}

	batch := t.batch()
	if err := e.state.Commit(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			e.logger.Info("transaction invalidated", "tx_id", t.id, "operation", operation, "caller", caller.MSPID)
			return nil, ErrMVCCConflict
		}
		return nil, fmt.Errorf("committing transaction %s: %w", t.id, err)
	}
	e.logger.Debug("transaction committed", "tx_id", t.id, "operation", operation, "caller", caller.MSPID, "writes", len(batch.Writes))

	receipt := Receipt{
		TxID:      t.id,
		Operation: operation,
		Caller:    caller,
		Timestamp: t.timestamp,
		Writes:    len(batch.Writes),
		Event:     t.event,
	}
	if t.event != nil && e.events != nil {
		if err := e.events.Publish(ctx, *t.event); err != nil {
			e.logger.Warn("event publish failed", "tx_id", t.id, "event", t.event.Name, "error", err)
		}
	}
	if e.txLog != nil {
		if err := e.txLog.LogTransaction(ctx, receipt); err != nil {
			e.logger.Warn("activity log failed", "tx_id", t.id, "error", err)
		}
	}
	return result, nil
}

// Evaluate executes fn without committing. Writes are discarded.
func (e *Executor) Evaluate(ctx context.Context, caller Identity, operation string, fn Func) (any, error) {
	t := newTx(e.state, e.newTxID(), e.clock(), caller, e.adminMSP)
	result, err := fn(ctx, t)
	if err != nil {
		e.logger.Debug("query rejected", "tx_id", t.id, "operation", operation, "caller", caller.MSPID, "error", err)
		return nil, err
	}
	return result, nil
}
