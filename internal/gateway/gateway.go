// Package gateway submits transactions on behalf of clients and resubmits
// those the ledger invalidated for a stale read.
package gateway

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rpggio/blossom/internal/ledger"
)

// Runner executes ledger transactions.
type Runner interface {
	Submit(ctx context.Context, caller ledger.Identity, operation string, fn ledger.Func) (any, error)
	Evaluate(ctx context.Context, caller ledger.Identity, operation string, fn ledger.Func) (any, error)
}

// Options bounds resubmission.
type Options struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Gateway is a Runner that retries MVCC conflicts with exponential backoff.
// Every other error is returned on the first attempt.
type Gateway struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

// New wraps runner.
func New(runner Runner, opts Options, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 10 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = time.Second
	}
	return &Gateway{runner: runner, opts: opts, logger: logger}
}

// Submit runs fn as a transaction, resubmitting it while the ledger rejects
// it for a stale read and retries remain.
func (g *Gateway) Submit(ctx context.Context, caller ledger.Identity, operation string, fn ledger.Func) (any, error) {
	var result any
	attempt := 0
	op := func() error {
		attempt++
		out, err := g.runner.Submit(ctx, caller, operation, fn)
		if err == nil {
			result = out
			return nil
		}
		if ledger.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.opts.InitialInterval
	bo.MaxInterval = g.opts.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, g.opts.MaxRetries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		g.logger.Info("resubmitting transaction", "operation", operation, "caller", caller.MSPID, "attempt", attempt, "backoff", next, "error", err)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Evaluate runs a read-only query. Queries are never committed, so they are
// not retried.
func (g *Gateway) Evaluate(ctx context.Context, caller ledger.Identity, operation string, fn ledger.Func) (any, error) {
	return g.runner.Evaluate(ctx, caller, operation, fn)
}
