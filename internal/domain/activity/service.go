package activity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rpggio/blossom/internal/ledger"
)

const maxListLimit = 500

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry == nil || entry.TxID == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// LogTransaction records a committed transaction receipt.
func (s *Service) LogTransaction(ctx context.Context, r ledger.Receipt) error {
	entry := &ActivityEntry{
		TxID:      r.TxID,
		Operation: r.Operation,
		Caller:    r.Caller.MSPID,
		Summary:   fmt.Sprintf("%s committed %d writes", r.Operation, r.Writes),
		CreatedAt: r.Timestamp,
	}
	if r.Event != nil {
		entry.Event = r.Event.Name
	}
	return s.LogActivity(ctx, entry)
}

// GetRecentActivity lists activity entries with filtering, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListActivityOptions) ([]ActivityEntry, error) {
	if opts.Limit <= 0 || opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	return s.repo.List(ctx, opts)
}
