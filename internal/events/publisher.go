// Package events fans committed transaction events out to observers.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rpggio/blossom/internal/ledger"
)

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event ledger.Event) error {
	p.logger.InfoContext(ctx, "chaincode event",
		"tx_id", event.TxID,
		"event", event.Name,
		"caller", event.Caller,
		"payload", string(event.Payload),
	)
	return nil
}

// Multi publishes to every publisher and joins their errors.
type Multi []ledger.EventPublisher

func (m Multi) Publish(ctx context.Context, event ledger.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
