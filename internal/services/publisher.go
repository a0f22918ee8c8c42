package services

import (
	"context"
	"log/slog"

	"saldo/internal/amqp"
)

// EventPublisher announces ledger changes to other processes.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// publish is best-effort: the ledger is already written when it runs.
func publish(ctx context.Context, p EventPublisher, t amqp.EventType, ids ...string) {
	if p == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping event", "type", t)
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := p.PublishEvent(ctx, amqp.NewLedgerEvent(t, ids...)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", t, "transactions", len(ids), "error", err)
	}
}
