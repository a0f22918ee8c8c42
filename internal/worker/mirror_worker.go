package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/sheets"
)

// MirrorWorker keeps a spreadsheet in step with the ledger by applying
// ledger events as they arrive.
type MirrorWorker struct {
	store  ledger.TransactionStore
	mirror sheets.Mirror
}

func NewMirrorWorker(store ledger.TransactionStore, mirror sheets.Mirror) *MirrorWorker {
	return &MirrorWorker{store: store, mirror: mirror}
}

// HandleEvent applies one ledger event. A returned error makes the
// consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", event.Type,
		"transactions", len(event.TransactionIDs))

	switch event.Type {
	case amqp.EventTransactionCreated, amqp.EventTransactionsImported:
		for _, id := range event.TransactionIDs {
			if err := w.mirrorTransaction(ctx, id); err != nil {
				return err
			}
		}
	case amqp.EventTransactionDeleted:
		for _, id := range event.TransactionIDs {
			if err := w.mirror.DeleteTransaction(ctx, id); err != nil {
				return fmt.Errorf("delete %s from sheet: %w", id, err)
			}
		}
	default:
		slog.WarnContext(ctx, "Ignoring unknown event type", "type", event.Type)
	}
	return nil
}

func (w *MirrorWorker) mirrorTransaction(ctx context.Context, id string) error {
	tx, err := w.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrTransactionNotFound) {
		// deleted before we got to it; the delete event handles the sheet
		slog.InfoContext(ctx, "Transaction no longer exists, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, err)
	}
	if err := w.mirror.AppendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("append %s to sheet: %w", id, err)
	}
	return nil
}

// StartupSync mirrors every stored transaction. It recovers events lost
// while the worker was down; rows already in the sheet are left alone.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	all, err := w.store.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list transactions for startup sync: %w", err)
	}

	var synced, failed int
	for _, tx := range all {
		if err := w.mirror.AppendTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction during startup",
				"id", tx.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(all),
		"synced", synced,
		"errors", failed)
	return nil
}
