package sheets

import (
	"context"

	"saldo/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps a spreadsheet copy of the ledger. Both operations are
	// idempotent so that redelivered events are harmless.
	Mirror interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}
)
