// Package ledger declares the storage ports the services depend on.
package ledger

import (
	"context"

	"saldo/internal/core"
)

// Ports for outbound adapters.
type (
	CategoryStore interface {
		// FindCategoryByTitle returns the category with exactly that title.
		FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error)
		// FindCategoriesByTitles returns the existing subset of titles in one round-trip.
		FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error)
		// CreateCategory fails with core.ErrCategoryExists when the title is taken.
		CreateCategory(ctx context.Context, title string) (core.Category, error)
		// CreateCategories creates all titles in one call, or none.
		CreateCategories(ctx context.Context, titles []string) ([]core.Category, error)
	}

	TransactionStore interface {
		InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// InsertTransactions persists all records in one call, or none.
		InsertTransactions(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// DeleteTransaction returns core.ErrTransactionNotFound when id is unknown.
		DeleteTransaction(ctx context.Context, id string) error
	}

	// Store is what a backend provides.
	Store interface {
		CategoryStore
		TransactionStore
	}
)

// Balance computes the current balance from every stored transaction.
func Balance(ctx context.Context, txs TransactionStore) (core.Balance, error) {
	all, err := txs.ListTransactions(ctx)
	if err != nil {
		return core.Balance{}, err
	}
	return core.CalculateBalance(all)
}
