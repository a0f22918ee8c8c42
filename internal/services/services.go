// Package services orchestrates ledger operations on top of the storage
// ports and the event publisher.
package services

import (
	"sync"

	"saldo/internal/ledger"
)

type Services struct {
	Transactions *TransactionService
	Import       *ImportService
}

// New wires both services around one write lock so that an import and a
// single create never race on category creation in this process.
func New(store ledger.Store, publisher EventPublisher, defaultCategory string) *Services {
	mu := &sync.Mutex{}
	return &Services{
		Transactions: newTransactionService(store, publisher, defaultCategory, mu),
		Import:       newImportService(store, publisher, defaultCategory, mu),
	}
}
