package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
)

const DefaultCategory = "Uncategorized"

// Ledger is the caller-facing view: every transaction plus the derived balance.
type Ledger struct {
	Transactions []core.Transaction
	Balance      core.Balance
}

// TransactionService creates, deletes and lists single transactions.
type TransactionService struct {
	store           ledger.Store
	publisher       EventPublisher
	defaultCategory string

	// serializes balance check and insert within this process
	mu *sync.Mutex
}

func NewTransactionService(store ledger.Store, publisher EventPublisher, defaultCategory string) *TransactionService {
	return newTransactionService(store, publisher, defaultCategory, &sync.Mutex{})
}

func newTransactionService(store ledger.Store, publisher EventPublisher, defaultCategory string, mu *sync.Mutex) *TransactionService {
	if strings.TrimSpace(defaultCategory) == "" {
		defaultCategory = DefaultCategory
	}
	return &TransactionService{
		store:           store,
		publisher:       publisher,
		defaultCategory: defaultCategory,
		mu:              mu,
	}
}

// Create validates the input, refuses outcomes that would overdraw the
// balance, resolves (or creates) the category and stores the transaction.
// A rejected outcome leaves both stores untouched.
func (s *TransactionService) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	tx, err := s.create(ctx, in)
	s.mu.Unlock()
	if err != nil {
		return core.Transaction{}, err
	}

	applog.NewStructuredLogger(applog.FromContext(ctx).WithComponent(applog.ComponentLedger)).
		LogTransactionCreated(ctx, tx.ID, tx.Title, tx.Type.String(), tx.Value.Cents, tx.Category.Title)

	publish(ctx, s.publisher, amqp.EventTransactionCreated, tx.ID)
	return tx, nil
}

func (s *TransactionService) create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	balance, err := ledger.Balance(ctx, s.store)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("compute balance: %w", err)
	}
	if in.Type == core.Outcome && !balance.CanWithdraw(in.Value) {
		applog.FromContext(ctx).WithComponent(applog.ComponentLedger).WarnContext(ctx, "Outcome rejected",
			"value_cents", in.Value.Cents,
			"total_cents", balance.Total.Cents)
		return core.Transaction{}, core.ErrInsufficientFunds
	}
	if _, err := balance.Apply(core.Transaction{Value: in.Value, Type: in.Type}); err != nil {
		return core.Transaction{}, err
	}

	category, err := s.resolveCategory(ctx, in.Category)
	if err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.InsertTransaction(ctx, core.Transaction{
		Title:      in.Title,
		Value:      in.Value,
		Type:       in.Type,
		CategoryID: category.ID,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.Category = &category
	return tx, nil
}

func (s *TransactionService) resolveCategory(ctx context.Context, title string) (core.Category, error) {
	if title == "" {
		title = s.defaultCategory
	}

	c, ok, err := s.store.FindCategoryByTitle(ctx, title)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	if ok {
		return c, nil
	}

	c, err = s.store.CreateCategory(ctx, title)
	if errors.Is(err, core.ErrCategoryExists) {
		// created by another process between lookup and insert
		c, ok, err = s.store.FindCategoryByTitle(ctx, title)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %q", core.ErrCategoryResolution, title)
		}
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// Delete removes a transaction; core.ErrTransactionNotFound when absent.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		if errors.Is(err, core.ErrTransactionNotFound) {
			return err
		}
		return fmt.Errorf("delete transaction: %w", err)
	}

	publish(ctx, s.publisher, amqp.EventTransactionDeleted, id)
	return nil
}

func (s *TransactionService) ListWithBalance(ctx context.Context) (Ledger, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("list transactions: %w", err)
	}
	balance, err := core.CalculateBalance(txs)
	if err != nil {
		return Ledger{}, err
	}
	return Ledger{Transactions: txs, Balance: balance}, nil
}
