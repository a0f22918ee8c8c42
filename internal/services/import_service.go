package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/tabular"
)

// Column order of an import row, after the header.
const (
	colTitle = iota
	colType
	colValue
	colCategory
	importColumns
)

// ImportService turns a tabular source into stored transactions.
// Imports are not balance-checked: an imported outcome may drive the
// total negative.
type ImportService struct {
	store           ledger.Store
	publisher       EventPublisher
	defaultCategory string

	mu *sync.Mutex
}

func NewImportService(store ledger.Store, publisher EventPublisher, defaultCategory string) *ImportService {
	return newImportService(store, publisher, defaultCategory, &sync.Mutex{})
}

func newImportService(store ledger.Store, publisher EventPublisher, defaultCategory string, mu *sync.Mutex) *ImportService {
	if strings.TrimSpace(defaultCategory) == "" {
		defaultCategory = DefaultCategory
	}
	return &ImportService{
		store:           store,
		publisher:       publisher,
		defaultCategory: defaultCategory,
		mu:              mu,
	}
}

// candidate is a parsed row waiting for its category.
type candidate struct {
	line     int
	title    string
	typ      core.TransactionType
	value    core.Money
	category string
}

// Import reads every row, reconciles categories, then writes all
// transactions in one call. The source is released only after the
// write succeeds; on failure it stays in place for inspection.
func (s *ImportService) Import(ctx context.Context, src tabular.Source) ([]core.Transaction, error) {
	logger := importLogger(ctx).With("source", src.Name())

	candidates, err := s.readCandidates(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logger.InfoContext(ctx, "Import source has no valid rows")
		if err := src.Release(ctx); err != nil {
			logger.WarnContext(ctx, "Failed to release import source", "error", err)
		}
		return []core.Transaction{}, nil
	}

	s.mu.Lock()
	saved, created, err := s.reconcileAndWrite(ctx, candidates)
	s.mu.Unlock()
	if err != nil {
		logger.ErrorContext(ctx, "Import failed", "rows", len(candidates), "error", err)
		return nil, err
	}

	if err := src.Release(ctx); err != nil {
		logger.WarnContext(ctx, "Failed to release import source", "error", err)
	}

	logger.InfoContext(ctx, "Import completed",
		"transactions", len(saved),
		"categories_created", created)

	ids := make([]string, len(saved))
	for i, t := range saved {
		ids[i] = t.ID
	}
	publish(ctx, s.publisher, amqp.EventTransactionsImported, ids...)
	return saved, nil
}

func (s *ImportService) reconcileAndWrite(ctx context.Context, candidates []candidate) ([]core.Transaction, int, error) {
	if err := s.checkTotals(ctx, candidates); err != nil {
		return nil, 0, err
	}

	pool, created, err := s.reconcileCategories(ctx, candidates)
	if err != nil {
		return nil, 0, err
	}

	txs, err := buildTransactions(candidates, pool)
	if err != nil {
		return nil, 0, err
	}

	saved, err := s.store.InsertTransactions(ctx, txs)
	if err != nil {
		return nil, 0, fmt.Errorf("insert transactions: %w", err)
	}
	for i := range saved {
		c := pool[candidates[i].category]
		saved[i].Category = &c
	}
	return saved, created, nil
}

// checkTotals makes sure the ledger totals still fit once the candidates
// are stored. Imports may overdraw the balance, but never overflow it.
func (s *ImportService) checkTotals(ctx context.Context, candidates []candidate) error {
	balance, err := ledger.Balance(ctx, s.store)
	if err != nil {
		return fmt.Errorf("compute balance: %w", err)
	}
	for _, c := range candidates {
		if balance, err = balance.Apply(core.Transaction{Value: c.value, Type: c.typ}); err != nil {
			return err
		}
	}
	return nil
}

// readCandidates consumes the whole source before returning.
func (s *ImportService) readCandidates(ctx context.Context, src tabular.Source) ([]candidate, error) {
	rows, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open import source: %w", err)
	}
	defer rows.Close()

	var (
		out  []candidate
		line int
	)
	for {
		record, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read import row %d: %w", line+1, err)
		}
		line++
		if line == 1 {
			continue // header
		}

		c, ok := s.parseRow(ctx, line, record)
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *ImportService) parseRow(ctx context.Context, line int, record []string) (candidate, bool) {
	cells := make([]string, importColumns)
	for i := 0; i < importColumns && i < len(record); i++ {
		cells[i] = strings.TrimSpace(record[i])
	}
	if cells[colTitle] == "" || cells[colType] == "" || cells[colValue] == "" {
		return candidate{}, false
	}

	// spreadsheet exports often capitalize the type column
	typ, err := core.ParseTransactionType(strings.ToLower(cells[colType]))
	if err != nil {
		importLogger(ctx).WarnContext(ctx, "Skipping import row", "line", line, "type", cells[colType], "error", err)
		return candidate{}, false
	}
	value, err := core.NewMoney(cells[colValue])
	if err != nil {
		importLogger(ctx).WarnContext(ctx, "Skipping import row", "line", line, "value", cells[colValue], "error", err)
		return candidate{}, false
	}
	if len(cells[colTitle]) > 200 {
		importLogger(ctx).WarnContext(ctx, "Skipping import row", "line", line, "error", core.ErrTitleTooLong)
		return candidate{}, false
	}

	category := cells[colCategory]
	if category == "" {
		category = s.defaultCategory
	}
	return candidate{
		line:     line,
		title:    cells[colTitle],
		typ:      typ,
		value:    value,
		category: category,
	}, true
}

// reconcileCategories returns every referenced category keyed by title,
// creating the missing ones in a single call.
func (s *ImportService) reconcileCategories(ctx context.Context, candidates []candidate) (map[string]core.Category, int, error) {
	referenced := make([]string, 0, len(candidates))
	for _, c := range candidates {
		referenced = append(referenced, c.category)
	}

	existing, err := s.store.FindCategoriesByTitles(ctx, referenced)
	if err != nil {
		return nil, 0, fmt.Errorf("find categories: %w", err)
	}

	pool := make(map[string]core.Category, len(existing))
	for _, c := range existing {
		pool[c.Title] = c
	}

	newTitles := missingTitles(referenced, pool)
	if len(newTitles) == 0 {
		return pool, 0, nil
	}

	created, err := s.store.CreateCategories(ctx, newTitles)
	if err != nil {
		return nil, 0, fmt.Errorf("create categories: %w", err)
	}
	for _, c := range created {
		pool[c.Title] = c
	}
	return pool, len(created), nil
}

// missingTitles is referenced minus pool, each title once, in first-seen order.
func missingTitles(referenced []string, pool map[string]core.Category) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range referenced {
		if _, ok := pool[t]; ok {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func buildTransactions(candidates []candidate, pool map[string]core.Category) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(candidates))
	for _, c := range candidates {
		cat, ok := pool[c.category]
		if !ok {
			return nil, fmt.Errorf("%w: row %d references %q", core.ErrCategoryResolution, c.line, c.category)
		}
		out = append(out, core.Transaction{
			Title:      c.title,
			Value:      c.value,
			Type:       c.typ,
			CategoryID: cat.ID,
		})
	}
	return out, nil
}

func importLogger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentImport)
}
