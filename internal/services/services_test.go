package services

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/storage/memory"
	"saldo/internal/tabular"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// countingStore counts category-store calls made on the wrapped store.
type countingStore struct {
	*memory.Store
	createCategories int
	findByTitles     int
	insertErr        error
	createErr        error
}

func (c *countingStore) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	c.createCategories++
	if c.createErr != nil {
		return nil, c.createErr
	}
	return c.Store.CreateCategories(ctx, titles)
}

func (c *countingStore) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	c.findByTitles++
	return c.Store.FindCategoriesByTitles(ctx, titles)
}

func (c *countingStore) InsertTransactions(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	return c.Store.InsertTransactions(ctx, txs)
}

var _ ledger.Store = (*countingStore)(nil)

type fakeSource struct {
	rows     [][]string
	openErr  error
	released int
}

func (f *fakeSource) Name() string { return "fake.csv" }

func (f *fakeSource) Open(context.Context) (tabular.Rows, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return tabular.NewSliceRows(f.rows), nil
}

func (f *fakeSource) Release(context.Context) error {
	f.released++
	return nil
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.NewMoney(s)
	require.NoError(t, err)
	return m
}

func balanceOf(t *testing.T, store ledger.Store) core.Balance {
	t.Helper()
	b, err := ledger.Balance(context.Background(), store)
	require.NoError(t, err)
	return b
}

// nearlyFullStore holds one income just below the int64 limit.
func nearlyFullStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New("Savings")
	cat, ok, err := store.FindCategoryByTitle(context.Background(), "Savings")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = store.InsertTransaction(context.Background(), core.Transaction{
		Title:      "Inheritance",
		Value:      core.Money{Cents: math.MaxInt64 - 5},
		Type:       core.Income,
		CategoryID: cat.ID,
	})
	require.NoError(t, err)
	return store
}

// loggingContext returns a context whose logger writes JSON lines to the
// returned buffer.
func loggingContext() (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, JSON: true, Output: &buf})
	return context.WithValue(context.Background(), applog.LoggerContextKey, logger), &buf
}
