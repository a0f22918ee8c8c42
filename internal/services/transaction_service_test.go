package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/storage/memory"
)

func TestCreateExampleLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewTransactionService(store, nil, "")

	_, err := svc.Create(ctx, core.NewTransaction{Title: "Salary", Value: money(t, "1000"), Type: core.Income, Category: "Work"})
	require.NoError(t, err)
	assert.Equal(t, core.Balance{
		Income: money(t, "1000"),
		Total:  money(t, "1000"),
	}, balanceOf(t, store))

	_, err = svc.Create(ctx, core.NewTransaction{Title: "Rent", Value: money(t, "1500"), Type: core.Outcome, Category: "Rent"})
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
	assert.Equal(t, money(t, "1000"), balanceOf(t, store).Total)
	assert.Len(t, store.Categories(), 1, "rejected outcome must not create its category")

	tx, err := svc.Create(ctx, core.NewTransaction{Title: "Rent", Value: money(t, "400"), Type: core.Outcome, Category: "Rent"})
	require.NoError(t, err)
	require.NotNil(t, tx.Category)
	assert.Equal(t, "Rent", tx.Category.Title)
	assert.NotEmpty(t, tx.ID)

	assert.Equal(t, core.Balance{
		Income:  money(t, "1000"),
		Outcome: money(t, "400"),
		Total:   money(t, "600"),
	}, balanceOf(t, store))

	rent := 0
	for _, c := range store.Categories() {
		if c.Title == "Rent" {
			rent++
		}
	}
	assert.Equal(t, 1, rent)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		in   core.NewTransaction
		want error
	}{
		{"invalid type", core.NewTransaction{Title: "x", Type: "transfer"}, core.ErrInvalidTransactionType},
		{"empty type", core.NewTransaction{Title: "x"}, core.ErrInvalidTransactionType},
		{"capitalized type", core.NewTransaction{Title: "x", Type: "Income"}, core.ErrInvalidTransactionType},
		{"blank title", core.NewTransaction{Title: "   ", Type: core.Income}, core.ErrEmptyTitle},
		{"negative value", core.NewTransaction{Title: "x", Type: core.Income, Value: core.Money{Cents: -1}}, core.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			svc := NewTransactionService(store, nil, "")

			_, err := svc.Create(context.Background(), tt.in)

			assert.ErrorIs(t, err, tt.want)
			assert.True(t, core.IsValidationError(err))
			assert.Empty(t, store.Categories())
		})
	}
}

func TestCreateRejectsTotalsOverflow(t *testing.T) {
	ctx := context.Background()
	store := nearlyFullStore(t)
	svc := NewTransactionService(store, nil, "")

	_, err := svc.Create(ctx, core.NewTransaction{Title: "Bonus", Value: money(t, "1"), Type: core.Income, Category: "Work"})

	assert.ErrorIs(t, err, core.ErrBalanceOverflow)
	assert.Len(t, store.Categories(), 1)
	assert.Equal(t, core.Money{Cents: math.MaxInt64 - 5}, balanceOf(t, store).Total)
}

func TestCreateIncomeAlwaysSucceeds(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewTransactionService(store, nil, "")

	// drive the total negative through the import path first
	_, err := NewImportService(store, nil, "").Import(ctx, &fakeSource{rows: [][]string{
		{"title", "type", "value", "category"},
		{"Car", "outcome", "50", "Auto"},
	}})
	require.NoError(t, err)
	before := balanceOf(t, store).Total

	for _, v := range []string{"0", "0.01", "12.34"} {
		_, err := svc.Create(ctx, core.NewTransaction{Title: "Gift", Value: money(t, v), Type: core.Income})
		require.NoError(t, err)
		after := balanceOf(t, store).Total
		assert.Equal(t, money(t, v).Cents, after.Cents-before.Cents)
		before = after
	}
}

func TestCreateOutcomeDecreasesTotal(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewTransactionService(store, nil, "")

	_, err := svc.Create(ctx, core.NewTransaction{Title: "Salary", Value: money(t, "100"), Type: core.Income})
	require.NoError(t, err)

	_, err = svc.Create(ctx, core.NewTransaction{Title: "All of it", Value: money(t, "100"), Type: core.Outcome})
	require.NoError(t, err, "withdrawing the exact total is allowed")
	assert.Equal(t, int64(0), balanceOf(t, store).Total.Cents)

	_, err = svc.Create(ctx, core.NewTransaction{Title: "One cent", Value: money(t, "0.01"), Type: core.Outcome})
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
}

func TestCreateReusesAndDefaultsCategory(t *testing.T) {
	ctx := context.Background()
	store := memory.New("Work")
	svc := NewTransactionService(store, nil, "Misc")

	tx, err := svc.Create(ctx, core.NewTransaction{Title: "Salary", Value: money(t, "10"), Type: core.Income, Category: " Work "})
	require.NoError(t, err)
	work, ok, err := store.FindCategoryByTitle(ctx, "Work")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, work.ID, tx.CategoryID)

	tx, err = svc.Create(ctx, core.NewTransaction{Title: "Tip", Value: money(t, "1"), Type: core.Income})
	require.NoError(t, err)
	assert.Equal(t, "Misc", tx.Category.Title)
	assert.Len(t, store.Categories(), 2)
}

func TestConcurrentOutcomesCannotOverdraw(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewTransactionService(store, nil, "")

	_, err := svc.Create(ctx, core.NewTransaction{Title: "Salary", Value: money(t, "100"), Type: core.Income})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, core.NewTransaction{Title: "Spend", Value: money(t, "30"), Type: core.Outcome})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, core.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(1000), balanceOf(t, store).Total.Cents)
}

func TestCreatePublishesEvent(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewTransactionService(memory.New(), pub, "")

	tx, err := svc.Create(ctx, core.NewTransaction{Title: "Salary", Value: money(t, "1"), Type: core.Income})
	require.NoError(t, err, "publish failures must not fail the request")

	require.Len(t, pub.events, 1)
	assert.Equal(t, amqp.EventTransactionCreated, pub.events[0].Type)
	assert.Equal(t, []string{tx.ID}, pub.events[0].TransactionIDs)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewTransactionService(store, pub, "")

	tx, err := svc.Create(ctx, core.NewTransaction{Title: "Salary", Value: money(t, "5"), Type: core.Income})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, tx.ID))
	assert.ErrorIs(t, svc.Delete(ctx, tx.ID), core.ErrTransactionNotFound)

	l, err := svc.ListWithBalance(ctx)
	require.NoError(t, err)
	assert.Empty(t, l.Transactions)
	assert.Equal(t, core.Balance{}, l.Balance)
	assert.Equal(t, []amqp.EventType{amqp.EventTransactionCreated, amqp.EventTransactionDeleted}, pub.types())
}

func TestListWithBalance(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), nil, "")

	for _, in := range []core.NewTransaction{
		{Title: "Salary", Value: money(t, "1000"), Type: core.Income, Category: "Work"},
		{Title: "Rent", Value: money(t, "400"), Type: core.Outcome, Category: "Home"},
		{Title: "Bonus", Value: money(t, "50.50"), Type: core.Income, Category: "Work"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	l, err := svc.ListWithBalance(ctx)
	require.NoError(t, err)
	require.Len(t, l.Transactions, 3)
	assert.Equal(t, "Salary", l.Transactions[0].Title)
	assert.Equal(t, "Bonus", l.Transactions[2].Title)
	for _, tx := range l.Transactions {
		require.NotNil(t, tx.Category)
	}
	assert.Equal(t, "650.50", l.Balance.Total.String())
}

func TestCreateLogsUnderLedgerComponent(t *testing.T) {
	ctx, buf := loggingContext()
	svc := NewTransactionService(memory.New(), nil, "")

	_, err := svc.Create(ctx, core.NewTransaction{Title: "Salary", Value: money(t, "10"), Type: core.Income})
	require.NoError(t, err)
	_, err = svc.Create(ctx, core.NewTransaction{Title: "Rent", Value: money(t, "50"), Type: core.Outcome})
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"Transaction recorded"`)
	assert.Contains(t, lines[1], `"msg":"Outcome rejected"`)
	for _, line := range lines {
		assert.Contains(t, line, `"component":"ledger"`)
	}
}
