package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"saldo/internal/core"
)

func TestValuesToRows(t *testing.T) {
	values := [][]any{
		{"title", "type", "value", "category"},
		{" Salary ", "income", 1000.5, "Work"},
		{"Rent", "outcome", "400"},
		{},
	}

	rows := valuesToRows(values)

	assert.Equal(t, [][]string{
		{"title", "type", "value", "category"},
		{"Salary", "income", "1000.5", "Work"},
		{"Rent", "outcome", "400"},
		{},
	}, rows)
}

func TestFindRowByID(t *testing.T) {
	values := [][]any{
		{"id"},
		{},
		{"abc"},
		{" def "},
	}

	assert.Equal(t, 2, findRowByID(values, "abc"))
	assert.Equal(t, 3, findRowByID(values, "def"))
	assert.Equal(t, -1, findRowByID(values, "missing"))
	assert.Equal(t, -1, findRowByID(nil, "abc"))
}

func TestTransactionRow(t *testing.T) {
	tx := core.Transaction{
		ID:         "tx-1",
		Title:      "Rent",
		Value:      core.Money{Cents: 40050},
		Type:       core.Outcome,
		CategoryID: "cat-1",
		CreatedAt:  time.Date(2025, 3, 4, 23, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, []any{"tx-1", "2025-03-04", "Rent", "outcome", "400.50", "cat-1"}, transactionRow(tx))

	tx.Category = &core.Category{ID: "cat-1", Title: "Home"}
	assert.Equal(t, "Home", transactionRow(tx)[5])
}
