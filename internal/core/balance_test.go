package core

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBalance(t *testing.T, txs []Transaction) Balance {
	t.Helper()
	b, err := CalculateBalance(txs)
	require.NoError(t, err)
	return b
}

func TestCalculateBalanceEmpty(t *testing.T) {
	assert.Equal(t, Balance{}, mustBalance(t, nil))
	assert.Equal(t, Balance{}, mustBalance(t, []Transaction{}))
}

func TestCalculateBalance(t *testing.T) {
	txs := []Transaction{
		{Title: "Salary", Value: Money{Cents: 100000}, Type: Income},
		{Title: "Rent", Value: Money{Cents: 40000}, Type: Outcome},
		{Title: "Bonus", Value: Money{Cents: 2550}, Type: Income},
		{Title: "Coffee", Value: Money{Cents: 250}, Type: Outcome},
	}

	b := mustBalance(t, txs)

	assert.Equal(t, int64(102550), b.Income.Cents)
	assert.Equal(t, int64(40250), b.Outcome.Cents)
	assert.Equal(t, int64(62300), b.Total.Cents)
}

func TestCalculateBalanceCanGoNegative(t *testing.T) {
	b := mustBalance(t, []Transaction{{Title: "Rent", Value: Money{Cents: 500}, Type: Outcome}})
	assert.Equal(t, int64(-500), b.Total.Cents)
	assert.False(t, b.CanWithdraw(Money{Cents: 1}))
}

func TestCalculateBalanceProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		n := rng.Intn(30)
		txs := make([]Transaction, n)
		for i := range txs {
			typ := Income
			if rng.Intn(2) == 0 {
				typ = Outcome
			}
			txs[i] = Transaction{Value: Money{Cents: rng.Int63n(1_000_000)}, Type: typ}
		}

		b := mustBalance(t, txs)
		assert.Equal(t, b.Income.Cents-b.Outcome.Cents, b.Total.Cents)
		assert.GreaterOrEqual(t, b.Income.Cents, int64(0))
		assert.GreaterOrEqual(t, b.Outcome.Cents, int64(0))

		// order independence
		rng.Shuffle(len(txs), func(i, j int) { txs[i], txs[j] = txs[j], txs[i] })
		assert.Equal(t, b, mustBalance(t, txs))
	}
}

func TestCanWithdraw(t *testing.T) {
	b := Balance{Total: Money{Cents: 60000}}
	assert.True(t, b.CanWithdraw(Money{Cents: 60000}))
	assert.True(t, b.CanWithdraw(Money{}))
	assert.False(t, b.CanWithdraw(Money{Cents: 60001}))
}

func TestCalculateBalanceRejectsOverflow(t *testing.T) {
	huge := Money{Cents: math.MaxInt64 - 10}
	txs := []Transaction{
		{Title: "a", Value: huge, Type: Income},
		{Title: "b", Value: Money{Cents: 11}, Type: Income},
	}

	_, err := CalculateBalance(txs)

	assert.ErrorIs(t, err, ErrBalanceOverflow)
	assert.True(t, IsValidationError(err))
}

func TestApplyKeepsTotalSigned(t *testing.T) {
	b, err := Balance{}.Apply(Transaction{Value: Money{Cents: math.MaxInt64}, Type: Outcome})
	require.NoError(t, err)
	assert.Equal(t, int64(-math.MaxInt64), b.Total.Cents)
	assert.False(t, b.CanWithdraw(Money{}))

	_, err = b.Apply(Transaction{Value: Money{Cents: 1}, Type: Outcome})
	assert.ErrorIs(t, err, ErrBalanceOverflow)
}
