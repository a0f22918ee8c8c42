package core

import "math"

// CalculateBalance folds a set of transactions into income, outcome and
// total. Order does not matter; an empty set yields a zero balance.
func CalculateBalance(txs []Transaction) (Balance, error) {
	var (
		b   Balance
		err error
	)
	for _, tx := range txs {
		if b, err = b.Apply(tx); err != nil {
			return Balance{}, err
		}
	}
	return b, nil
}

// Apply returns the balance with tx added. Income and outcome are sums of
// non-negative values, so both stay within int64 or the call fails with
// ErrBalanceOverflow; their difference then always fits.
func (b Balance) Apply(tx Transaction) (Balance, error) {
	switch tx.Type {
	case Income:
		sum, err := b.Income.Add(tx.Value)
		if err != nil {
			return b, err
		}
		b.Income = sum
	case Outcome:
		sum, err := b.Outcome.Add(tx.Value)
		if err != nil {
			return b, err
		}
		b.Outcome = sum
	}
	b.Total = Money{Cents: b.Income.Cents - b.Outcome.Cents}
	return b, nil
}

// CanWithdraw reports whether an outcome of value keeps the total at or
// above zero.
func (b Balance) CanWithdraw(value Money) bool {
	return b.Total.Cents >= value.Cents
}

// Add sums two non-negative amounts.
func (m Money) Add(o Money) (Money, error) {
	if m.Cents < 0 || o.Cents < 0 {
		return Money{}, ErrInvalidAmount
	}
	if o.Cents > math.MaxInt64-m.Cents {
		return Money{}, ErrBalanceOverflow
	}
	return Money{Cents: m.Cents + o.Cents}, nil
}
