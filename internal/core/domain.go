package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	Category struct {
		ID        string
		Title     string
		CreatedAt time.Time
	}

	Transaction struct {
		ID         string
		Title      string
		Value      Money
		Type       TransactionType
		CategoryID string
		Category   *Category // populated on reads, may be nil on freshly built records
		CreatedAt  time.Time
	}

	// NewTransaction is the caller-supplied input for a single transaction.
	// Category is a title, resolved (or created) by the service.
	NewTransaction struct {
		Title    string
		Value    Money
		Type     TransactionType
		Category string
	}

	Balance struct {
		Income  Money
		Outcome Money
		Total   Money
	}
)

var (
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrCategoryResolution     = errors.New("category could not be resolved")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrCategoryExists         = errors.New("category already exists")
	ErrEmptyTitle             = errors.New("empty title")
	ErrTitleTooLong           = errors.New("title too long (max 200 characters)")
	ErrEmptyCategory          = errors.New("empty category title")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrBalanceOverflow        = errors.New("ledger totals would exceed the supported range")
)

// ParseTransactionType accepts exactly "income" or "outcome".
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t TransactionType) Validate() error {
	if t != Income && t != Outcome {
		return ErrInvalidTransactionType
	}
	return nil
}

func (t TransactionType) String() string {
	return string(t)
}

func (n NewTransaction) Validate() error {
	if err := n.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if len(n.Title) > 200 {
		return ErrTitleTooLong
	}
	return n.Value.Validate()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsValidationError reports whether err is caused by caller input rather
// than by the ledger or its storage.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidTransactionType,
		ErrInsufficientFunds,
		ErrEmptyTitle,
		ErrTitleTooLong,
		ErrEmptyCategory,
		ErrInvalidAmount,
		ErrBalanceOverflow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
