package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventTransactionCreated   EventType = "transaction.created"
	EventTransactionDeleted   EventType = "transaction.deleted"
	EventTransactionsImported EventType = "transactions.imported"
)

// LedgerEvent is a lightweight notification about ledger changes. It only
// carries ids; consumers read the records from the database.
type LedgerEvent struct {
	Type           EventType `json:"type"`
	TransactionIDs []string  `json:"transaction_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, ids ...string) *LedgerEvent {
	return &LedgerEvent{
		Type:           t,
		TransactionIDs: ids,
		Timestamp:      time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventTransactionCreated, EventTransactionDeleted, EventTransactionsImported:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
