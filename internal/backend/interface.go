package backend

import (
	"context"

	"saldo/internal/ledger"
	"saldo/internal/services"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the wired store and its collaborators.
type BackendResult struct {
	Store ledger.Store
	// Publisher is nil when ledger events are disabled.
	Publisher services.EventPublisher
	// Ready reports whether the store is reachable.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string
	// SeedDirectory is read by the memory backend only.
	SeedDirectory string

	CategoryCacheSize int

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
