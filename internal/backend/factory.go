package backend

import (
	"context"
	"errors"
	"fmt"

	"saldo/internal/amqp"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/storage"
	"saldo/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend opens the configured store, wraps it with the category
// cache and connects the optional event publisher.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   ledger.Store
		ready   func(context.Context) error
		closers []func() error
	)

	switch config.Type {
	case SQLiteBackend, PostgresBackend:
		repo, err := f.openRepository(config)
		if err != nil {
			return nil, err
		}
		store, ready = repo, repo.Ping
		closers = append(closers, repo.Close)
	case MemoryBackend:
		store = memory.NewFromFiles(config.SeedDirectory)
		ready = func(context.Context) error { return nil }
		f.logger.Info("Initialized memory backend", "seed_directory", config.SeedDirectory)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.CategoryCacheSize > 0 {
		store = storage.NewCachedCategories(store, config.CategoryCacheSize)
	}

	result := &BackendResult{Store: store, Ready: ready}

	// Initialize AMQP client (optional)
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			// Only a live client becomes the publisher; a typed nil would not compare equal to nil.
			result.Publisher = client
			closers = append(closers, client.Close)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) openRepository(config Config) (*storage.Repository, error) {
	if config.Type == PostgresBackend {
		repo, err := storage.NewPostgresRepository(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, nil
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}
