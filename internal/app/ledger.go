package app

import (
	"context"
	"fmt"

	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/internal/lifecycle"
	"github.com/mselser95/betledger/internal/matching"
	"github.com/mselser95/betledger/internal/storage"
	"github.com/mselser95/betledger/pkg/config"
	"go.uber.org/zap"
)

// Ledger bundles the store with the engines that own its state. The CLI uses
// it directly; the server wraps it with front-end services.
type Ledger struct {
	Store   *storage.SQLStore
	Markets *lifecycle.Engine
	Offers  *matching.Engine
}

// OpenLedger opens the configured store and builds the engines on top of it.
// A nil publisher discards events.
func OpenLedger(ctx context.Context, cfg *config.Config, publisher events.Publisher, logger *zap.Logger) (*Ledger, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Ledger{
		Store: store,
		Markets: lifecycle.New(&lifecycle.Config{
			Store:     store,
			Publisher: publisher,
			Admins:    cfg.AdminIDs,
			Logger:    logger,
		}),
		Offers: matching.New(&matching.Config{
			Store:     store,
			Publisher: publisher,
			Logger:    logger,
		}),
	}, nil
}

// OpenStore connects to the storage backend selected by STORAGE_MODE.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage.SQLStore, error) {
	switch cfg.StorageMode {
	case config.StorageModePostgres:
		store, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return store, nil

	case config.StorageModeSQLite:
		store, err := storage.NewSQLiteStorage(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
}

// Close releases the store.
func (l *Ledger) Close() error {
	return l.Store.Close()
}
