package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// NewSQLiteStorage opens a SQLite ledger at path and migrates the schema.
// Use ":memory:" for an ephemeral ledger.
func NewSQLiteStorage(ctx context.Context, path string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: SQLite allows a single writer, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		_, err = db.ExecContext(ctx, p)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	store := newSQLStore(db, sqliteDialect, logger)

	err = store.Migrate(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite-storage-opened", zap.String("path", path))

	return store, nil
}
