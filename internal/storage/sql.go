package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// dialect captures the differences between the supported SQL backends.
// Queries are written with PostgreSQL $n placeholders and rebound per dialect.
type dialect struct {
	name       string
	schema     string
	lockShare  string
	lockUpdate string
	rebind     func(query string) string
}

var postgresDialect = dialect{
	name:       "postgres",
	schema:     postgresSchema,
	lockShare:  " FOR SHARE",
	lockUpdate: " FOR UPDATE",
	rebind:     func(query string) string { return query },
}

// SQLite serializes writers on a single connection, so row locks are not needed.
var sqliteDialect = dialect{
	name:   "sqlite",
	schema: sqliteSchema,
	rebind: func(query string) string { return strings.ReplaceAll(query, "$", "?") },
}

func (d dialect) lockClause(lock Lock) string {
	switch lock {
	case LockShare:
		return d.lockShare
	case LockUpdate:
		return d.lockUpdate
	default:
		return ""
	}
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
	}
}

// Migrate creates the ledger tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	if err != nil {
		return fmt.Errorf("migrate %s schema: %w", s.dialect.name, err)
	}

	s.logger.Info("storage-schema-migrated", zap.String("dialect", s.dialect.name))
	return nil
}

// InTx runs fn inside a database transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	start := time.Now()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		TransactionsTotal.WithLabelValues("begin_error").Inc()
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	err = fn(&ledgerTx{tx: sqlTx, dialect: s.dialect})
	if err != nil {
		rbErr := sqlTx.Rollback()
		if rbErr != nil {
			s.logger.Error("transaction-rollback-failed", zap.Error(rbErr))
		}
		TransactionsTotal.WithLabelValues("rollback").Inc()
		return err
	}

	err = sqlTx.Commit()
	if err != nil {
		TransactionsTotal.WithLabelValues("commit_error").Inc()
		return fmt.Errorf("commit transaction: %w", err)
	}

	TransactionsTotal.WithLabelValues("commit").Inc()
	TransactionDurationSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.logger.Info("closing-storage", zap.String("dialect", s.dialect.name))
	return s.db.Close()
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start int, n int) string {
	parts := make([]string, n)
	for i := range n {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
