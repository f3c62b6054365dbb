package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/betledger/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewSQLiteStore opens a migrated SQLite ledger in a temp dir, closed on cleanup.
func NewSQLiteStore(t *testing.T) *storage.SQLStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := storage.NewSQLiteStorage(context.Background(), path, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

// Clock is a manually advanced clock for deadline tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RainMarket is the title and outcomes used by most ledger scenarios.
var RainMarket = struct {
	Title    string
	Outcomes []string
}{
	Title:    "Rain?",
	Outcomes: []string{"Yes", "No"},
}
