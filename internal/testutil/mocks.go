package testutil

import (
	"context"
	"sync"

	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/internal/storage"
)

// MockPublisher records published events in memory.
type MockPublisher struct {
	Events []events.Event
	mu     sync.Mutex
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Events: make([]events.Event, 0),
	}
}

// Publish records ev.
func (m *MockPublisher) Publish(ev events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
}

// Types returns the recorded event types in publish order.
func (m *MockPublisher) Types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]events.Type, len(m.Events))
	for i := range m.Events {
		result[i] = m.Events[i].Type
	}
	return result
}

// Clear forgets all recorded events.
func (m *MockPublisher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = make([]events.Event, 0)
}

// FailingStore is a storage.Store whose transactions always fail with Err.
type FailingStore struct {
	Err error
}

// InTx returns Err without calling fn.
func (f *FailingStore) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return f.Err
}

// Ping returns Err.
func (f *FailingStore) Ping(ctx context.Context) error {
	return f.Err
}

// Close is a no-op.
func (f *FailingStore) Close() error {
	return nil
}

// FaultyStore runs transactions on a real store but makes the named Tx
// writes fail, so callers can check that a half-done transaction rolls back.
type FaultyStore struct {
	storage.Store

	CancelOpenOffersErr   error
	CompleteActiveBetsErr error
}

// InTx runs fn against the wrapped store with faults injected.
func (f *FaultyStore) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return f.Store.InTx(ctx, func(tx storage.Tx) error {
		return fn(&faultyTx{Tx: tx, store: f})
	})
}

type faultyTx struct {
	storage.Tx
	store *FaultyStore
}

func (t *faultyTx) CancelOpenOffers(ctx context.Context, marketID int64) (int64, error) {
	if t.store.CancelOpenOffersErr != nil {
		return 0, t.store.CancelOpenOffersErr
	}
	return t.Tx.CancelOpenOffers(ctx, marketID)
}

func (t *faultyTx) CompleteActiveBets(ctx context.Context, marketID int64) (int64, error) {
	if t.store.CompleteActiveBetsErr != nil {
		return 0, t.store.CompleteActiveBetsErr
	}
	return t.Tx.CompleteActiveBets(ctx, marketID)
}
