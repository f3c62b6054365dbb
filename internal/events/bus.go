package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type names a ledger event. Values double as websocket message types.
type Type string

const (
	MarketCreated  Type = "market-created"
	MarketClosed   Type = "market-closed"
	MarketResolved Type = "market-resolved"
	MarketsRemoved Type = "markets-removed"
	ResolverSet    Type = "resolver-set"
	DeadlineSet    Type = "deadline-set"
	OfferCreated   Type = "offer-created"
	OfferAccepted  Type = "offer-accepted"
	OfferCancelled Type = "offer-cancelled"
)

// Event is a notification that a committed ledger change happened.
// Front ends use it to refresh their views; it never carries authority.
type Event struct {
	Type     Type      `json:"type"`
	MarketID int64     `json:"market_id,omitempty"`
	BetID    int64     `json:"bet_id,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher accepts events after the owning transaction committed.
type Publisher interface {
	Publish(ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Nop discards every event.
var Nop Publisher = nopPublisher{}

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu         sync.RWMutex
	subs       map[uint64]chan Event
	nextID     uint64
	bufferSize int
	closed     bool
	logger     *zap.Logger
}

// NewBus creates a bus whose subscribers buffer up to bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	return &Bus{
		subs:       make(map[uint64]chan Event),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	EventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			EventsDroppedTotal.Inc()
			b.logger.Warn("event-dropped-slow-subscriber",
				zap.Uint64("subscriber-id", id),
				zap.String("event-type", string(ev.Type)))
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	Subscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
				Subscribers.Dec()
			}
		})
	}

	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
		Subscribers.Dec()
	}

	b.logger.Info("event-bus-closed")
}
