package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4)

	first, cancelFirst := bus.Subscribe()
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	bus.Publish(Event{Type: MarketCreated, MarketID: 7})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case ev := <-ch:
			assert.Equal(t, MarketCreated, ev.Type)
			assert.Equal(t, int64(7), ev.MarketID)
			assert.False(t, ev.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)

	ch, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range 10 {
			bus.Publish(Event{Type: OfferCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Len(t, ch, 1)
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)

	ch, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBus_Close(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	ch, cancel := bus.Subscribe()

	bus.Close()
	bus.Publish(Event{Type: MarketClosed})

	_, ok := <-ch
	assert.False(t, ok)

	// Cancel after close must not panic on the already closed channel.
	cancel()

	late, _ := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
