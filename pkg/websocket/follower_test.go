package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mselser95/betledger/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func feedServer(t *testing.T, serve func(n int, conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	var conns atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(int(conns.Add(1)), conn, r)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestNewFollower_RejectsHTTPURL(t *testing.T) {
	_, err := NewFollower(Config{URL: "http://localhost:8080/api/events", Logger: zaptest.NewLogger(t)})
	assert.Error(t, err)
}

func TestFollower_DeliversEventsWithMarketFilter(t *testing.T) {
	var gotMarket atomic.Value
	srv := feedServer(t, func(_ int, conn *websocket.Conn, r *http.Request) {
		gotMarket.Store(r.URL.Query().Get("market_id"))
		_ = conn.WriteJSON(events.Event{Type: events.OfferCreated, MarketID: 7, BetID: 3, Actor: "alice"})
		drain(conn)
	})

	f, err := NewFollower(Config{URL: wsURL(srv), MarketID: 7, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []events.Event
	err = f.Run(ctx, func(ev events.Event, connected bool) {
		assert.True(t, connected)
		got = append(got, ev)
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, got, 1)
	assert.Equal(t, events.OfferCreated, got[0].Type)
	assert.Equal(t, int64(3), got[0].BetID)
	assert.Equal(t, "alice", got[0].Actor)
	assert.Equal(t, "7", gotMarket.Load())
}

func TestFollower_ReconnectsAfterServerDrop(t *testing.T) {
	srv := feedServer(t, func(n int, conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteJSON(events.Event{Type: events.MarketCreated, MarketID: int64(n)})
		if n == 1 {
			return
		}
		drain(conn)
	})

	f, err := NewFollower(Config{
		URL: wsURL(srv),
		Reconnect: ReconnectConfig{
			InitialDelay:      5 * time.Millisecond,
			MaxDelay:          20 * time.Millisecond,
			BackoffMultiplier: 2,
		},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var markets []int64
	var fresh int
	err = f.Run(ctx, func(ev events.Event, connected bool) {
		mu.Lock()
		defer mu.Unlock()
		markets = append(markets, ev.MarketID)
		if connected {
			fresh++
		}
		if len(markets) == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int64{1, 2}, markets)
	assert.Equal(t, 2, fresh)
}

func TestFollower_SkipsUndecodableFrames(t *testing.T) {
	srv := feedServer(t, func(_ int, conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(events.Event{Type: events.MarketClosed, MarketID: 2})
		drain(conn)
	})

	f, err := NewFollower(Config{URL: wsURL(srv), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got events.Event
	err = f.Run(ctx, func(ev events.Event, _ bool) {
		got = ev
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, events.MarketClosed, got.Type)
}

func TestFollower_InitialDialFailure(t *testing.T) {
	f, err := NewFollower(Config{
		URL:         "ws://127.0.0.1:1/api/events",
		DialTimeout: 200 * time.Millisecond,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	err = f.Run(context.Background(), func(events.Event, bool) {})
	assert.Error(t, err)
}

func TestReconnectManager_BackoffGrowsToCap(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          35 * time.Millisecond,
		BackoffMultiplier: 2,
	}, zaptest.NewLogger(t))

	assert.Equal(t, 10*time.Millisecond, rm.nextBackoff())
	rm.incrementBackoff()
	assert.Equal(t, 20*time.Millisecond, rm.nextBackoff())
	rm.incrementBackoff()
	assert.Equal(t, 35*time.Millisecond, rm.nextBackoff())
	rm.incrementBackoff()
	assert.Equal(t, 35*time.Millisecond, rm.nextBackoff())

	rm.Reset()
	assert.Equal(t, 10*time.Millisecond, rm.nextBackoff())
}

func TestReconnectManager_JitterStaysInRange(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		JitterPercent: 0.2,
	}, zaptest.NewLogger(t))

	for range 50 {
		d := rm.nextBackoff()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}

func TestReconnectManager_RetriesUntilSuccess(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2,
	}, zaptest.NewLogger(t))

	attempts := 0
	err := rm.Reconnect(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, time.Millisecond, rm.nextBackoff())
}

func TestReconnectManager_StopsOnCancel(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rm.Reconnect(ctx, func(context.Context) error {
		t.Error("connect must not run after cancel")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
