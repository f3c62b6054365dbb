package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames; anything larger is a protocol error.
	maxMessageSize = 512
)

// EventSource hands out ledger event subscriptions.
type EventSource interface {
	Subscribe() (<-chan events.Event, func())
}

// EventsHandler streams ledger events to websocket clients.
type EventsHandler struct {
	source   EventSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventsHandler creates a new event stream handler.
func NewEventsHandler(source EventSource, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Front ends are served from other origins; the stream is read-only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleEvents handles GET /api/events?market_id=. With market_id only that
// market's events and purges are streamed.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var marketID int64
	if raw := r.URL.Query().Get("market_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, h.logger, r, types.Validationf("stream-events", "invalid market_id %q", raw))
			return
		}
		marketID = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("event-stream-upgrade-failed", zap.Error(err))
		return
	}

	feed, cancel := h.source.Subscribe()
	EventStreamClients.Inc()
	h.logger.Debug("event-stream-client-connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, feed, marketID, done)

	cancel()
	_ = conn.Close()
	EventStreamClients.Dec()
	h.logger.Debug("event-stream-client-disconnected", zap.String("remote", r.RemoteAddr))
}

// readPump consumes control frames so pongs are processed, and closes done
// when the client goes away.
func (h *EventsHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

// writePump forwards events and pings until the feed closes or the client
// disconnects.
func (h *EventsHandler) writePump(conn *websocket.Conn, feed <-chan events.Event, marketID int64, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-feed:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if !matchesMarket(ev, marketID) {
				continue
			}

			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("event-stream-marshal-failed", zap.Error(err))
				continue
			}

			err = conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				EventStreamWriteErrorsTotal.Inc()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				EventStreamWriteErrorsTotal.Inc()
				return
			}
		}
	}
}

func matchesMarket(ev events.Event, marketID int64) bool {
	if marketID == 0 || ev.MarketID == marketID {
		return true
	}

	ids, ok := ev.Payload.([]int64)
	if !ok {
		return false
	}
	for _, id := range ids {
		if id == marketID {
			return true
		}
	}
	return false
}
