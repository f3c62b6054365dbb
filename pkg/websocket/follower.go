package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/betledger/internal/events"
	"go.uber.org/zap"
)

// Follower consumes a ledger server's event feed, reconnecting with backoff
// whenever the connection drops. Events published while disconnected are not
// replayed; front ends should revalidate what they display after a reconnect.
type Follower struct {
	url          string
	dialTimeout  time.Duration
	pongTimeout  time.Duration
	reconnectMgr *ReconnectManager
	logger       *zap.Logger
}

// Config holds event feed follower configuration.
type Config struct {
	URL         string // e.g. ws://localhost:8080/api/events
	MarketID    int64  // Optional: only this market's events
	DialTimeout time.Duration
	PongTimeout time.Duration // Read deadline, extended by every server ping
	Reconnect   ReconnectConfig
	Logger      *zap.Logger
}

// Handler receives each event. connected is true on the first event after
// every (re)connect.
type Handler func(ev events.Event, connected bool)

// NewFollower creates a follower. It does not connect until Run.
func NewFollower(cfg Config) (*Follower, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url must use ws or wss, got %q", u.Scheme)
	}

	if cfg.MarketID > 0 {
		q := u.Query()
		q.Set("market_id", strconv.FormatInt(cfg.MarketID, 10))
		u.RawQuery = q.Encode()
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	pongTimeout := cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = 75 * time.Second
	}

	return &Follower{
		url:          u.String(),
		dialTimeout:  dialTimeout,
		pongTimeout:  pongTimeout,
		reconnectMgr: NewReconnectManager(cfg.Reconnect, cfg.Logger),
		logger:       cfg.Logger,
	}, nil
}

// Run follows the feed until ctx is cancelled. The first connection attempt
// must succeed; later drops are retried with backoff.
func (f *Follower) Run(ctx context.Context, handle Handler) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	for {
		err = f.readLoop(ctx, conn, handle)
		_ = conn.Close()
		ActiveConnections.Set(0)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("event-feed-disconnected", zap.Error(err))

		err = f.reconnectMgr.Reconnect(ctx, func(ctx context.Context) error {
			var dialErr error
			conn, dialErr = f.dial(ctx)
			return dialErr
		})
		if err != nil {
			return err
		}
	}
}

func (f *Follower) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: f.dialTimeout}

	f.logger.Info("connecting-to-event-feed", zap.String("url", f.url))

	conn, resp, err := dialer.DialContext(ctx, f.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(f.pongTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(f.pongTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	ActiveConnections.Set(1)
	f.logger.Info("event-feed-connected")

	return conn, nil
}

// readLoop delivers events until the connection fails or ctx is cancelled.
func (f *Follower) readLoop(ctx context.Context, conn *websocket.Conn, handle Handler) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	first := true
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return errors.New("server closed the feed")
			}
			return fmt.Errorf("read: %w", err)
		}

		var ev events.Event
		err = json.Unmarshal(data, &ev)
		if err != nil {
			DecodeErrorsTotal.Inc()
			f.logger.Warn("event-feed-decode-failed", zap.Error(err))
			continue
		}

		EventsReceivedTotal.WithLabelValues(string(ev.Type)).Inc()
		handle(ev, first)
		first = false
	}
}
