package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tmarqs/inboxsync/internal/bus"
	"github.com/tmarqs/inboxsync/internal/normalize"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Feed subscribes to the realtime event socket and publishes every decoded
// envelope on the bus as a raw event. It does not interpret payloads; the
// sync engine normalizes and applies them. The connection is retried with
// exponential backoff for as long as the context lives.
type Feed struct {
	url    string
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// envelope tolerates the naming of both producers: the application channel
// frames events as {"event", "data"}, the CDC bridge as {"kind", "payload"}.
type envelope struct {
	Event   string         `json:"event"`
	Type    string         `json:"type"`
	Kind    string         `json:"kind"`
	Data    map[string]any `json:"data"`
	Payload map[string]any `json:"payload"`
}

// New creates a feed for the given websocket URL.
func New(url string, b *bus.Bus, logger *zap.Logger) *Feed {
	return &Feed{url: url, bus: b, logger: logger}
}

// Start launches the connect/read loop in the background.
func (f *Feed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	go f.run(ctx)
}

// Stop tears down the feed connection.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

func (f *Feed) run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.logger.Warn("feed dial failed", zap.String("url", f.url), zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		f.logger.Info("feed connected", zap.String("url", f.url))
		f.bus.Publish(bus.Event{Kind: bus.KindFeedConnected, Timestamp: time.Now()})

		err = f.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("feed disconnected", zap.Error(err))
		f.bus.Publish(bus.Event{Kind: bus.KindFeedDropped, Timestamp: time.Now(), Payload: err.Error()})
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Keepalive pings so half-dead connections are detected.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.dispatch(data)
	}
}

func (f *Feed) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Debug("undecodable frame", zap.Error(err))
		return
	}

	kind := env.Event
	if kind == "" {
		kind = env.Type
	}
	if kind == "" {
		kind = env.Kind
	}
	if kind == "" {
		f.logger.Debug("frame without event kind")
		return
	}

	payload := env.Data
	if payload == nil {
		payload = env.Payload
	}

	f.bus.Publish(bus.Event{
		Kind:      bus.KindFeedRaw,
		Timestamp: time.Now(),
		Payload:   normalize.RawEvent{Kind: kind, Payload: payload},
	})
}
