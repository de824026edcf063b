package sync

import (
	"context"
	"errors"
	"time"

	"github.com/tmarqs/inboxsync/internal/bus"
	"github.com/tmarqs/inboxsync/internal/normalize"
	"go.uber.org/zap"
)

// Engine drains the realtime inbox. It subscribes to "feed." events on the
// bus, normalizes each raw payload, and hands it to the reconciler. One
// goroutine processes events to completion in arrival order, making the
// engine the single writer driven by the realtime channels.
//
// Malformed events are dropped after a log line: realtime is a best-effort
// enhancement over the authoritative fetch path, so a refetch always
// recovers correctness.
type Engine struct {
	bus    *bus.Bus
	rec    *Reconciler
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates a new sync engine.
func NewEngine(b *bus.Bus, rec *Reconciler, logger *zap.Logger) *Engine {
	return &Engine{
		bus:    b,
		rec:    rec,
		logger: logger,
	}
}

// Start subscribes to raw feed events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("feed.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	if evt.Kind != bus.KindFeedRaw {
		return
	}
	raw, ok := evt.Payload.(normalize.RawEvent)
	if !ok {
		return
	}
	e.Process(raw)
}

// Process normalizes and applies a single raw event. Exposed for
// deterministic replay in tests and for transports that bypass the bus.
func (e *Engine) Process(raw normalize.RawEvent) {
	evt, err := normalize.Normalize(raw)
	if err != nil {
		if errors.Is(err, normalize.ErrUnknownKind) {
			e.logger.Debug("ignoring event", zap.String("kind", raw.Kind))
		} else {
			e.logger.Warn("discarding malformed event", zap.String("kind", raw.Kind), zap.Error(err))
		}
		return
	}

	convID := evt.Conversation()
	if e.rec.Apply(evt) {
		e.logger.Info("event for unknown conversation, requesting refetch",
			zap.String("kind", raw.Kind), zap.String("conversation", convID))
		e.bus.Publish(bus.Event{
			Kind:      bus.KindRefetchNeeded,
			Timestamp: time.Now(),
			Payload:   convID,
		})
		return
	}

	e.bus.Publish(bus.Event{
		Kind:      bus.KindStateUpdated,
		Timestamp: time.Now(),
		Payload:   convID,
	})
}
