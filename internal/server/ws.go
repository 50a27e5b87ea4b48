package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/mstavrou/macrodash/internal/refresh"
)

const wsWriteWait = 10 * time.Second

// EventHub fans refresh progress events out to connected WebSocket
// clients. Slow clients drop events rather than blocking a run.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[chan refresh.Event]struct{}
	closed      bool
	log         zerolog.Logger
}

// NewEventHub creates an empty hub.
func NewEventHub(log zerolog.Logger) *EventHub {
	return &EventHub{
		subscribers: make(map[chan refresh.Event]struct{}),
		log:         log.With().Str("component", "event_hub").Logger(),
	}
}

// Broadcast delivers an event to every subscriber. Non-blocking: a full
// subscriber buffer drops the event for that client.
func (h *EventHub) Broadcast(event refresh.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close disconnects all subscribers.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}

func (h *EventHub) subscribe() (chan refresh.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false
	}
	ch := make(chan refresh.Event, 64)
	h.subscribers[ch] = struct{}{}
	return ch, true
}

func (h *EventHub) unsubscribe(ch chan refresh.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// HandleWS upgrades the connection and streams refresh events until the
// client disconnects.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, ok := h.subscribe()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unsubscribe(ch)

	h.log.Debug().Msg("WebSocket client connected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			if err := h.writeEvent(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("WebSocket client disconnected")
				return
			}
		}
	}
}

func (h *EventHub) writeEvent(ctx context.Context, conn *websocket.Conn, event refresh.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
