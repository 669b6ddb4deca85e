package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"aquasim-server/internal/telemetry"
)

const defaultSubscriberBuffer = 16

// Hub fans events out to in-process subscribers. A subscriber whose buffer
// is full misses the event; publishing never blocks.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[telemetry.Kind]map[chan Event]struct{}
	dropped     atomic.Int64
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[telemetry.Kind]map[chan Event]struct{}),
		logger:      logger.With("component", "broadcast_hub"),
	}
}

// Subscribe registers a listener for kind. The returned cancel func must be
// called to release it; it closes the channel.
func (h *Hub) Subscribe(kind telemetry.Kind, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.subscribers[kind] == nil {
		h.subscribers[kind] = make(map[chan Event]struct{})
	}
	h.subscribers[kind][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[kind], ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Subscribers(kind telemetry.Kind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[kind])
}

// Dropped counts deliveries skipped because a subscriber was too slow
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Publish never blocks; a cancelled ctx skips delivery
func (h *Hub) Publish(ctx context.Context, kind telemetry.Kind, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	event, err := NewEvent(kind, record, time.Now())
	if err != nil {
		return err
	}
	h.Broadcast(event)
	return nil
}

func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.Topic] {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
			h.logger.Debug("Subscriber buffer full, event dropped", "topic", event.Topic)
		}
	}
}
