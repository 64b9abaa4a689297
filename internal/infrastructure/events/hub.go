package events

import (
	"sync"
	"time"

	"pagesmith/internal/domain/entity"
)

// BuildEvent is one status transition of a build, streamed to websocket
// subscribers.
type BuildEvent struct {
	BuildID string             `json:"build_id"`
	Status  entity.BuildStatus `json:"status"`
	Error   string             `json:"error,omitempty"`
	At      time.Time          `json:"at"`
}

// Hub fans build events out to per-build subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan BuildEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan BuildEvent]struct{}),
	}
}

// Subscribe registers for events of one build. The returned cancel func
// must be called to release the subscription.
func (h *Hub) Subscribe(buildID string) (<-chan BuildEvent, func()) {
	ch := make(chan BuildEvent, 16)

	h.mu.Lock()
	if h.subs[buildID] == nil {
		h.subs[buildID] = make(map[chan BuildEvent]struct{})
	}
	h.subs[buildID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[buildID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, buildID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers an event to current subscribers. Slow subscribers lose
// events rather than block the pipeline.
func (h *Hub) Publish(ev BuildEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[ev.BuildID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
