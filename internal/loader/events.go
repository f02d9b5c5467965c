package loader

import "sync"

// Event types published by a viewer.
const (
	EventOpened = "opened"
	EventClosed = "closed"
)

// Event is one viewer state change.
type Event struct {
	Type       string `json:"type"`
	ViewerID   string `json:"viewer_id"`
	Generation uint64 `json:"generation"`
	View       *View  `json:"view,omitempty"`
}

const subscriberBuffer = 16

// hub fans events out to subscribers. Slow subscribers miss events rather
// than block the viewer.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
