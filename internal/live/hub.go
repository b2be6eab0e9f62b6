// Package live fans seat map changes out to subscribers in this process.
// Delivery is best effort: a subscriber whose buffer is full is dropped and
// its channel closed, so publishing never blocks a mutating caller.
package live

import (
	"sync"

	"go.uber.org/zap"
)

const (
	TypeSnapshot  = "snapshot"
	TypeReserved  = "reserved"
	TypeConfirmed = "confirmed"
	TypeReleased  = "released"
)

// Message is one frame of the per-event stream.
type Message struct {
	Type          string `json:"type"`
	Seats         any    `json:"seats"`
	ReservationID string `json:"reservationId,omitempty"`
}

type Subscription struct {
	C       <-chan Message
	eventID string
	ch      chan Message
}

type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log.With(zap.String("component", "live_hub")),
	}
}

// Subscribe registers a listener for eventID. The caller must Unsubscribe
// when done unless the hub has already closed the channel.
func (h *Hub) Subscribe(eventID string) *Subscription {
	ch := make(chan Message, h.buffer)
	sub := &Subscription{C: ch, eventID: eventID, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[eventID] == nil {
		h.subs[eventID] = make(map[*Subscription]struct{})
	}
	h.subs[eventID][sub] = struct{}{}
	return sub
}

// Unsubscribe is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	subs, ok := h.subs[sub.eventID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.subs, sub.eventID)
	}
}

// Publish delivers msg to every subscriber of eventID without blocking.
func (h *Hub) Publish(eventID string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[eventID] {
		select {
		case sub.ch <- msg:
		default:
			h.log.Debug("Dropping slow subscriber", zap.String("event_id", eventID))
			h.removeLocked(sub)
		}
	}
}

// Subscribers reports how many listeners eventID currently has.
func (h *Hub) Subscribers(eventID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[eventID])
}

// Close disconnects every subscriber. Later Subscribe calls still work.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subs {
		for sub := range subs {
			h.removeLocked(sub)
		}
	}
}
