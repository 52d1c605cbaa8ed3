// Package infra holds the in-process fan-out used to push direct messages to
// connected members.
package infra

import (
	"sync"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
)

// Hub delivers each published message to the live subscriptions of its
// sender and recipient. Delivery never blocks the publisher: a subscriber
// whose buffer is full is dropped and must reconnect.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

// Subscription is one open stream for a user.
type Subscription struct {
	C <-chan domain.DriverMessage

	ch     chan domain.DriverMessage
	userID string
	hub    *Hub
	once   sync.Once
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer, logger: logger}
}

// Subscribe opens a stream for userID. Callers must Close it.
func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan domain.DriverMessage, h.buffer)
	s := &Subscription{C: ch, ch: ch, userID: userID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][s] = struct{}{}
	return s
}

// Close removes the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.remove(s)
}

// remove must be called with h.mu held.
func (h *Hub) remove(s *Subscription) {
	s.once.Do(func() {
		if set := h.subs[s.userID]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.userID)
			}
		}
		close(s.ch)
	})
}

// Publish implements port.Publisher.
func (h *Hub) Publish(m domain.DriverMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.deliver(m.RecipientID, m)
	if m.SenderID != m.RecipientID {
		h.deliver(m.SenderID, m)
	}
}

func (h *Hub) deliver(userID string, m domain.DriverMessage) {
	for s := range h.subs[userID] {
		select {
		case s.ch <- m:
		default:
			h.logger.Warn("dropping slow message subscriber", zap.String("user_id", userID))
			h.remove(s)
		}
	}
}

// Subscribers returns the number of open streams for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
