// Package live pushes compliance summaries to websocket subscribers as the
// checks and tasks of a building change.
package live

import (
	"sync"

	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/compliance"
)

const subscriptionBuffer = 4

type topic struct {
	tenantID   string
	buildingID string
}

// Hub fans summaries out to the subscribers of each building.
type Hub struct {
	mu     sync.Mutex
	subs   map[topic]map[*Subscription]struct{}
	closed bool
	logger *zap.Logger

	// OriginPatterns is passed to websocket.Accept.
	OriginPatterns []string
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:           make(map[topic]map[*Subscription]struct{}),
		logger:         logger.Named("live"),
		OriginPatterns: []string{"*"},
	}
}

// Subscription receives summaries for one building. C is closed when the
// subscription ends.
type Subscription struct {
	C <-chan compliance.Summary

	ch    chan compliance.Summary
	hub   *Hub
	topic topic
	once  sync.Once
}

// Subscribe registers interest in a building's summaries.
func (h *Hub) Subscribe(tenantID, buildingID string) *Subscription {
	ch := make(chan compliance.Summary, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, topic: topic{tenantID, buildingID}}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	set, ok := h.subs[sub.topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sub.topic] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		if set, ok := s.hub.subs[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.topic)
			}
		}
		close(s.ch)
	})
}

// Subscribers returns the number of live subscriptions for a building.
func (h *Hub) Subscribers(tenantID, buildingID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic{tenantID, buildingID}])
}

// Broadcast delivers a summary to every subscriber of the building. A slow
// subscriber loses its oldest pending summary rather than blocking the hub.
func (h *Hub) Broadcast(tenantID string, s compliance.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[topic{tenantID, s.BuildingID}] {
		select {
		case sub.ch <- s:
			continue
		default:
		}
		select {
		case <-sub.ch:
			h.logger.Debug("subscriber lagging, dropped oldest summary",
				zap.String("tenant_id", tenantID), zap.String("building_id", s.BuildingID))
		default:
		}
		select {
		case sub.ch <- s:
		default:
		}
	}
}

// CloseBuilding ends every subscription to a building.
func (h *Hub) CloseBuilding(tenantID, buildingID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[topic{tenantID, buildingID}] {
		sub.closeLocked()
	}
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			sub.closeLocked()
		}
	}
}
