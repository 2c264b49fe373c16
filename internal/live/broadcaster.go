package live

import (
	"context"
	"fmt"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/event"
)

// SummaryFunc computes the displayed summary of a building.
type SummaryFunc func(ctx context.Context, tenantID, buildingID string) (compliance.Summary, error)

// Broadcaster is an event bus consumer that recomputes a building's summary
// when its checks or records change and pushes it to the hub.
type Broadcaster struct {
	hub       *Hub
	summarize SummaryFunc
}

func NewBroadcaster(hub *Hub, summarize SummaryFunc) *Broadcaster {
	return &Broadcaster{hub: hub, summarize: summarize}
}

func (b *Broadcaster) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	buildingID, ok := evt.BuildingID()
	if !ok {
		return nil
	}
	if evt.EventType == event.TypeBuildingDeleted {
		b.hub.CloseBuilding(evt.TenantID, buildingID)
		return nil
	}
	if !evt.AffectsCompliance() || b.hub.Subscribers(evt.TenantID, buildingID) == 0 {
		return nil
	}

	s, err := b.summarize(ctx, evt.TenantID, buildingID)
	if err != nil {
		return fmt.Errorf("summarizing building %s: %w", buildingID, err)
	}
	b.hub.Broadcast(evt.TenantID, s)
	return nil
}
