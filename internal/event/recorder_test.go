package event

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/compliance/internal/activity"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, evt DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func TestActivityRecorder_FansOutPerEntity(t *testing.T) {
	ctx := context.Background()
	store := activity.NewMemoryStore()
	pub := &capturePublisher{}
	rec := NewActivityRecorder(store)
	rec.SetPublisher(pub)

	evt := NewComplianceCheckRecorded(Meta{TenantID: "t1", Actor: "alice"}, CheckPayload{
		CheckID:    "check-123456789",
		BuildingID: "building-1",
		CheckType:  "fire_alarm_testing",
		Status:     "success",
	})
	require.NoError(t, rec.Record(ctx, evt))

	byBuilding, _, total, err := store.QueryByEntity(ctx, "t1", "building", "building-1", activity.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "context", byBuilding[0].EntityRole)
	assert.Equal(t, "alice", byBuilding[0].Actor)
	assert.Equal(t, "fire_alarm_testing check recorded as success", byBuilding[0].Summary)

	_, _, total, err = store.QueryByEntity(ctx, "t1", "compliance_check", "check-123456789", activity.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.Len(t, pub.events, 1)
	assert.Equal(t, evt.ID, pub.events[0].ID)
}

func TestDomainEvent_BuildingID(t *testing.T) {
	m := Meta{TenantID: "t1", Actor: "bob"}

	evt := NewRecordUpdated(m, RecordPayload{
		Kind: "task", RecordID: "r1", BuildingID: "b1", Title: "Replace smoke alarm",
		Status: "completed", FromStatus: "open",
	})
	id, ok := evt.BuildingID()
	assert.True(t, ok)
	assert.Equal(t, "b1", id)
	assert.True(t, evt.AffectsCompliance())
	assert.Equal(t, `task "Replace smoke alarm" moved from open to completed`, evt.Summary)

	tmpl := NewTemplateSaved(m, TemplatePayload{TemplateID: "tpl", Entity: "task", Keys: []string{"a", "b"}})
	_, ok = tmpl.BuildingID()
	assert.False(t, ok)
	assert.False(t, tmpl.AffectsCompliance())
	assert.Equal(t, "task template saved with 2 fields", tmpl.Summary)
}
