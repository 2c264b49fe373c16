package activity_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/activity"
	"github.com/matthewbaird/compliance/internal/store"
	"github.com/matthewbaird/compliance/internal/types"
)

func newSQLStore(t *testing.T) *activity.SQLStore {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := store.Open(ctx, "sqlite", dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return activity.NewSQLStore(db.SQL(), db.Dialect())
}

func entry(eventID, tenantID, entityID, summary string, at time.Time) types.ActivityEntry {
	return types.ActivityEntry{
		EventID:           eventID,
		EventType:         "compliance_check_recorded",
		TenantID:          tenantID,
		OccurredAt:        at,
		IndexedEntityType: "building",
		IndexedEntityID:   entityID,
		EntityRole:        "context",
		SourceRefs:        []types.SourceRef{{EntityType: "building", EntityID: entityID, Role: "context"}},
		Summary:           summary,
		Category:          "compliance",
		Actor:             "alice",
		Payload:           json.RawMessage(`{"status":"success"}`),
	}
}

func TestSQLStore_WriteAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteEntries(ctx, []types.ActivityEntry{
		entry("e1", "t1", "b1", "Fire alarm testing recorded", base),
		entry("e2", "t1", "b1", "Legionella risk recorded", base.Add(time.Hour)),
		entry("e3", "t2", "b1", "Other tenant", base),
	}))
	// Re-delivery is a no-op.
	require.NoError(t, s.WriteEntries(ctx, []types.ActivityEntry{entry("e1", "t1", "b1", "dup", base)}))

	got, cursor, total, err := s.QueryByEntity(ctx, "t1", "building", "b1", activity.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, cursor)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].EventID)
	assert.Equal(t, "Fire alarm testing recorded", got[1].Summary)
	assert.Equal(t, []types.SourceRef{{EntityType: "building", EntityID: "b1", Role: "context"}}, got[1].SourceRefs)
	assert.JSONEq(t, `{"status":"success"}`, string(got[1].Payload))
	assert.True(t, got[1].OccurredAt.Equal(base))
}

func TestSQLStore_Pagination(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var entries []types.ActivityEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, entry(fmt.Sprintf("e%d", i), "t1", "b1", "entry", base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, s.WriteEntries(ctx, entries))

	page, cursor, total, err := s.QueryByEntity(ctx, "t1", "building", "b1", activity.QueryOptions{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 3)
	require.NotEmpty(t, cursor)

	rest, next, _, err := s.QueryByEntity(ctx, "t1", "building", "b1", activity.QueryOptions{Limit: 3, Cursor: cursor})
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, rest, 2)
	assert.Equal(t, "e1", rest[0].EventID)
	assert.Equal(t, "e0", rest[1].EventID)
}

func TestSQLStore_Search(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.WriteEntries(ctx, []types.ActivityEntry{
		entry("e1", "t1", "b1", "Fire alarm testing recorded", now),
		entry("e2", "t1", "b2", "Asbestos survey recorded", now),
		entry("e3", "t2", "b3", "Fire door inspected", now),
	}))

	got, total, err := s.Search(ctx, "t1", "FIRE", activity.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].EventID)
}
