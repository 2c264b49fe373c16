package signals

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/types"
)

func entry(id, eventType string, payload map[string]any, at time.Time) types.ActivityEntry {
	raw, _ := json.Marshal(payload)
	return types.ActivityEntry{
		EventID:           id,
		EventType:         eventType,
		OccurredAt:        at,
		IndexedEntityType: "building",
		IndexedEntityID:   "b1",
		EntityRole:        "context",
		Payload:           raw,
	}
}

func TestClassify(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		entry    types.ActivityEntry
		wantID   string
		weight   Weight
		polarity Polarity
	}{
		{"passed check", entry("e1", event.TypeComplianceCheckRecorded, map[string]any{"status": "success"}, now),
			"check_passed", WeightInfo, Positive},
		{"overdue check", entry("e2", event.TypeComplianceCheckRecorded, map[string]any{"status": "overdue"}, now),
			"check_overdue", WeightStrong, Negative},
		{"pending falls back", entry("e3", event.TypeComplianceCheckRecorded, map[string]any{"status": "pending"}, now),
			"check_pending", WeightWeak, Neutral},
		{"reopened task", entry("e4", event.TypeRecordUpdated, map[string]any{"status": "open", "from_status": "completed"}, now),
			"record_reopened", WeightModerate, Negative},
		{"cancelled task", entry("e5", event.TypeRecordUpdated, map[string]any{"status": "cancelled", "from_status": "open"}, now),
			"record_cancelled", WeightModerate, Negative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Classify(tt.entry)
			if !ok {
				t.Fatal("expected a match")
			}
			if s.Weight != tt.weight || s.Polarity != tt.polarity {
				t.Errorf("got %s/%s, want %s/%s", s.Weight, s.Polarity, tt.weight, tt.polarity)
			}
			var want Registration
			for _, r := range Registry {
				if r.ID == tt.wantID {
					want = r
				}
			}
			if s.Description != want.Description {
				t.Errorf("description = %q, want %q", s.Description, want.Description)
			}
		})
	}
}

func TestClassify_Unmatched(t *testing.T) {
	now := time.Now()
	if _, ok := Classify(entry("e1", event.TypeBuildingCreated, nil, now)); ok {
		t.Error("building_created should not classify")
	}
	// Record updates with no status change of interest have no fallback.
	if _, ok := Classify(entry("e2", event.TypeRecordUpdated, map[string]any{"status": "in_progress"}, now)); ok {
		t.Error("in_progress update should not classify")
	}
}

func TestClassifyAll_DedupesEvents(t *testing.T) {
	now := time.Now()
	e := entry("e1", event.TypeComplianceCheckRecorded, map[string]any{"status": "warning"}, now)
	sigs := ClassifyAll([]types.ActivityEntry{e, e, entry("e2", event.TypeTemplateSaved, nil, now)})
	if len(sigs) != 1 {
		t.Fatalf("got %d signals, want 1", len(sigs))
	}
}

func TestMatchCondition(t *testing.T) {
	payload := map[string]any{"status": "overdue", "count": float64(3), "done": true}
	tests := []struct {
		cond string
		want bool
	}{
		{"status == overdue", true},
		{"status == success", false},
		{"count > 2", true},
		{"count <= 2", false},
		{"count >= 3", true},
		{"done == true", true},
		{"missing == x", false},
	}
	for _, tt := range tests {
		if got := matchCondition(tt.cond, payload); got != tt.want {
			t.Errorf("matchCondition(%q) = %v, want %v", tt.cond, got, tt.want)
		}
	}
}
