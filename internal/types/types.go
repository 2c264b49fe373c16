// Package types holds small value types shared across the storage, event and
// HTTP layers.
package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// Address is a UK-style postal address for a building.
type Address struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"` // ISO 3166-1 alpha-2
}

// Audit carries who made a change and why, taken from request headers.
type Audit struct {
	Actor         string
	Source        string // "user", "agent", "import", "system", "migration"
	CorrelationID *string
}

// SystemAudit is used for changes made by the service itself.
var SystemAudit = Audit{Actor: "system", Source: "system"}

// NullTime is a patch field for a nullable timestamp. Set records whether the
// key was present at all; a present null clears the stored value.
type NullTime struct {
	Set   bool
	Value *time.Time
}

func (n *NullTime) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	n.Value = &t
	return nil
}

func (n NullTime) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// Page holds pagination parameters.
type Page struct {
	Limit  int
	Offset int
}

// SourceRef identifies an entity referenced by a domain event.
type SourceRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "context", "related"
}

// ActivityEntry is one line of an entity's activity feed. A domain event
// produces one entry per entity it references.
type ActivityEntry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	TenantID          string          `json:"tenant_id"`
	OccurredAt        time.Time       `json:"occurred_at"`
	IndexedEntityType string          `json:"indexed_entity_type"`
	IndexedEntityID   string          `json:"indexed_entity_id"`
	EntityRole        string          `json:"entity_role"`
	SourceRefs        []SourceRef     `json:"source_refs"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"` // "building", "compliance", "template", "record"
	Actor             string          `json:"actor,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}
