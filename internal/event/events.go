package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/compliance/internal/types"
)

// Event types.
const (
	TypeBuildingCreated         = "building_created"
	TypeBuildingUpdated         = "building_updated"
	TypeBuildingDeleted         = "building_deleted"
	TypeTemplateSaved           = "template_saved"
	TypeTemplateDeleted         = "template_deleted"
	TypeComplianceCheckRecorded = "compliance_check_recorded"
	TypeComplianceCheckUpdated  = "compliance_check_updated"
	TypeComplianceCheckDeleted  = "compliance_check_deleted"
	TypeRecordCreated           = "record_created"
	TypeRecordUpdated           = "record_updated"
	TypeRecordDeleted           = "record_deleted"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string            `json:"id"`
	EventType        string            `json:"event_type"`
	TenantID         string            `json:"tenant_id"`
	Actor            string            `json:"actor,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
	AffectedEntities []types.SourceRef `json:"affected_entities"`
	Summary          string            `json:"summary"`
	Category         string            `json:"category"` // "building", "template", "compliance", "record"
	Payload          json.RawMessage   `json:"payload,omitempty"`
}

// BuildingID returns the building the event concerns, if any.
func (e DomainEvent) BuildingID() (string, bool) {
	for _, ref := range e.AffectedEntities {
		if ref.EntityType == "building" {
			return ref.EntityID, true
		}
	}
	return "", false
}

// AffectsCompliance reports whether the event can change a building's
// compliance summary.
func (e DomainEvent) AffectsCompliance() bool {
	switch e.EventType {
	case TypeComplianceCheckRecorded, TypeComplianceCheckUpdated, TypeComplianceCheckDeleted,
		TypeRecordCreated, TypeRecordUpdated, TypeRecordDeleted:
		return true
	}
	return false
}

func newEvent(eventType string, m Meta, refs []types.SourceRef, category, summary string, payload any) DomainEvent {
	return DomainEvent{
		ID:               uuid.New().String(),
		EventType:        eventType,
		TenantID:         m.TenantID,
		Actor:            m.Actor,
		OccurredAt:       time.Now().UTC(),
		AffectedEntities: refs,
		Summary:          summary,
		Category:         category,
		Payload:          mustJSON(payload),
	}
}

// Meta identifies who raised an event and for which tenant.
type Meta struct {
	TenantID string
	Actor    string
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── Building events ──────────────────────────────────────────────────────────

// BuildingPayload carries event-specific data for building events.
type BuildingPayload struct {
	BuildingID string `json:"building_id"`
	Name       string `json:"name"`
	Postcode   string `json:"postcode,omitempty"`
}

func NewBuildingCreated(m Meta, p BuildingPayload) DomainEvent {
	return newEvent(TypeBuildingCreated, m,
		[]types.SourceRef{{EntityType: "building", EntityID: p.BuildingID, Role: "subject"}},
		"building", fmt.Sprintf("Building %q created", p.Name), p)
}

func NewBuildingUpdated(m Meta, p BuildingPayload) DomainEvent {
	return newEvent(TypeBuildingUpdated, m,
		[]types.SourceRef{{EntityType: "building", EntityID: p.BuildingID, Role: "subject"}},
		"building", fmt.Sprintf("Building %q updated", p.Name), p)
}

func NewBuildingDeleted(m Meta, p BuildingPayload) DomainEvent {
	return newEvent(TypeBuildingDeleted, m,
		[]types.SourceRef{{EntityType: "building", EntityID: p.BuildingID, Role: "subject"}},
		"building", fmt.Sprintf("Building %s deleted", short(p.BuildingID)), p)
}

// ── Template events ──────────────────────────────────────────────────────────

// TemplatePayload carries event-specific data for template events.
type TemplatePayload struct {
	TemplateID string   `json:"template_id"`
	Entity     string   `json:"entity"`
	Keys       []string `json:"keys,omitempty"`
	Removed    []string `json:"removed_keys,omitempty"`
}

func NewTemplateSaved(m Meta, p TemplatePayload) DomainEvent {
	return newEvent(TypeTemplateSaved, m,
		[]types.SourceRef{{EntityType: "template", EntityID: p.TemplateID, Role: "subject"}},
		"template", fmt.Sprintf("%s template saved with %d fields", p.Entity, len(p.Keys)), p)
}

func NewTemplateDeleted(m Meta, p TemplatePayload) DomainEvent {
	return newEvent(TypeTemplateDeleted, m,
		[]types.SourceRef{{EntityType: "template", EntityID: p.TemplateID, Role: "subject"}},
		"template", fmt.Sprintf("%s template deleted", p.Entity), p)
}

// ── Compliance events ────────────────────────────────────────────────────────

// CheckPayload carries event-specific data for compliance check events.
type CheckPayload struct {
	CheckID    string     `json:"check_id"`
	BuildingID string     `json:"building_id"`
	CheckType  string     `json:"check_type"`
	Status     string     `json:"status"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Completed  *time.Time `json:"completed_date,omitempty"`
}

func checkRefs(p CheckPayload) []types.SourceRef {
	return []types.SourceRef{
		{EntityType: "compliance_check", EntityID: p.CheckID, Role: "subject"},
		{EntityType: "building", EntityID: p.BuildingID, Role: "context"},
	}
}

func NewComplianceCheckRecorded(m Meta, p CheckPayload) DomainEvent {
	return newEvent(TypeComplianceCheckRecorded, m, checkRefs(p), "compliance",
		fmt.Sprintf("%s check recorded as %s", p.CheckType, p.Status), p)
}

func NewComplianceCheckUpdated(m Meta, p CheckPayload) DomainEvent {
	return newEvent(TypeComplianceCheckUpdated, m, checkRefs(p), "compliance",
		fmt.Sprintf("%s check updated to %s", p.CheckType, p.Status), p)
}

func NewComplianceCheckDeleted(m Meta, p CheckPayload) DomainEvent {
	return newEvent(TypeComplianceCheckDeleted, m, checkRefs(p), "compliance",
		fmt.Sprintf("%s check %s deleted", p.CheckType, short(p.CheckID)), p)
}

// ── Record events ────────────────────────────────────────────────────────────

// RecordPayload carries event-specific data for document, task and
// inspection events.
type RecordPayload struct {
	Kind       string `json:"kind"`
	RecordID   string `json:"record_id"`
	BuildingID string `json:"building_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	FromStatus string `json:"from_status,omitempty"`
}

func recordRefs(p RecordPayload) []types.SourceRef {
	return []types.SourceRef{
		{EntityType: p.Kind, EntityID: p.RecordID, Role: "subject"},
		{EntityType: "building", EntityID: p.BuildingID, Role: "context"},
	}
}

func NewRecordCreated(m Meta, p RecordPayload) DomainEvent {
	return newEvent(TypeRecordCreated, m, recordRefs(p), "record",
		fmt.Sprintf("%s %q created", p.Kind, p.Title), p)
}

func NewRecordUpdated(m Meta, p RecordPayload) DomainEvent {
	summary := fmt.Sprintf("%s %q updated", p.Kind, p.Title)
	if p.FromStatus != "" && p.FromStatus != p.Status {
		summary = fmt.Sprintf("%s %q moved from %s to %s", p.Kind, p.Title, p.FromStatus, p.Status)
	}
	return newEvent(TypeRecordUpdated, m, recordRefs(p), "record", summary, p)
}

func NewRecordDeleted(m Meta, p RecordPayload) DomainEvent {
	return newEvent(TypeRecordDeleted, m, recordRefs(p), "record",
		fmt.Sprintf("%s %q deleted", p.Kind, p.Title), p)
}
