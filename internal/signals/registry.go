// Package signals classifies a building's activity into weighted signals and
// aggregates them into an attention summary with escalations.
package signals

import "github.com/matthewbaird/compliance/internal/event"

type Weight string

const (
	WeightCritical Weight = "critical"
	WeightStrong   Weight = "strong"
	WeightModerate Weight = "moderate"
	WeightWeak     Weight = "weak"
	WeightInfo     Weight = "info"
)

// WeightOrder maps weights to severity (lower is more severe).
var WeightOrder = map[Weight]int{
	WeightCritical: 1,
	WeightStrong:   2,
	WeightModerate: 3,
	WeightWeak:     4,
	WeightInfo:     5,
}

type Polarity string

const (
	Positive Polarity = "positive"
	Negative Polarity = "negative"
	Neutral  Polarity = "neutral"
)

// Signal categories.
const (
	CategoryCompliance  = "compliance"
	CategoryMaintenance = "maintenance"
)

// Registration maps an event type, optionally narrowed by a payload
// condition, to a signal.
type Registration struct {
	ID          string
	EventType   string
	Condition   string // "field == value", "field > N", ...
	Category    string
	Weight      Weight
	Polarity    Polarity
	Description string
}

// Requirement is one leg of a cross-category rule.
type Requirement struct {
	Category string
	Polarity Polarity
	MinCount int
}

// Rule escalates a pattern of signals. Count rules need Count matching
// signals within WithinDays; cross-category rules need every Requirement met
// in the same window.
type Rule struct {
	ID                string
	Description       string
	Category          string
	Polarity          Polarity
	Count             int
	Requirements      []Requirement
	WithinDays        int
	EscalatedWeight   Weight
	RecommendedAction string
}

var Registry = []Registration{
	{ID: "check_passed", EventType: event.TypeComplianceCheckRecorded, Condition: "status == success",
		Category: CategoryCompliance, Weight: WeightInfo, Polarity: Positive, Description: "Check recorded as passed"},
	{ID: "check_warning", EventType: event.TypeComplianceCheckRecorded, Condition: "status == warning",
		Category: CategoryCompliance, Weight: WeightModerate, Polarity: Negative, Description: "Check recorded with a warning"},
	{ID: "check_overdue", EventType: event.TypeComplianceCheckRecorded, Condition: "status == overdue",
		Category: CategoryCompliance, Weight: WeightStrong, Polarity: Negative, Description: "Check recorded as overdue"},
	{ID: "check_pending", EventType: event.TypeComplianceCheckRecorded,
		Category: CategoryCompliance, Weight: WeightWeak, Polarity: Neutral, Description: "Check scheduled"},

	{ID: "check_resolved", EventType: event.TypeComplianceCheckUpdated, Condition: "status == success",
		Category: CategoryCompliance, Weight: WeightWeak, Polarity: Positive, Description: "Check updated to passed"},
	{ID: "check_lapsed", EventType: event.TypeComplianceCheckUpdated, Condition: "status == overdue",
		Category: CategoryCompliance, Weight: WeightStrong, Polarity: Negative, Description: "Check updated to overdue"},
	{ID: "check_degraded", EventType: event.TypeComplianceCheckUpdated, Condition: "status == warning",
		Category: CategoryCompliance, Weight: WeightModerate, Polarity: Negative, Description: "Check updated to warning"},

	{ID: "record_completed", EventType: event.TypeRecordUpdated, Condition: "status == completed",
		Category: CategoryMaintenance, Weight: WeightInfo, Polarity: Positive, Description: "Work completed"},
	{ID: "record_cancelled", EventType: event.TypeRecordUpdated, Condition: "status == cancelled",
		Category: CategoryMaintenance, Weight: WeightModerate, Polarity: Negative, Description: "Work cancelled"},
	{ID: "record_reopened", EventType: event.TypeRecordUpdated, Condition: "from_status == completed",
		Category: CategoryMaintenance, Weight: WeightModerate, Polarity: Negative, Description: "Completed work reopened"},
	{ID: "record_opened", EventType: event.TypeRecordCreated,
		Category: CategoryMaintenance, Weight: WeightInfo, Polarity: Neutral, Description: "Work raised"},
}

var Rules = []Rule{
	{
		ID:                "compliance_failures_acute",
		Description:       "Several failed or late checks in a month",
		Category:          CategoryCompliance,
		Polarity:          Negative,
		Count:             3,
		WithinDays:        30,
		EscalatedWeight:   WeightCritical,
		RecommendedAction: "Review the building's compliance programme with the contractor now.",
	},
	{
		ID:                "compliance_failures_pattern",
		Description:       "Repeated failed or late checks",
		Category:          CategoryCompliance,
		Polarity:          Negative,
		Count:             3,
		WithinDays:        180,
		EscalatedWeight:   WeightStrong,
		RecommendedAction: "Schedule remedial inspections for the failing check types.",
	},
	{
		ID:                "maintenance_churn",
		Description:       "Work repeatedly cancelled or reopened",
		Category:          CategoryMaintenance,
		Polarity:          Negative,
		Count:             3,
		WithinDays:        90,
		EscalatedWeight:   WeightModerate,
		RecommendedAction: "Check contractor capacity for the building.",
	},
	{
		ID:          "failing_checks_stalled_work",
		Description: "Failing checks while remedial work stalls",
		Requirements: []Requirement{
			{Category: CategoryCompliance, Polarity: Negative, MinCount: 1},
			{Category: CategoryMaintenance, Polarity: Negative, MinCount: 2},
		},
		WithinDays:        90,
		EscalatedWeight:   WeightStrong,
		RecommendedAction: "Escalate the outstanding remedial work.",
	},
}

var byEventType = func() map[string][]Registration {
	m := make(map[string][]Registration)
	for _, r := range Registry {
		m[r.EventType] = append(m[r.EventType], r)
	}
	return m
}()

// Lookup returns the registrations for an event type in registry order.
func Lookup(eventType string) []Registration { return byEventType[eventType] }
