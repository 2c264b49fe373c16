// Package entity defines the template-bound record kinds (documents, tasks,
// inspections) and the dispatch table that routes generic record operations
// to the store for each kind.
package entity

import (
	"fmt"
	"time"

	"github.com/matthewbaird/compliance/internal/template"
)

// Kind is the closed set of record kinds that carry template data.
type Kind string

const (
	KindDocument   Kind = "document"
	KindTask       Kind = "task"
	KindInspection Kind = "inspection"
)

// Kinds lists every record kind.
var Kinds = []Kind{KindDocument, KindTask, KindInspection}

// ParseKind accepts the singular kind or its plural route segment
// ("tasks" → task).
func ParseKind(s string) (Kind, error) {
	switch s {
	case "document", "documents":
		return KindDocument, nil
	case "task", "tasks":
		return KindTask, nil
	case "inspection", "inspections":
		return KindInspection, nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// Plural is the route segment and table name for the kind.
func (k Kind) Plural() string { return string(k) + "s" }

// Status is the lifecycle state shared by every record kind.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every record status.
var Statuses = []string{
	string(StatusOpen), string(StatusInProgress), string(StatusCompleted), string(StatusCancelled),
}

// Transitions is the allowed status graph for records.
var Transitions = map[string][]string{
	string(StatusOpen):       {string(StatusInProgress), string(StatusCompleted), string(StatusCancelled)},
	string(StatusInProgress): {string(StatusCompleted), string(StatusOpen), string(StatusCancelled)},
	string(StatusCompleted):  {string(StatusOpen)},
	string(StatusCancelled):  {string(StatusOpen)},
}

// Record is a document, task or inspection attached to a building. Data holds
// the validated template values.
type Record struct {
	ID            string        `json:"id"`
	Kind          Kind          `json:"kind"`
	TenantID      string        `json:"tenant_id"`
	BuildingID    string        `json:"building_id"`
	Title         string        `json:"title"`
	Status        Status        `json:"status"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Data          template.Data `json:"data"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	CreatedBy     string        `json:"created_by,omitempty"`
	UpdatedBy     string        `json:"updated_by,omitempty"`
	CorrelationID *string       `json:"correlation_id,omitempty"`
}
