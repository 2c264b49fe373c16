package compliance

import "time"

// Status is the outcome recorded for a compliance check.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusOverdue Status = "overdue"
	StatusPending Status = "pending"
)

// Statuses lists every check status.
var Statuses = []Status{StatusSuccess, StatusWarning, StatusOverdue, StatusPending}

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusWarning, StatusOverdue, StatusPending:
		return true
	}
	return false
}

// Check is one dated compliance record for a building. Several checks of the
// same type form its history; only the most recent one is scored.
type Check struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	BuildingID    string     `json:"building_id"`
	CheckType     CheckType  `json:"check_type"`
	Status        Status     `json:"status"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CreatedBy     string     `json:"created_by,omitempty"`
	UpdatedBy     string     `json:"updated_by,omitempty"`
}

// EffectiveDate is the date recency is judged by: the completion date when
// set, otherwise the due date. ok is false when neither is set.
func (c Check) EffectiveDate() (t time.Time, ok bool) {
	if c.CompletedDate != nil {
		return *c.CompletedDate, true
	}
	if c.DueDate != nil {
		return *c.DueDate, true
	}
	return time.Time{}, false
}

// notOlderThan reports whether c is at least as recent as other. Undated
// checks rank earliest.
func (c Check) notOlderThan(other Check) bool {
	ct, cok := c.EffectiveDate()
	ot, ook := other.EffectiveDate()
	switch {
	case !cok && !ook:
		return true
	case !cok:
		return false
	case !ook:
		return true
	default:
		return !ct.Before(ot)
	}
}
