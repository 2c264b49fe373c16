package service

import (
	"context"
	"time"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/entity"
	"github.com/matthewbaird/compliance/internal/store"
	"github.com/matthewbaird/compliance/internal/types"
)

// CheckInput is the body of a new compliance check.
type CheckInput struct {
	CheckType     compliance.CheckType `json:"check_type"`
	Status        compliance.Status    `json:"status"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	CompletedDate *time.Time           `json:"completed_date,omitempty"`
	Notes         string               `json:"notes,omitempty"`
}

// CheckPatch changes some fields of a check. The type and building are fixed.
// A date sent as null is cleared.
type CheckPatch struct {
	Status        *compliance.Status `json:"status,omitempty"`
	DueDate       types.NullTime     `json:"due_date"`
	CompletedDate types.NullTime     `json:"completed_date"`
	Notes         *string            `json:"notes,omitempty"`
}

// OverviewEntry is one building's line in the tenant overview.
type OverviewEntry struct {
	BuildingID   string            `json:"building_id"`
	BuildingName string            `json:"building_name"`
	Percentage   int               `json:"percentage"`
	Source       compliance.Source `json:"source"`
}

// Compliance records checks and scores buildings against the catalog.
type Compliance struct {
	checks    *store.CheckStore
	tasks     *store.RecordStore
	buildings *store.BuildingStore
	catalog   compliance.Catalog
}

func NewCompliance(db *store.DB, catalog compliance.Catalog) *Compliance {
	return &Compliance{
		checks:    db.Checks(),
		tasks:     db.Records(entity.KindTask),
		buildings: db.Buildings(),
		catalog:   catalog,
	}
}

func (s *Compliance) Catalog() compliance.Catalog { return s.catalog }

// RecordCheck stores a check for a building. New checks must use a catalog
// type.
func (s *Compliance) RecordCheck(ctx context.Context, tenantID, buildingID string, in CheckInput, audit types.Audit) (*compliance.Check, error) {
	if !s.catalog.Contains(in.CheckType) {
		return nil, invalid("unknown check type %q", in.CheckType)
	}
	if !in.Status.Valid() {
		return nil, invalid("unknown check status %q", in.Status)
	}
	if _, err := s.buildings.Get(ctx, tenantID, buildingID); err != nil {
		return nil, err
	}
	c := &compliance.Check{
		TenantID:      tenantID,
		BuildingID:    buildingID,
		CheckType:     in.CheckType,
		Status:        in.Status,
		DueDate:       in.DueDate,
		CompletedDate: in.CompletedDate,
		Notes:         in.Notes,
	}
	if err := s.checks.Create(ctx, c, audit); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Compliance) Check(ctx context.Context, tenantID, id string) (*compliance.Check, error) {
	return s.checks.Get(ctx, tenantID, id)
}

// UpdateCheck applies p and returns the check with the status it had before.
func (s *Compliance) UpdateCheck(ctx context.Context, tenantID, id string, p CheckPatch, audit types.Audit) (*compliance.Check, compliance.Status, error) {
	c, err := s.checks.Get(ctx, tenantID, id)
	if err != nil {
		return nil, "", err
	}
	from := c.Status
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, "", invalid("unknown check status %q", *p.Status)
		}
		c.Status = *p.Status
	}
	if p.DueDate.Set {
		c.DueDate = p.DueDate.Value
	}
	if p.CompletedDate.Set {
		c.CompletedDate = p.CompletedDate.Value
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if err := s.checks.Update(ctx, c, audit); err != nil {
		return nil, "", err
	}
	return c, from, nil
}

// DeleteCheck removes a check and returns it.
func (s *Compliance) DeleteCheck(ctx context.Context, tenantID, id string) (*compliance.Check, error) {
	c, err := s.checks.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checks.Delete(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return c, nil
}

// Checks returns a building's check history, oldest first.
func (s *Compliance) Checks(ctx context.Context, tenantID, buildingID string, f store.CheckFilter) ([]compliance.Check, error) {
	if _, err := s.buildings.Get(ctx, tenantID, buildingID); err != nil {
		return nil, err
	}
	return s.checks.ListByBuilding(ctx, tenantID, buildingID, f)
}

// Summary scores one building, falling back to its tasks when it has no
// checks.
func (s *Compliance) Summary(ctx context.Context, tenantID, buildingID string) (compliance.Summary, error) {
	if _, err := s.buildings.Get(ctx, tenantID, buildingID); err != nil {
		return compliance.Summary{}, err
	}
	checks, err := s.checks.ListByBuilding(ctx, tenantID, buildingID, store.CheckFilter{})
	if err != nil {
		return compliance.Summary{}, err
	}
	return s.score(ctx, tenantID, buildingID, checks)
}

func (s *Compliance) score(ctx context.Context, tenantID, buildingID string, checks []compliance.Check) (compliance.Summary, error) {
	var counts compliance.TaskCounts
	if len(checks) == 0 {
		var err error
		if counts, err = s.tasks.CountByBuilding(ctx, tenantID, buildingID); err != nil {
			return compliance.Summary{}, err
		}
	}
	return compliance.Displayed(buildingID, checks, counts, s.catalog), nil
}

// Overview scores every building the tenant owns.
func (s *Compliance) Overview(ctx context.Context, tenantID string) ([]OverviewEntry, error) {
	buildings, err := s.buildings.All(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byBuilding, err := s.checks.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]OverviewEntry, 0, len(buildings))
	for _, b := range buildings {
		sum, err := s.score(ctx, tenantID, b.ID, byBuilding[b.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, OverviewEntry{
			BuildingID:   b.ID,
			BuildingName: b.Name,
			Percentage:   sum.Percentage,
			Source:       sum.Source,
		})
	}
	return out, nil
}
