package service

import (
	"context"
	"strings"
	"time"

	"github.com/matthewbaird/compliance/internal/entity"
	"github.com/matthewbaird/compliance/internal/store"
	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

// RecordInput is the body of a new document, task or inspection.
type RecordInput struct {
	Title   string        `json:"title"`
	Status  entity.Status `json:"status,omitempty"`
	DueDate *time.Time    `json:"due_date,omitempty"`
	Data    template.Data `json:"data"`
}

// RecordPatch changes some fields of a record. Data keys are merged into the
// stored data and the result is validated as a whole.
type RecordPatch struct {
	Title   *string       `json:"title,omitempty"`
	DueDate *time.Time    `json:"due_date,omitempty"`
	Data    template.Data `json:"data,omitempty"`
}

// Records applies the template gate and the status graph to every record
// kind.
type Records struct {
	registry  entity.Registry
	templates *Templates
	buildings *store.BuildingStore
	now       func() time.Time
}

func NewRecords(db *store.DB, templates *Templates) *Records {
	return &Records{
		registry:  db.Registry(),
		templates: templates,
		buildings: db.Buildings(),
		now:       time.Now,
	}
}

// gate validates data against the kind's active template and returns the
// validated subset. Invalid data yields a *ValidationError.
func (s *Records) gate(ctx context.Context, tenantID string, kind entity.Kind, data template.Data) (template.Data, error) {
	t, err := s.templates.Active(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	res := template.Validate(t, data)
	if !res.Valid {
		return nil, &ValidationError{Result: res}
	}
	return res.Data, nil
}

// Create stores a record on a building after its data passes the template.
func (s *Records) Create(ctx context.Context, kind entity.Kind, tenantID, buildingID string, in RecordInput, audit types.Audit) (*entity.Record, error) {
	ops, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	status := in.Status
	if status == "" {
		status = entity.StatusOpen
	}
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	if _, err := s.buildings.Get(ctx, tenantID, buildingID); err != nil {
		return nil, err
	}
	data, err := s.gate(ctx, tenantID, kind, in.Data)
	if err != nil {
		return nil, err
	}

	r := &entity.Record{
		TenantID:   tenantID,
		BuildingID: buildingID,
		Title:      title,
		Status:     status,
		DueDate:    in.DueDate,
		Data:       data,
	}
	if status == entity.StatusCompleted {
		now := s.now().UTC()
		r.CompletedAt = &now
	}
	if err := ops.Insert(ctx, r, audit); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Records) Get(ctx context.Context, kind entity.Kind, tenantID, id string) (*entity.Record, error) {
	ops, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return ops.Fetch(ctx, tenantID, id)
}

// List returns a building's records of one kind.
func (s *Records) List(ctx context.Context, kind entity.Kind, tenantID, buildingID string, page types.Page) ([]*entity.Record, error) {
	ops, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	if _, err := s.buildings.Get(ctx, tenantID, buildingID); err != nil {
		return nil, err
	}
	return ops.List(ctx, tenantID, buildingID, page)
}

// Update applies p. Status changes go through Transition.
func (s *Records) Update(ctx context.Context, kind entity.Kind, tenantID, id string, p RecordPatch, audit types.Audit) (*entity.Record, error) {
	ops, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	r, err := ops.Fetch(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, invalid("title must not be empty")
		}
		r.Title = title
	}
	if p.DueDate != nil {
		r.DueDate = p.DueDate
	}
	if p.Data != nil {
		merged := make(template.Data, len(r.Data)+len(p.Data))
		for k, v := range r.Data {
			merged[k] = v
		}
		for k, v := range p.Data {
			merged[k] = v
		}
		if r.Data, err = s.gate(ctx, tenantID, kind, merged); err != nil {
			return nil, err
		}
	}
	if err := ops.Update(ctx, r, audit); err != nil {
		return nil, err
	}
	return r, nil
}

// Transition moves a record to target along the status graph and returns the
// record with the status it left. Completing stamps completed_at; leaving
// completed clears it.
func (s *Records) Transition(ctx context.Context, kind entity.Kind, tenantID, id string, target entity.Status, audit types.Audit) (*entity.Record, entity.Status, error) {
	ops, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, "", err
	}
	if !target.Valid() {
		return nil, "", invalid("unknown status %q", target)
	}
	r, err := ops.Fetch(ctx, tenantID, id)
	if err != nil {
		return nil, "", err
	}
	from := r.Status
	if err := entity.ValidateTransition(from, target); err != nil {
		return nil, "", err
	}

	r.Status = target
	switch {
	case target == entity.StatusCompleted:
		now := s.now().UTC()
		r.CompletedAt = &now
	case from == entity.StatusCompleted:
		r.CompletedAt = nil
	}
	if err := ops.Update(ctx, r, audit); err != nil {
		return nil, "", err
	}
	return r, from, nil
}

// Delete removes a record and returns it.
func (s *Records) Delete(ctx context.Context, kind entity.Kind, tenantID, id string) (*entity.Record, error) {
	ops, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	r, err := ops.Fetch(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ops.Delete(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return r, nil
}
