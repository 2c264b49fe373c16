package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/types"
)

// CheckFilter narrows a building's check history.
type CheckFilter struct {
	Type   compliance.CheckType
	Status compliance.Status
}

// CheckStore reads and writes compliance checks.
type CheckStore struct{ db *DB }

func (d *DB) Checks() *CheckStore { return &CheckStore{db: d} }

var checkColumns = []string{
	"id", "tenant_id", "building_id", "check_type", "status", "due_date", "completed_date", "notes",
	"created_at", "updated_at", "created_by", "updated_by",
}

func scanCheck(s rowScanner) (compliance.Check, error) {
	var (
		c              compliance.Check
		due, completed sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.TenantID, &c.BuildingID, &c.CheckType, &c.Status,
		&due, &completed, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy); err != nil {
		return compliance.Check{}, err
	}
	c.DueDate, c.CompletedDate = timePtr(due), timePtr(completed)
	return c, nil
}

// Create records a new check for a building.
func (s *CheckStore) Create(ctx context.Context, c *compliance.Check, audit types.Audit) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := s.db.now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.CreatedBy, c.UpdatedBy = audit.Actor, audit.Actor

	cols := append([]string{"id", "tenant_id", "building_id", "check_type", "status", "due_date", "completed_date", "notes"}, auditColumns...)
	vals := append([]any{
		c.ID, c.TenantID, c.BuildingID, string(c.CheckType), string(c.Status),
		nullTime(c.DueDate), nullTime(c.CompletedDate), c.Notes,
	}, auditValues(audit, now)...)
	query, args := s.db.q().Insert("compliance_checks").Columns(cols...).Values(vals...).Query()
	if _, err := s.db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting compliance check: %w", err)
	}
	return nil
}

// Get returns one check.
func (s *CheckStore) Get(ctx context.Context, tenantID, id string) (*compliance.Check, error) {
	query, args := s.db.q().Select(checkColumns...).
		From(entsql.Table("compliance_checks")).
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id))).
		Query()
	c, err := scanCheck(s.db.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting compliance check: %w", err)
	}
	return &c, nil
}

// ListByBuilding returns a building's checks in insertion order, so that the
// later of two equally dated checks comes last.
func (s *CheckStore) ListByBuilding(ctx context.Context, tenantID, buildingID string, f CheckFilter) ([]compliance.Check, error) {
	preds := []*entsql.Predicate{entsql.EQ("tenant_id", tenantID), entsql.EQ("building_id", buildingID)}
	if f.Type != "" {
		preds = append(preds, entsql.EQ("check_type", string(f.Type)))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	return s.list(ctx, entsql.And(preds...))
}

// ListByTenant returns every check the tenant owns, grouped by building.
func (s *CheckStore) ListByTenant(ctx context.Context, tenantID string) (map[string][]compliance.Check, error) {
	checks, err := s.list(ctx, entsql.EQ("tenant_id", tenantID))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]compliance.Check)
	for _, c := range checks {
		out[c.BuildingID] = append(out[c.BuildingID], c)
	}
	return out, nil
}

func (s *CheckStore) list(ctx context.Context, pred *entsql.Predicate) ([]compliance.Check, error) {
	query, args := s.db.q().Select(checkColumns...).
		From(entsql.Table("compliance_checks")).
		Where(pred).
		OrderBy("created_at", "id").
		Query()
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing compliance checks: %w", err)
	}
	defer rows.Close()

	var out []compliance.Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning compliance check: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update overwrites the mutable fields of a check.
func (s *CheckStore) Update(ctx context.Context, c *compliance.Check, audit types.Audit) error {
	now := s.db.now()
	u := s.db.q().Update("compliance_checks").
		Set("status", string(c.Status)).
		Set("due_date", nullTime(c.DueDate)).
		Set("completed_date", nullTime(c.CompletedDate)).
		Set("notes", c.Notes)
	query, args := setAudit(u, audit, now).
		Where(entsql.And(entsql.EQ("tenant_id", c.TenantID), entsql.EQ("id", c.ID))).
		Query()
	if err := execOne(ctx, s.db.db, query, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating compliance check: %w", err)
	}
	c.UpdatedAt, c.UpdatedBy = now, audit.Actor
	return nil
}

func (s *CheckStore) Delete(ctx context.Context, tenantID, id string) error {
	query, args := s.db.q().Delete("compliance_checks").
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id))).
		Query()
	if err := execOne(ctx, s.db.db, query, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting compliance check: %w", err)
	}
	return nil
}
