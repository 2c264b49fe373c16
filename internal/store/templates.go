package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

// TemplateStore reads and writes tenant templates. A tenant has at most one
// template per record kind.
type TemplateStore struct{ db *DB }

func (d *DB) Templates() *TemplateStore { return &TemplateStore{db: d} }

var templateColumns = []string{
	"id", "tenant_id", "name", "entity", "fields",
	"created_at", "updated_at", "created_by", "updated_by",
}

func scanTemplate(s rowScanner) (*template.Template, error) {
	var (
		t      template.Template
		fields []byte
	)
	if err := s.Scan(&t.ID, &t.TenantID, &t.Name, &t.Entity, &fields,
		&t.CreatedAt, &t.UpdatedAt, &t.CreatedBy, &t.UpdatedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &t.Fields); err != nil {
		return nil, fmt.Errorf("decoding template %s fields: %w", t.ID, err)
	}
	return &t, nil
}

func (s *TemplateStore) selectOne(ctx context.Context, pred *entsql.Predicate) (*template.Template, error) {
	query, args := s.db.q().Select(templateColumns...).
		From(entsql.Table("templates")).
		Where(pred).
		Query()
	t, err := scanTemplate(s.db.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting template: %w", err)
	}
	return t, nil
}

// Get returns a template by ID.
func (s *TemplateStore) Get(ctx context.Context, tenantID, id string) (*template.Template, error) {
	return s.selectOne(ctx, entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id)))
}

// GetForEntity returns the tenant's active template for a record kind.
func (s *TemplateStore) GetForEntity(ctx context.Context, tenantID, entity string) (*template.Template, error) {
	return s.selectOne(ctx, entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("entity", entity)))
}

// List returns the tenant's templates ordered by entity.
func (s *TemplateStore) List(ctx context.Context, tenantID string) ([]*template.Template, error) {
	query, args := s.db.q().Select(templateColumns...).
		From(entsql.Table("templates")).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy("entity").
		Query()
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var out []*template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create inserts t. A second template for the same tenant and entity is
// rejected with ErrConflict.
func (s *TemplateStore) Create(ctx context.Context, t *template.Template, audit types.Audit) error {
	if _, err := s.GetForEntity(ctx, t.TenantID, t.Entity); err == nil {
		return fmt.Errorf("%w: tenant already has a %s template", ErrConflict, t.Entity)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if t.ID == "" {
		t.ID = newID()
	}
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("encoding template fields: %w", err)
	}
	now := s.db.now()
	t.CreatedAt, t.UpdatedAt = now, now
	t.CreatedBy, t.UpdatedBy = audit.Actor, audit.Actor

	cols := append([]string{"id", "tenant_id", "name", "entity", "fields"}, auditColumns...)
	vals := append([]any{t.ID, t.TenantID, t.Name, t.Entity, string(fields)}, auditValues(audit, now)...)
	query, args := s.db.q().Insert("templates").Columns(cols...).Values(vals...).Query()
	if _, err := s.db.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: tenant already has a %s template", ErrConflict, t.Entity)
		}
		return fmt.Errorf("inserting template: %w", err)
	}
	return nil
}

// Update replaces the name and fields of an existing template. The entity
// kind is immutable.
func (s *TemplateStore) Update(ctx context.Context, t *template.Template, audit types.Audit) error {
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("encoding template fields: %w", err)
	}
	now := s.db.now()
	u := s.db.q().Update("templates").
		Set("name", t.Name).
		Set("fields", string(fields))
	query, args := setAudit(u, audit, now).
		Where(entsql.And(entsql.EQ("tenant_id", t.TenantID), entsql.EQ("id", t.ID))).
		Query()
	if err := execOne(ctx, s.db.db, query, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating template: %w", err)
	}
	t.UpdatedAt, t.UpdatedBy = now, audit.Actor
	return nil
}

// Delete removes a template. Records keep their stored data.
func (s *TemplateStore) Delete(ctx context.Context, tenantID, id string) error {
	query, args := s.db.q().Delete("templates").
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id))).
		Query()
	if err := execOne(ctx, s.db.db, query, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting template: %w", err)
	}
	return nil
}

// isUniqueViolation matches the unique-constraint errors of both drivers.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
