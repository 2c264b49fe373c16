package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matthewbaird/compliance/internal/entity"
	"github.com/matthewbaird/compliance/internal/store"
	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

// Templates manages tenant templates.
type Templates struct {
	store    *store.TemplateStore
	registry entity.Registry
}

func NewTemplates(db *store.DB) *Templates {
	return &Templates{store: db.Templates(), registry: db.Registry()}
}

// checkDefinition normalises the entity kind and checks the field list.
func checkDefinition(t *template.Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return invalid("name is required")
	}
	kind, err := entity.ParseKind(t.Entity)
	if err != nil {
		return invalid("%v", err)
	}
	t.Entity = string(kind)
	if err := t.Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Create stores a new template. A tenant has one template per record kind.
func (s *Templates) Create(ctx context.Context, t *template.Template, audit types.Audit) error {
	if err := checkDefinition(t); err != nil {
		return err
	}
	return s.store.Create(ctx, t, audit)
}

// Replace overwrites the name and fields of an existing template and returns
// the keys the new definition drops. Dropping a key that stored records of
// the template's kind still carry fails with store.ErrKeyInUse.
func (s *Templates) Replace(ctx context.Context, tenantID, id string, next template.Template, audit types.Audit) (*template.Template, []string, error) {
	cur, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	next.ID, next.TenantID, next.Entity = cur.ID, cur.TenantID, cur.Entity
	next.CreatedAt, next.CreatedBy = cur.CreatedAt, cur.CreatedBy
	if err := checkDefinition(&next); err != nil {
		return nil, nil, err
	}

	removed := cur.RemovedKeys(next)
	if len(removed) > 0 {
		if err := s.checkKeysUnused(ctx, tenantID, entity.Kind(cur.Entity), removed); err != nil {
			return nil, nil, err
		}
	}
	if err := s.store.Update(ctx, &next, audit); err != nil {
		return nil, nil, err
	}
	return &next, removed, nil
}

func (s *Templates) checkKeysUnused(ctx context.Context, tenantID string, kind entity.Kind, keys []string) error {
	ops, err := s.registry.Lookup(kind)
	if err != nil {
		return err
	}
	used, err := ops.DataKeys(ctx, tenantID)
	if err != nil {
		return err
	}
	var inUse []string
	for _, k := range keys {
		if used[k] {
			inUse = append(inUse, k)
		}
	}
	if len(inUse) > 0 {
		return fmt.Errorf("%w: %s still stored on %s records", store.ErrKeyInUse, strings.Join(inUse, ", "), kind)
	}
	return nil
}

func (s *Templates) Get(ctx context.Context, tenantID, id string) (*template.Template, error) {
	return s.store.Get(ctx, tenantID, id)
}

func (s *Templates) List(ctx context.Context, tenantID string) ([]*template.Template, error) {
	return s.store.List(ctx, tenantID)
}

// Delete removes a template and returns what was deleted. Stored records
// keep their data.
func (s *Templates) Delete(ctx context.Context, tenantID, id string) (*template.Template, error) {
	t, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate runs data against a stored template without persisting anything.
func (s *Templates) Validate(ctx context.Context, tenantID, id string, data template.Data) (template.Result, error) {
	t, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return template.Result{}, err
	}
	return template.Validate(*t, data), nil
}

// Active returns the template bound to kind. A tenant without one gets an
// empty template, which accepts no data keys.
func (s *Templates) Active(ctx context.Context, tenantID string, kind entity.Kind) (template.Template, error) {
	t, err := s.store.GetForEntity(ctx, tenantID, string(kind))
	if errors.Is(err, store.ErrNotFound) {
		return template.Template{TenantID: tenantID, Entity: string(kind)}, nil
	}
	if err != nil {
		return template.Template{}, err
	}
	return *t, nil
}
