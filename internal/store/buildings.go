package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/compliance/internal/types"
)

// Building is a managed property owned by a tenant.
type Building struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenant_id"`
	Name      string        `json:"name"`
	Address   types.Address `json:"address"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	CreatedBy string        `json:"created_by,omitempty"`
	UpdatedBy string        `json:"updated_by,omitempty"`
}

// Check validates the fields a building must carry.
func (b *Building) Check() error {
	var errs []error
	if strings.TrimSpace(b.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(b.Address.Line1) == "" {
		errs = append(errs, errors.New("address.line1 is required"))
	}
	if strings.TrimSpace(b.Address.City) == "" {
		errs = append(errs, errors.New("address.city is required"))
	}
	if strings.TrimSpace(b.Address.Postcode) == "" {
		errs = append(errs, errors.New("address.postcode is required"))
	}
	if c := b.Address.Country; c != "" && len(c) != 2 {
		errs = append(errs, fmt.Errorf("address.country %q must be a two-letter code", c))
	}
	return errors.Join(errs...)
}

// BuildingFilter narrows a building listing. Empty fields match everything.
type BuildingFilter struct {
	Query    string // case-insensitive match on name
	City     string
	Postcode string
}

// BuildingStore reads and writes buildings.
type BuildingStore struct{ db *DB }

func (d *DB) Buildings() *BuildingStore { return &BuildingStore{db: d} }

var buildingColumns = []string{
	"id", "tenant_id", "name", "address_line1", "address_line2", "city", "postcode", "country",
	"created_at", "updated_at", "created_by", "updated_by",
}

func scanBuilding(s rowScanner) (*Building, error) {
	var b Building
	if err := s.Scan(
		&b.ID, &b.TenantID, &b.Name,
		&b.Address.Line1, &b.Address.Line2, &b.Address.City, &b.Address.Postcode, &b.Address.Country,
		&b.CreatedAt, &b.UpdatedAt, &b.CreatedBy, &b.UpdatedBy,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts b, assigning an ID when it has none.
func (s *BuildingStore) Create(ctx context.Context, b *Building, audit types.Audit) error {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.Address.Country == "" {
		b.Address.Country = "GB"
	}
	now := s.db.now()
	b.CreatedAt, b.UpdatedAt = now, now
	b.CreatedBy, b.UpdatedBy = audit.Actor, audit.Actor

	cols := append([]string{"id", "tenant_id", "name", "address_line1", "address_line2", "city", "postcode", "country"}, auditColumns...)
	vals := append([]any{
		b.ID, b.TenantID, b.Name,
		b.Address.Line1, b.Address.Line2, b.Address.City, b.Address.Postcode, b.Address.Country,
	}, auditValues(audit, now)...)

	query, args := s.db.q().Insert("buildings").Columns(cols...).Values(vals...).Query()
	if _, err := s.db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting building: %w", err)
	}
	return nil
}

// Get returns one building.
func (s *BuildingStore) Get(ctx context.Context, tenantID, id string) (*Building, error) {
	query, args := s.db.q().Select(buildingColumns...).
		From(entsql.Table("buildings")).
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id))).
		Query()
	b, err := scanBuilding(s.db.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting building: %w", err)
	}
	return b, nil
}

// List returns the tenant's buildings ordered by name.
func (s *BuildingStore) List(ctx context.Context, tenantID string, f BuildingFilter, page types.Page) ([]*Building, error) {
	page = limitOrDefault(page)
	preds := []*entsql.Predicate{entsql.EQ("tenant_id", tenantID)}
	if q := strings.TrimSpace(f.Query); q != "" {
		preds = append(preds, entsql.ContainsFold("name", q))
	}
	if f.City != "" {
		preds = append(preds, entsql.EqualFold("city", f.City))
	}
	if f.Postcode != "" {
		preds = append(preds, entsql.EqualFold("postcode", f.Postcode))
	}

	query, args := s.db.q().Select(buildingColumns...).
		From(entsql.Table("buildings")).
		Where(entsql.And(preds...)).
		OrderBy("name", "id").
		Limit(page.Limit).
		Offset(page.Offset).
		Query()
	return s.list(ctx, query, args)
}

// All returns every building the tenant owns, ordered by name.
func (s *BuildingStore) All(ctx context.Context, tenantID string) ([]*Building, error) {
	query, args := s.db.q().Select(buildingColumns...).
		From(entsql.Table("buildings")).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy("name", "id").
		Query()
	return s.list(ctx, query, args)
}

func (s *BuildingStore) list(ctx context.Context, query string, args []any) ([]*Building, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing buildings: %w", err)
	}
	defer rows.Close()

	var out []*Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Update overwrites the building's name and address.
func (s *BuildingStore) Update(ctx context.Context, b *Building, audit types.Audit) error {
	now := s.db.now()
	u := s.db.q().Update("buildings").
		Set("name", b.Name).
		Set("address_line1", b.Address.Line1).
		Set("address_line2", b.Address.Line2).
		Set("city", b.Address.City).
		Set("postcode", b.Address.Postcode).
		Set("country", b.Address.Country)
	query, args := setAudit(u, audit, now).
		Where(entsql.And(entsql.EQ("tenant_id", b.TenantID), entsql.EQ("id", b.ID))).
		Query()
	if err := execOne(ctx, s.db.db, query, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating building: %w", err)
	}
	b.UpdatedAt, b.UpdatedBy = now, audit.Actor
	return nil
}

// Delete removes the building together with its checks and records.
func (s *BuildingStore) Delete(ctx context.Context, tenantID, id string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"compliance_checks", "documents", "tasks", "inspections"} {
			query, args := s.db.q().Delete(table).
				Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("building_id", id))).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("deleting %s for building: %w", table, err)
			}
		}
		query, args := s.db.q().Delete("buildings").
			Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id))).
			Query()
		if err := execOne(ctx, tx, query, args); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("deleting building: %w", err)
		}
		return nil
	})
}

// Exists reports whether the tenant owns the building.
func (s *BuildingStore) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	_, err := s.Get(ctx, tenantID, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
