package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/entity"
	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

// RecordStore reads and writes one record kind. Documents, tasks and
// inspections share a shape and live in separate tables.
type RecordStore struct {
	db    *DB
	kind  entity.Kind
	table string
}

func (d *DB) Records(kind entity.Kind) *RecordStore {
	return &RecordStore{db: d, kind: kind, table: kind.Plural()}
}

// Registry returns the dispatch table for every record kind.
func (d *DB) Registry() entity.Registry {
	reg := make(entity.Registry, len(entity.Kinds))
	for _, k := range entity.Kinds {
		reg[k] = d.Records(k).Ops()
	}
	return reg
}

// Ops exposes the store through the generic entity operations.
func (s *RecordStore) Ops() entity.Ops {
	return entity.Ops{
		Fetch:    s.Get,
		List:     s.List,
		Insert:   s.Create,
		Update:   s.Update,
		Delete:   s.Delete,
		DataKeys: s.DataKeys,
	}
}

var recordColumns = []string{
	"id", "tenant_id", "building_id", "title", "status", "due_date", "completed_at", "data",
	"created_at", "updated_at", "created_by", "updated_by", "correlation_id",
}

func (s *RecordStore) scan(sc rowScanner) (*entity.Record, error) {
	var (
		r              entity.Record
		due, completed sql.NullTime
		data           []byte
		correlation    sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.TenantID, &r.BuildingID, &r.Title, &r.Status,
		&due, &completed, &data,
		&r.CreatedAt, &r.UpdatedAt, &r.CreatedBy, &r.UpdatedBy, &correlation); err != nil {
		return nil, err
	}
	r.Kind = s.kind
	r.DueDate, r.CompletedAt = timePtr(due), timePtr(completed)
	r.CorrelationID = stringPtr(correlation)
	if err := json.Unmarshal(data, &r.Data); err != nil {
		return nil, fmt.Errorf("decoding %s %s data: %w", s.kind, r.ID, err)
	}
	return &r, nil
}

func encodeData(d template.Data) (string, error) {
	if d == nil {
		d = template.Data{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Create inserts a record, defaulting its status to open.
func (s *RecordStore) Create(ctx context.Context, r *entity.Record, audit types.Audit) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.Status == "" {
		r.Status = entity.StatusOpen
	}
	data, err := encodeData(r.Data)
	if err != nil {
		return fmt.Errorf("encoding %s data: %w", s.kind, err)
	}
	now := s.db.now()
	r.Kind = s.kind
	r.CreatedAt, r.UpdatedAt = now, now
	r.CreatedBy, r.UpdatedBy = audit.Actor, audit.Actor
	r.CorrelationID = audit.CorrelationID

	cols := append([]string{"id", "tenant_id", "building_id", "title", "status", "due_date", "completed_at", "data"}, auditColumns...)
	vals := append([]any{
		r.ID, r.TenantID, r.BuildingID, r.Title, string(r.Status),
		nullTime(r.DueDate), nullTime(r.CompletedAt), data,
	}, auditValues(audit, now)...)
	query, args := s.db.q().Insert(s.table).Columns(cols...).Values(vals...).Query()
	if _, err := s.db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s: %w", s.kind, err)
	}
	return nil
}

func (s *RecordStore) Get(ctx context.Context, tenantID, id string) (*entity.Record, error) {
	query, args := s.db.q().Select(recordColumns...).
		From(entsql.Table(s.table)).
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id))).
		Query()
	r, err := s.scan(s.db.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", s.kind, err)
	}
	return r, nil
}

// List returns a building's records, newest first.
func (s *RecordStore) List(ctx context.Context, tenantID, buildingID string, page types.Page) ([]*entity.Record, error) {
	page = limitOrDefault(page)
	query, args := s.db.q().Select(recordColumns...).
		From(entsql.Table(s.table)).
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("building_id", buildingID))).
		OrderBy(entsql.Desc("created_at"), "id").
		Limit(page.Limit).
		Offset(page.Offset).
		Query()
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []*entity.Record
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Update overwrites title, status, dates and data.
func (s *RecordStore) Update(ctx context.Context, r *entity.Record, audit types.Audit) error {
	data, err := encodeData(r.Data)
	if err != nil {
		return fmt.Errorf("encoding %s data: %w", s.kind, err)
	}
	now := s.db.now()
	u := s.db.q().Update(s.table).
		Set("title", r.Title).
		Set("status", string(r.Status)).
		Set("due_date", nullTime(r.DueDate)).
		Set("completed_at", nullTime(r.CompletedAt)).
		Set("data", data)
	query, args := setAudit(u, audit, now).
		Where(entsql.And(entsql.EQ("tenant_id", r.TenantID), entsql.EQ("id", r.ID))).
		Query()
	if err := execOne(ctx, s.db.db, query, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating %s: %w", s.kind, err)
	}
	r.UpdatedAt, r.UpdatedBy = now, audit.Actor
	return nil
}

func (s *RecordStore) Delete(ctx context.Context, tenantID, id string) error {
	query, args := s.db.q().Delete(s.table).
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("id", id))).
		Query()
	if err := execOne(ctx, s.db.db, query, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting %s: %w", s.kind, err)
	}
	return nil
}

// DataKeys returns every template key present in the tenant's stored records
// of this kind.
func (s *RecordStore) DataKeys(ctx context.Context, tenantID string) (map[string]bool, error) {
	query, args := s.db.q().Select("data").
		From(entsql.Table(s.table)).
		Where(entsql.EQ("tenant_id", tenantID)).
		Query()
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s data keys: %w", s.kind, err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var data map[string]json.RawMessage
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decoding %s data: %w", s.kind, err)
		}
		for k := range data {
			keys[k] = true
		}
	}
	return keys, rows.Err()
}

// CountByBuilding tallies a building's records by completion, feeding the
// task-based compliance fallback.
func (s *RecordStore) CountByBuilding(ctx context.Context, tenantID, buildingID string) (compliance.TaskCounts, error) {
	query, args := s.db.q().Select("status").
		From(entsql.Table(s.table)).
		Where(entsql.And(entsql.EQ("tenant_id", tenantID), entsql.EQ("building_id", buildingID))).
		Query()
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return compliance.TaskCounts{}, fmt.Errorf("counting %s: %w", s.table, err)
	}
	defer rows.Close()

	var counts compliance.TaskCounts
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return compliance.TaskCounts{}, err
		}
		counts.Total++
		if status == string(entity.StatusCompleted) {
			counts.Completed++
		}
	}
	return counts, rows.Err()
}
