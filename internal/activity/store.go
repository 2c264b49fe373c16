package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/compliance/internal/types"
)

// Store is the interface for reading and writing activity entries. Every
// read is scoped to one tenant.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error

	// QueryByEntity returns activity entries for a specific entity, newest first.
	QueryByEntity(ctx context.Context, tenantID, entityType, entityID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, totalCount int, err error)

	// Search matches activity summaries case-insensitively.
	Search(ctx context.Context, tenantID, query string, opts SearchOptions) (entries []types.ActivityEntry, totalCount int, err error)
}

// SQLStore implements Store on the activity_entries table created by the
// store migration. It runs on SQLite and Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore creates a new SQLStore. dialectName is an entgo.io/ent/dialect name.
func NewSQLStore(db *sql.DB, dialectName string) *SQLStore {
	return &SQLStore{db: db, dialect: dialectName}
}

var entryColumns = []string{
	"event_id", "event_type", "tenant_id", "occurred_at", "indexed_entity_type", "indexed_entity_id",
	"entity_role", "source_refs", "summary", "category", "actor", "payload",
}

// WriteEntries inserts activity entries. Re-delivered entries are ignored.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []types.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ins := entsql.Dialect(s.dialect).Insert("activity_entries").Columns(entryColumns...)
	for _, e := range entries {
		refs := e.SourceRefs
		if refs == nil {
			refs = []types.SourceRef{}
		}
		refsJSON, err := json.Marshal(refs)
		if err != nil {
			return fmt.Errorf("encoding source refs: %w", err)
		}
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		ins.Values(
			e.EventID, e.EventType, e.TenantID, e.OccurredAt.UTC(), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refsJSON), e.Summary, e.Category, e.Actor, payload,
		)
	}
	ins.OnConflict(
		entsql.ConflictColumns("event_id", "indexed_entity_type", "indexed_entity_id"),
		entsql.DoNothing(),
	)

	query, args := ins.Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

// QueryByEntity returns activity entries for a specific entity with filtering and pagination.
func (s *SQLStore) QueryByEntity(ctx context.Context, tenantID, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	limit := opts.limit()
	where := func(withCursor bool) *entsql.Predicate {
		preds := []*entsql.Predicate{
			entsql.EQ("tenant_id", tenantID),
			entsql.EQ("indexed_entity_type", entityType),
			entsql.EQ("indexed_entity_id", entityID),
		}
		if opts.Since != nil {
			preds = append(preds, entsql.GTE("occurred_at", opts.Since.UTC()))
		}
		if opts.Until != nil {
			preds = append(preds, entsql.LTE("occurred_at", opts.Until.UTC()))
		}
		if len(opts.Categories) > 0 {
			preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
		}
		if cursor, ok := parseCursor(opts.Cursor); ok && withCursor {
			preds = append(preds, entsql.LT("occurred_at", cursor))
		}
		return entsql.And(preds...)
	}

	query, args := entsql.Dialect(s.dialect).Select(entryColumns...).
		From(entsql.Table("activity_entries")).
		Where(where(true)).
		OrderBy(entsql.Desc("occurred_at"), "event_id").
		Limit(limit + 1). // one extra to detect another page
		Query()
	entries, err := s.queryEntries(ctx, query, args)
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = formatCursor(entries[len(entries)-1].OccurredAt)
	}

	total, err := s.count(ctx, where(false))
	if err != nil {
		return nil, "", 0, err
	}
	return entries, nextCursor, total, nil
}

// Search matches activity summaries case-insensitively.
func (s *SQLStore) Search(ctx context.Context, tenantID, q string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	where := func() *entsql.Predicate {
		preds := []*entsql.Predicate{
			entsql.EQ("tenant_id", tenantID),
			entsql.ContainsFold("summary", q),
		}
		if opts.EntityType != "" {
			preds = append(preds, entsql.EQ("indexed_entity_type", opts.EntityType))
		}
		if opts.Since != nil {
			preds = append(preds, entsql.GTE("occurred_at", opts.Since.UTC()))
		}
		if len(opts.Categories) > 0 {
			preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
		}
		return entsql.And(preds...)
	}

	query, args := entsql.Dialect(s.dialect).Select(entryColumns...).
		From(entsql.Table("activity_entries")).
		Where(where()).
		OrderBy(entsql.Desc("occurred_at"), "event_id").
		Limit(opts.limit()).
		Query()
	entries, err := s.queryEntries(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.count(ctx, where())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *SQLStore) count(ctx context.Context, where *entsql.Predicate) (int, error) {
	query, args := entsql.Dialect(s.dialect).Select(entsql.Count("*")).
		From(entsql.Table("activity_entries")).
		Where(where).
		Query()
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting activity entries: %w", err)
	}
	return n, nil
}

func (s *SQLStore) queryEntries(ctx context.Context, query string, args []any) ([]types.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ActivityEntry
	for rows.Next() {
		var e types.ActivityEntry
		var refsJSON, payloadJSON []byte
		err := rows.Scan(
			&e.EventID, &e.EventType, &e.TenantID, &e.OccurredAt, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &e.Actor, &payloadJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		if len(refsJSON) > 0 {
			if err := json.Unmarshal(refsJSON, &e.SourceRefs); err != nil {
				return nil, fmt.Errorf("decoding source refs for %s: %w", e.EventID, err)
			}
		}
		if len(payloadJSON) > 0 {
			e.Payload = json.RawMessage(payloadJSON)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
