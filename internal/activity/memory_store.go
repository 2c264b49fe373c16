package activity

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/matthewbaird/compliance/internal/types"
)

// MemoryStore implements Store using in-memory slices.
// Intended for demos and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []types.ActivityEntry
	seen    map[string]bool
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]bool)}
}

func entryKey(e types.ActivityEntry) string {
	return e.EventID + "|" + e.IndexedEntityType + "|" + e.IndexedEntityID
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []types.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		k := entryKey(e)
		if s.seen[k] {
			continue
		}
		s.seen[k] = true
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *MemoryStore) QueryByEntity(_ context.Context, tenantID, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, hasCursor := parseCursor(opts.Cursor)
	var matched []types.ActivityEntry
	total := 0
	for _, e := range s.entries {
		if e.TenantID != tenantID || e.IndexedEntityType != entityType || e.IndexedEntityID != entityID {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.OccurredAt.After(*opts.Until) {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, e.Category) {
			continue
		}
		total++
		if hasCursor && !e.OccurredAt.Before(cursor) {
			continue
		}
		matched = append(matched, e)
	}

	sortNewestFirst(matched)

	limit := opts.limit()
	var nextCursor string
	if len(matched) > limit {
		matched = matched[:limit]
		nextCursor = formatCursor(matched[len(matched)-1].OccurredAt)
	}

	return matched, nextCursor, total, nil
}

func (s *MemoryStore) Search(_ context.Context, tenantID, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var matched []types.ActivityEntry
	for _, e := range s.entries {
		if e.TenantID != tenantID || !strings.Contains(strings.ToLower(e.Summary), q) {
			continue
		}
		if opts.EntityType != "" && e.IndexedEntityType != opts.EntityType {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, e.Category) {
			continue
		}
		matched = append(matched, e)
	}

	sortNewestFirst(matched)

	totalCount := len(matched)
	if limit := opts.limit(); len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, totalCount, nil
}

func sortNewestFirst(entries []types.ActivityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.After(entries[j].OccurredAt)
	})
}
