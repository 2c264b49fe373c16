// Package activity stores the per-entity activity feed written from domain
// events. One event produces one entry per entity it references.
package activity

import "time"

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time // default: 6 months ago
	Until      *time.Time // default: now
	Categories []string   // "building", "compliance", "template", "record"
	Limit      int        // max results (default: 100, max: 500)
	Cursor     string     // occurred_at of the last entry on the previous page
}

// SearchOptions controls filtering for activity summary search.
type SearchOptions struct {
	EntityType string     // filter to specific entity type
	Since      *time.Time // filter by time
	Categories []string
	Limit      int // max results (default: 20)
}

// DefaultQueryOptions returns QueryOptions with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	sixMonthsAgo := time.Now().AddDate(0, -6, 0)
	now := time.Now()
	return QueryOptions{
		Since: &sixMonthsAgo,
		Until: &now,
		Limit: 100,
	}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit: 20,
	}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}

func (o SearchOptions) limit() int {
	if o.Limit <= 0 {
		return 20
	}
	return o.Limit
}

func parseCursor(c string) (time.Time, bool) {
	if c == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, c)
	return t, err == nil
}

func formatCursor(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
