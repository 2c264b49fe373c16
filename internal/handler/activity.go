package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/compliance/internal/activity"
	"github.com/matthewbaird/compliance/internal/signals"
	"github.com/matthewbaird/compliance/internal/types"
)

// ActivityHandler serves the activity feed. It reads the activity store
// directly rather than the domain tables.
type ActivityHandler struct {
	store activity.Store
}

func NewActivityHandler(store activity.Store) *ActivityHandler {
	return &ActivityHandler{store: store}
}

// GetBuildingActivity returns the activity feed of a building.
// GET /v1/buildings/{id}/activity
func (h *ActivityHandler) GetBuildingActivity(w http.ResponseWriter, r *http.Request) {
	h.entityActivity(w, r, "building", chi.URLParam(r, "id"))
}

// GetEntityActivity returns the activity feed of any entity.
// GET /v1/activity/{entity_type}/{entity_id}
func (h *ActivityHandler) GetEntityActivity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entity_type")
	entityID := chi.URLParam(r, "entity_id")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "entity_type and entity_id are required")
		return
	}
	h.entityActivity(w, r, entityType, entityID)
}

func (h *ActivityHandler) entityActivity(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	opts := activity.DefaultQueryOptions()
	q := r.URL.Query()
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if u := q.Get("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			opts.Until = &t
		}
	}
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = min(n, 500)
		}
	}
	opts.Cursor = q.Get("cursor")

	entries, nextCursor, totalCount, err := h.store.QueryByEntity(r.Context(), TenantID(r.Context()), entityType, entityID, opts)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	resp := struct {
		Activities []types.ActivityEntry `json:"activities"`
		NextCursor string                `json:"next_cursor,omitempty"`
		TotalCount int                   `json:"total_count"`
	}{
		Activities: entries,
		NextCursor: nextCursor,
		TotalCount: totalCount,
	}
	if resp.Activities == nil {
		resp.Activities = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBuildingSignals classifies the building's recent compliance and record
// activity and reports escalations.
// GET /v1/buildings/{id}/signals?days=180
func (h *ActivityHandler) GetBuildingSignals(w http.ResponseWriter, r *http.Request) {
	days := 180
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMS", "days must be between 1 and 365")
			return
		}
		days = n
	}
	until := time.Now().UTC()
	since := until.AddDate(0, 0, -days)
	buildingID := chi.URLParam(r, "id")

	entries, _, _, err := h.store.QueryByEntity(r.Context(), TenantID(r.Context()), "building", buildingID, activity.QueryOptions{
		Since:      &since,
		Until:      &until,
		Categories: []string{"compliance", "record"},
		Limit:      500,
	})
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signals.Aggregate(signals.ClassifyAll(entries), buildingID, since, until))
}

// SearchActivity matches activity summaries.
// POST /v1/activity/search
func (h *ActivityHandler) SearchActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string   `json:"query"`
		EntityType string   `json:"entity_type,omitempty"`
		Since      string   `json:"since,omitempty"`
		Categories []string `json:"categories,omitempty"`
		Limit      int      `json:"limit,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "query is required")
		return
	}

	opts := activity.DefaultSearchOptions()
	opts.EntityType = req.EntityType
	opts.Categories = req.Categories
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.Since != "" {
		if t, err := time.Parse(time.RFC3339, req.Since); err == nil {
			opts.Since = &t
		}
	}

	entries, totalCount, err := h.store.Search(r.Context(), TenantID(r.Context()), req.Query, opts)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	resp := struct {
		Results    []types.ActivityEntry `json:"results"`
		TotalCount int                   `json:"total_count"`
	}{
		Results:    entries,
		TotalCount: totalCount,
	}
	if resp.Results == nil {
		resp.Results = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, resp)
}
