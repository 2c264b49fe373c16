package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/store"
	"github.com/matthewbaird/compliance/internal/types"
)

// BuildingHandler implements HTTP handlers for buildings.
type BuildingHandler struct {
	buildings *store.BuildingStore
}

func NewBuildingHandler(db *store.DB) *BuildingHandler {
	return &BuildingHandler{buildings: db.Buildings()}
}

type buildingRequest struct {
	Name    string        `json:"name"`
	Address types.Address `json:"address"`
}

func buildingPayload(b *store.Building) event.BuildingPayload {
	return event.BuildingPayload{BuildingID: b.ID, Name: b.Name, Postcode: b.Address.Postcode}
}

func (h *BuildingHandler) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req buildingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	b := &store.Building{TenantID: TenantID(r.Context()), Name: req.Name, Address: req.Address}
	if err := b.Check(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BUILDING", err.Error())
		return
	}
	if err := h.buildings.Create(r.Context(), b, audit); err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewBuildingCreated(meta(r, audit), buildingPayload(b)))
	writeJSON(w, http.StatusCreated, b)
}

func (h *BuildingHandler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	b, err := h.buildings.Get(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListBuildings supports q (name substring), city and postcode filters.
func (h *BuildingHandler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.BuildingFilter{Query: q.Get("q"), City: q.Get("city"), Postcode: q.Get("postcode")}
	items, err := h.buildings.List(r.Context(), TenantID(r.Context()), f, parsePagination(r))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	if items == nil {
		items = []*store.Building{}
	}
	writeJSON(w, http.StatusOK, items)
}

type updateBuildingRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *struct {
		Line1    *string `json:"line1,omitempty"`
		Line2    *string `json:"line2,omitempty"`
		City     *string `json:"city,omitempty"`
		Postcode *string `json:"postcode,omitempty"`
		Country  *string `json:"country,omitempty"`
	} `json:"address,omitempty"`
}

func (h *BuildingHandler) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req updateBuildingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	b, err := h.buildings.Get(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	if a := req.Address; a != nil {
		setIf(&b.Address.Line1, a.Line1)
		setIf(&b.Address.Line2, a.Line2)
		setIf(&b.Address.City, a.City)
		setIf(&b.Address.Postcode, a.Postcode)
		setIf(&b.Address.Country, a.Country)
	}
	if err := b.Check(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BUILDING", err.Error())
		return
	}
	if err := h.buildings.Update(r.Context(), b, audit); err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewBuildingUpdated(meta(r, audit), buildingPayload(b)))
	writeJSON(w, http.StatusOK, b)
}

// DeleteBuilding removes the building with its checks and records.
func (h *BuildingHandler) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	tenantID := TenantID(r.Context())
	b, err := h.buildings.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	if err := h.buildings.Delete(r.Context(), tenantID, b.ID); err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewBuildingDeleted(meta(r, audit), buildingPayload(b)))
	w.WriteHeader(http.StatusNoContent)
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
