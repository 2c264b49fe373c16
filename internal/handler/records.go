package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/compliance/internal/entity"
	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/service"
)

// RecordHandler serves documents, tasks and inspections through one set of
// handlers. The {kind} route segment selects the store.
type RecordHandler struct {
	svc *service.Records
}

func NewRecordHandler(svc *service.Records) *RecordHandler {
	return &RecordHandler{svc: svc}
}

// parseKind resolves the {kind} path parameter. Unknown kinds are 404.
func parseKind(w http.ResponseWriter, r *http.Request) (entity.Kind, bool) {
	k, err := entity.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_KIND", err.Error())
		return "", false
	}
	return k, true
}

func recordPayload(rec *entity.Record, from entity.Status) event.RecordPayload {
	return event.RecordPayload{
		Kind:       string(rec.Kind),
		RecordID:   rec.ID,
		BuildingID: rec.BuildingID,
		Title:      rec.Title,
		Status:     string(rec.Status),
		FromStatus: string(from),
	}
}

// CreateRecord stores a record on a building. Data must pass the tenant's
// template for the kind; failures are 422 with every field error.
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req service.RecordInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	rec, err := h.svc.Create(r.Context(), kind, TenantID(r.Context()), chi.URLParam(r, "id"), req, audit)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewRecordCreated(meta(r, audit), recordPayload(rec, "")))
	writeJSON(w, http.StatusCreated, rec)
}

func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	items, err := h.svc.List(r.Context(), kind, TenantID(r.Context()), chi.URLParam(r, "id"), parsePagination(r))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	if items == nil {
		items = []*entity.Record{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), kind, TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req service.RecordPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	rec, err := h.svc.Update(r.Context(), kind, TenantID(r.Context()), chi.URLParam(r, "id"), req, audit)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewRecordUpdated(meta(r, audit), recordPayload(rec, "")))
	writeJSON(w, http.StatusOK, rec)
}

// TransitionRecord moves a record along the status graph.
func (h *RecordHandler) TransitionRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req struct {
		Status entity.Status `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "MISSING_STATUS", "status is required")
		return
	}

	rec, from, err := h.svc.Transition(r.Context(), kind, TenantID(r.Context()), chi.URLParam(r, "id"), req.Status, audit)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewRecordUpdated(meta(r, audit), recordPayload(rec, from)))
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Delete(r.Context(), kind, TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewRecordDeleted(meta(r, audit), recordPayload(rec, "")))
	w.WriteHeader(http.StatusNoContent)
}
