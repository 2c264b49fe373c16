package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/live"
	"github.com/matthewbaird/compliance/internal/report"
	"github.com/matthewbaird/compliance/internal/service"
	"github.com/matthewbaird/compliance/internal/store"
)

// ComplianceHandler implements HTTP handlers for checks, summaries, reports
// and the live summary stream.
type ComplianceHandler struct {
	svc       *service.Compliance
	buildings *store.BuildingStore
	hub       *live.Hub
}

func NewComplianceHandler(svc *service.Compliance, db *store.DB, hub *live.Hub) *ComplianceHandler {
	return &ComplianceHandler{svc: svc, buildings: db.Buildings(), hub: hub}
}

func checkPayload(c *compliance.Check) event.CheckPayload {
	return event.CheckPayload{
		CheckID:    c.ID,
		BuildingID: c.BuildingID,
		CheckType:  string(c.CheckType),
		Status:     string(c.Status),
		DueDate:    c.DueDate,
		Completed:  c.CompletedDate,
	}
}

// GetCatalog lists the check types every building is scored against.
func (h *ComplianceHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Catalog().Entries())
}

func (h *ComplianceHandler) RecordCheck(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req service.CheckInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	c, err := h.svc.RecordCheck(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"), req, audit)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewComplianceCheckRecorded(meta(r, audit), checkPayload(c)))
	writeJSON(w, http.StatusCreated, c)
}

// ListChecks returns a building's check history, optionally filtered by type
// and status.
func (h *ComplianceHandler) ListChecks(w http.ResponseWriter, r *http.Request) {
	f := store.CheckFilter{
		Type:   compliance.CheckType(r.URL.Query().Get("type")),
		Status: compliance.Status(r.URL.Query().Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", fmt.Sprintf("unknown check status %q", f.Status))
		return
	}
	checks, err := h.svc.Checks(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"), f)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	if checks == nil {
		checks = []compliance.Check{}
	}
	writeJSON(w, http.StatusOK, checks)
}

func (h *ComplianceHandler) GetCheck(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Check(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ComplianceHandler) UpdateCheck(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req service.CheckPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	c, _, err := h.svc.UpdateCheck(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"), req, audit)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewComplianceCheckUpdated(meta(r, audit), checkPayload(c)))
	writeJSON(w, http.StatusOK, c)
}

func (h *ComplianceHandler) DeleteCheck(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	c, err := h.svc.DeleteCheck(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewComplianceCheckDeleted(meta(r, audit), checkPayload(c)))
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary returns the displayed compliance summary of a building.
func (h *ComplianceHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Summary(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetOverview returns the percentage of every building the tenant owns.
func (h *ComplianceHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Overview(r.Context(), TenantID(r.Context()))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetReport exports a building's summary and check history as xlsx.
func (h *ComplianceHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())
	b, err := h.buildings.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	sum, err := h.svc.Summary(r.Context(), tenantID, b.ID)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	history, err := h.svc.Checks(r.Context(), tenantID, b.ID, store.CheckFilter{})
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	now := time.Now()
	out, err := report.Workbook(report.Building{ID: b.ID, Name: b.Name}, sum, history, h.svc.Catalog(), now)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="compliance-%s-%s.xlsx"`, b.ID, now.UTC().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// StreamSummary upgrades to a websocket that receives the building's summary
// now and again whenever its checks or tasks change.
func (h *ComplianceHandler) StreamSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Summary(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	h.hub.Serve(w, r, TenantID(r.Context()), s)
}
