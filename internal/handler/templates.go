package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/service"
	"github.com/matthewbaird/compliance/internal/template"
)

// TemplateHandler implements HTTP handlers for tenant templates.
type TemplateHandler struct {
	svc *service.Templates
}

func NewTemplateHandler(svc *service.Templates) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

type templateRequest struct {
	Name   string           `json:"name"`
	Entity string           `json:"entity"`
	Fields []template.Field `json:"fields"`
}

func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	t := &template.Template{
		TenantID: TenantID(r.Context()),
		Name:     req.Name,
		Entity:   req.Entity,
		Fields:   req.Fields,
	}
	if err := h.svc.Create(r.Context(), t, audit); err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}

	recordEvent(r.Context(), event.NewTemplateSaved(meta(r, audit), event.TemplatePayload{
		TemplateID: t.ID,
		Entity:     t.Entity,
		Keys:       t.Keys(),
	}))
	writeJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), TenantID(r.Context()))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	if items == nil {
		items = []*template.Template{}
	}
	writeJSON(w, http.StatusOK, items)
}

// ReplaceTemplate overwrites name and fields. The entity kind is fixed at
// creation; an entity in the body is ignored.
func (h *TemplateHandler) ReplaceTemplate(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	next := template.Template{Name: req.Name, Fields: req.Fields}
	t, removed, err := h.svc.Replace(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"), next, audit)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	recordEvent(r.Context(), event.NewTemplateSaved(meta(r, audit), event.TemplatePayload{
		TemplateID: t.ID,
		Entity:     t.Entity,
		Keys:       t.Keys(),
		Removed:    removed,
	}))
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Delete(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	recordEvent(r.Context(), event.NewTemplateDeleted(meta(r, audit), event.TemplatePayload{
		TemplateID: t.ID,
		Entity:     t.Entity,
	}))
	w.WriteHeader(http.StatusNoContent)
}

// ValidateData checks data against a template without storing anything. The
// result is returned with 200 whether or not the data is valid.
func (h *TemplateHandler) ValidateData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data template.Data `json:"data"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	res, err := h.svc.Validate(r.Context(), TenantID(r.Context()), chi.URLParam(r, "id"), req.Data)
	if err != nil {
		storeErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
