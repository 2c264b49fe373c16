package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/entity"
	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/logging"
	"github.com/matthewbaird/compliance/internal/service"
	"github.com/matthewbaird/compliance/internal/store"
	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

const maxBodyBytes = 1 << 20

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writeJSON encode error", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeValidationError reports every field error of a failed template check.
func writeValidationError(w http.ResponseWriter, res template.Result) {
	writeJSON(w, http.StatusUnprocessableEntity, struct {
		Error  string                `json:"error"`
		Code   string                `json:"code"`
		Fields []template.FieldError `json:"fields"`
	}{
		Error:  "data does not match the template",
		Code:   "VALIDATION_FAILED",
		Fields: res.Errors,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// parsePagination extracts page_size and offset from query params.
func parsePagination(r *http.Request) types.Page {
	p := types.Page{Limit: 20, Offset: 0}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// parseAuditContext extracts audit metadata from request headers.
func parseAuditContext(w http.ResponseWriter, r *http.Request) (types.Audit, bool) {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", "X-Actor header is required")
		return types.Audit{}, false
	}
	source := r.Header.Get("X-Source")
	if source == "" {
		source = "user"
	}
	if !validSource[source] {
		writeError(w, http.StatusBadRequest, "INVALID_SOURCE", fmt.Sprintf("unknown X-Source %q", source))
		return types.Audit{}, false
	}
	info := types.Audit{
		Actor:  actor,
		Source: source,
	}
	if cid := r.Header.Get("X-Correlation-ID"); cid != "" {
		info.CorrelationID = &cid
	}
	return info, true
}

var validSource = map[string]bool{"user": true, "agent": true, "import": true, "system": true, "migration": true}

// meta identifies the tenant and actor of an event raised by a request.
func meta(r *http.Request, audit types.Audit) event.Meta {
	return event.Meta{TenantID: TenantID(r.Context()), Actor: audit.Actor}
}

// storeErrorToHTTP maps store and service errors to HTTP responses.
func storeErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr.Result)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrKeyInUse):
		writeError(w, http.StatusConflict, "KEY_IN_USE", err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, entity.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		logging.FromContext(r.Context()).Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
