package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, TenantID: "t1", Actor: "alice", RetryCount: 2})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_SendsTenantHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t1", r.Header.Get("X-Tenant-ID"))
		assert.Equal(t, "alice", r.Header.Get("X-Actor"))
		assert.Equal(t, "agent", r.Header.Get("X-Source"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/buildings", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Harbour View", body["name"])
		writeJSON(w, http.StatusCreated, map[string]any{"id": "b1", "tenant_id": "t1", "name": "Harbour View"})
	})

	b, err := c.CreateBuilding(context.Background(), "Harbour View", types.Address{Line1: "1 Quay", City: "Bristol", Postcode: "BS1 1AA"})
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, "Harbour View", b.Name)
}

func TestClient_Summary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/buildings/b1/compliance", r.URL.Path)
		writeJSON(w, http.StatusOK, compliance.Summary{BuildingID: "b1", Percentage: 13, Source: compliance.SourceChecks})
	})

	sum, err := c.Summary(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 13, sum.Percentage)
	assert.Equal(t, compliance.SourceChecks, sum.Source)
}

func TestClient_ListBuildingsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "harbour view", r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, []Building{{ID: "b1"}, {ID: "b2"}})
	})

	out, err := c.ListBuildings(context.Background(), "harbour view")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestClient_ValidateData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/templates/tpl1/validate", r.URL.Path)
		writeJSON(w, http.StatusOK, template.Result{
			Errors: []template.FieldError{{Field: "priority", Message: "Priority is required"}},
			Data:   template.Data{},
		})
	})

	res, err := c.ValidateData(context.Background(), "tpl1", template.Data{"effort": template.Number(3)})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "priority", res.Errors[0].Field)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "data failed template validation",
			"code":   "VALIDATION_FAILED",
			"fields": []template.FieldError{{Field: "priority", Message: "Priority is required"}},
		})
	})

	_, err := c.RecordCheck(context.Background(), "b1", NewCheck{CheckType: "fire_alarm_testing", Status: compliance.StatusSuccess})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "priority", apiErr.Fields[0].Field)
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "slow down", "code": "RATE_LIMITED"})
			return
		}
		writeJSON(w, http.StatusOK, []OverviewEntry{{BuildingID: "b1", Percentage: 25, Source: compliance.SourceChecks}})
	})

	out, err := c.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 25, out[0].Percentage)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NotFoundWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetBuilding(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "HTTP_ERROR", apiErr.Code)
}
