package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/activity"
	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/eventbus"
	"github.com/matthewbaird/compliance/internal/handler"
	"github.com/matthewbaird/compliance/internal/live"
	"github.com/matthewbaird/compliance/internal/service"
	"github.com/matthewbaird/compliance/internal/store"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T, rps float64) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := store.Open(ctx, "sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	catalog := compliance.DefaultCatalog()
	svc := service.New(db, catalog)
	hub := live.NewHub(zap.NewNop())
	acts := activity.NewSQLStore(db.SQL(), db.Dialect())

	bus := eventbus.New(64, zap.NewNop())
	bus.Subscribe("broadcaster", live.NewBroadcaster(hub, svc.Compliance.Summary))
	bus.Start(ctx)
	t.Cleanup(bus.Stop)

	rec := event.NewActivityRecorder(acts)
	rec.SetPublisher(bus)
	handler.SetRecorder(rec)
	t.Cleanup(func() { handler.SetRecorder(nil) })

	router, _ := NewRouter(Config{
		DB:             db,
		Activity:       acts,
		Hub:            hub,
		RateLimitRPS:   rps,
		RateLimitBurst: 2,
	}, svc)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t}
}

func (s *testServer) do(method, path, tenant string, body any) (*http.Response, []byte) {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(s.t, err)
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	req.Header.Set("X-Actor", "alice")
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, out
}

func (s *testServer) create(path, tenant string, body any) map[string]any {
	s.t.Helper()
	resp, out := s.do(http.MethodPost, path, tenant, body)
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(out))
	var m map[string]any
	require.NoError(s.t, json.Unmarshal(out, &m))
	return m
}

func (s *testServer) building(tenant, name string) string {
	b := s.create("/v1/buildings", tenant, map[string]any{
		"name":    name,
		"address": map[string]string{"line1": "1 High Street", "city": "London", "postcode": "E1 6AN"},
	})
	return b["id"].(string)
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, 0)
	resp, body := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestTenantRequired(t *testing.T) {
	s := newTestServer(t, 0)
	resp, body := s.do(http.MethodGet, "/v1/buildings", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MISSING_TENANT", decode[map[string]string](t, body)["code"])
}

func TestActorRequiredOnWrites(t *testing.T) {
	s := newTestServer(t, 0)
	req, err := http.NewRequest(http.MethodPost, s.URL+"/v1/buildings", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "t1")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBuildingsCRUDAndIsolation(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.building("t1", "Alpha House")
	s.building("t1", "Beta Tower")

	resp, _ := s.do(http.MethodGet, "/v1/buildings/"+id, "t2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := s.do(http.MethodGet, "/v1/buildings?q=alp", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]map[string]any](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, "Alpha House", list[0]["name"])

	resp, body = s.do(http.MethodPatch, "/v1/buildings/"+id, "t1", map[string]any{"name": "Alpha Court"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Alpha Court", decode[map[string]any](t, body)["name"])

	resp, _ = s.do(http.MethodPost, "/v1/buildings", "t1", map[string]any{"name": "No address"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/v1/buildings/"+id, "t1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/v1/buildings/"+id, "t1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTemplateGateAndKeyInUse(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")

	tpl := s.create("/v1/templates", "t1", map[string]any{
		"name":   "Task details",
		"entity": "task",
		"fields": []map[string]any{
			{"key": "priority", "label": "Priority", "type": "select", "required": true, "options": []string{"low", "high"}},
			{"key": "effort", "label": "Effort", "type": "number", "min": 0, "max": 10},
		},
	})
	tid := tpl["id"].(string)

	resp, body := s.do(http.MethodPost, "/v1/templates", "t1", map[string]any{"name": "Again", "entity": "task", "fields": []any{}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	// Advisory validation always answers 200.
	resp, body = s.do(http.MethodPost, "/v1/templates/"+tid+"/validate", "t1", map[string]any{
		"data": map[string]any{"effort": 12},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[map[string]any](t, body)
	assert.Equal(t, false, res["is_valid"])
	assert.Len(t, res["errors"], 2)

	// The gate rejects invalid task data with every field error.
	resp, body = s.do(http.MethodPost, "/v1/buildings/"+bid+"/tasks", "t1", map[string]any{
		"title": "Check doors",
		"data":  map[string]any{"priority": "urgent", "effort": -1},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	verr := decode[struct {
		Code   string `json:"code"`
		Fields []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	}](t, body)
	assert.Equal(t, "VALIDATION_FAILED", verr.Code)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "Priority must be one of the allowed options", verr.Fields[0].Message)
	assert.Equal(t, "Effort must be at least 0", verr.Fields[1].Message)

	task := s.create("/v1/buildings/"+bid+"/tasks", "t1", map[string]any{
		"title": "Check doors",
		"data":  map[string]any{"priority": "high", "effort": 2},
	})
	assert.Equal(t, "open", task["status"])

	resp, body = s.do(http.MethodPut, "/v1/templates/"+tid, "t1", map[string]any{
		"name":   "Task details",
		"fields": []map[string]any{{"key": "priority", "label": "Priority", "type": "select", "options": []string{"low", "high"}}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "KEY_IN_USE", decode[map[string]string](t, body)["code"])
}

func TestValidateMalformedDataReportsFieldErrors(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")

	tpl := s.create("/v1/templates", "t1", map[string]any{
		"name":   "Task details",
		"entity": "task",
		"fields": []map[string]any{
			{"key": "tags", "label": "Tags", "type": "multiselect", "options": []string{"A", "B"}},
			{"key": "notes", "label": "Notes", "type": "text"},
		},
	})
	tid := tpl["id"].(string)

	resp, body := s.do(http.MethodPost, "/v1/templates/"+tid+"/validate", "t1",
		json.RawMessage(`{"data":{"tags":[1,2],"extra":{"x":1}}}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	res := decode[struct {
		Valid  bool `json:"is_valid"`
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
		Data map[string]any `json:"validated_data"`
	}](t, body)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "tags", res.Errors[0].Field)
	assert.Equal(t, "Tags contains invalid options: 1, 2", res.Errors[0].Message)
	assert.Empty(t, res.Data)

	// The gate answers 422 with field errors, not a decode failure.
	resp, body = s.do(http.MethodPost, "/v1/buildings/"+bid+"/tasks", "t1",
		json.RawMessage(`{"title":"Check doors","data":{"tags":[1,2],"notes":{"x":1}}}`))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
	assert.Equal(t, "VALIDATION_FAILED", decode[map[string]any](t, body)["code"])

	task := s.create("/v1/buildings/"+bid+"/tasks", "t1", map[string]any{
		"title": "Check doors",
		"data":  map[string]any{"tags": []string{"A"}, "notes": map[string]any{"x": 1}},
	})
	assert.Equal(t, map[string]any{"tags": []any{"A"}}, task["data"])
}

func TestRecordsLifecycle(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")

	resp, _ := s.do(http.MethodPost, "/v1/buildings/"+bid+"/leases", "t1", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	task := s.create("/v1/buildings/"+bid+"/tasks", "t1", map[string]any{"title": "Test alarms"})
	id := task["id"].(string)

	resp, body := s.do(http.MethodPost, "/v1/tasks/"+id+"/transition", "t1", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	done := decode[map[string]any](t, body)
	assert.Equal(t, "completed", done["status"])
	assert.NotEmpty(t, done["completed_at"])

	resp, body = s.do(http.MethodPost, "/v1/tasks/"+id+"/transition", "t1", map[string]any{"status": "in_progress"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", decode[map[string]string](t, body)["code"])

	resp, body = s.do(http.MethodGet, "/v1/buildings/"+bid+"/tasks", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	resp, _ = s.do(http.MethodGet, "/v1/tasks/"+id, "t2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/v1/tasks/"+id, "t1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestComplianceSummaryFallbackAndChecks(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")

	summary := func() compliance.Summary {
		resp, body := s.do(http.MethodGet, "/v1/buildings/"+bid+"/compliance", "t1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		return decode[compliance.Summary](t, body)
	}

	sum := summary()
	assert.Equal(t, 100, sum.Percentage)
	assert.Equal(t, compliance.SourceDefault, sum.Source)
	assert.Len(t, sum.ByType, 8)

	for i := 0; i < 4; i++ {
		task := s.create("/v1/buildings/"+bid+"/tasks", "t1", map[string]any{"title": fmt.Sprintf("task %d", i)})
		if i == 0 {
			resp, _ := s.do(http.MethodPost, "/v1/tasks/"+task["id"].(string)+"/transition", "t1", map[string]any{"status": "completed"})
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}
	}
	sum = summary()
	assert.Equal(t, 25, sum.Percentage)
	assert.Equal(t, compliance.SourceTasks, sum.Source)

	resp, _ := s.do(http.MethodPost, "/v1/buildings/"+bid+"/checks", "t1", map[string]any{
		"check_type": "gas_safety", "status": "success",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	check := s.create("/v1/buildings/"+bid+"/checks", "t1", map[string]any{
		"check_type": "fire_risk_assessment", "status": "success", "completed_date": "2024-06-01T00:00:00Z",
	})
	sum = summary()
	assert.Equal(t, 13, sum.Percentage)
	assert.Equal(t, compliance.SourceChecks, sum.Source)

	resp, body := s.do(http.MethodPatch, "/v1/checks/"+check["id"].(string), "t1", map[string]any{"status": "overdue"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.NotEmpty(t, decode[map[string]any](t, body)["completed_date"])
	sum = summary()
	assert.Equal(t, 0, sum.Percentage)

	resp, body = s.do(http.MethodPatch, "/v1/checks/"+check["id"].(string), "t1", json.RawMessage(`{"completed_date":null}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	patched := decode[map[string]any](t, body)
	assert.Nil(t, patched["completed_date"])
	assert.Equal(t, "overdue", patched["status"])

	resp, body = s.do(http.MethodGet, "/v1/buildings/"+bid+"/checks?status=overdue", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	resp, body = s.do(http.MethodGet, "/v1/compliance/overview", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	overview := decode[[]map[string]any](t, body)
	require.Len(t, overview, 1)
	assert.Equal(t, "Alpha House", overview[0]["building_name"])

	resp, body = s.do(http.MethodGet, "/v1/compliance/catalog", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), 8)
}

func TestReportDownload(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")

	resp, body := s.do(http.MethodGet, "/v1/buildings/"+bid+"/compliance/report.xlsx", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), bid)
	// xlsx files are zip archives.
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))
}

func TestActivityFeed(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")
	s.create("/v1/buildings/"+bid+"/checks", "t1", map[string]any{"check_type": "legionella_risk", "status": "pending"})

	resp, body := s.do(http.MethodGet, "/v1/buildings/"+bid+"/activity", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed := decode[struct {
		Activities []map[string]any `json:"activities"`
		TotalCount int              `json:"total_count"`
	}](t, body)
	assert.Equal(t, 2, feed.TotalCount)
	assert.Equal(t, "compliance_check_recorded", feed.Activities[0]["event_type"])

	resp, body = s.do(http.MethodGet, "/v1/buildings/"+bid+"/activity", "t2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_count":0`)
}

func TestBuildingSignals(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")
	for _, st := range []string{"overdue", "warning", "overdue"} {
		s.create("/v1/buildings/"+bid+"/checks", "t1", map[string]any{"check_type": "fire_alarm_testing", "status": st})
	}

	resp, body := s.do(http.MethodGet, "/v1/buildings/"+bid+"/signals?days=30", "t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	sum := decode[struct {
		Sentiment   string `json:"sentiment"`
		Escalations []struct {
			RuleID string `json:"rule_id"`
		} `json:"escalations"`
		Signals []map[string]any `json:"signals"`
	}](t, body)
	assert.Equal(t, "critical", sum.Sentiment)
	assert.Len(t, sum.Signals, 3)
	require.NotEmpty(t, sum.Escalations)
	assert.Equal(t, "compliance_failures_acute", sum.Escalations[0].RuleID)

	resp, _ = s.do(http.MethodGet, "/v1/buildings/"+bid+"/signals?days=0", "t1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitPerTenant(t *testing.T) {
	s := newTestServer(t, 0.001)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, _ := s.do(http.MethodGet, "/v1/buildings", "t1", nil)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	resp, _ := s.do(http.MethodGet, "/v1/buildings", "t2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSummaryStream(t *testing.T) {
	s := newTestServer(t, 0)
	bid := s.building("t1", "Alpha House")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/buildings/" + bid + "/compliance/stream?tenant_id=t1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg struct {
		Type string             `json:"type"`
		Data compliance.Summary `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "summary", msg.Type)
	assert.Equal(t, compliance.SourceDefault, msg.Data.Source)

	s.create("/v1/buildings/"+bid+"/checks", "t1", map[string]any{"check_type": "asbestos_survey", "status": "success"})

	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, compliance.SourceChecks, msg.Data.Source)
	assert.Equal(t, 13, msg.Data.Percentage)
}
