// Package client is a typed HTTP client for the compliance service.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	TenantID   string
	Actor      string
	Timeout    time.Duration
	RetryCount int
}

// Client calls the /v1 API on behalf of one tenant.
type Client struct {
	http *resty.Client
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int                   `json:"-"`
	Message    string                `json:"error"`
	Code       string                `json:"code"`
	Fields     []template.FieldError `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Actor == "" {
		cfg.Actor = "compliancectl"
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json").
		SetHeader("X-Tenant-ID", cfg.TenantID).
		SetHeader("X-Actor", cfg.Actor).
		SetHeader("X-Source", "agent")
	return &Client{http: c}
}

// Building mirrors the service's building resource.
type Building struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenant_id"`
	Name      string        `json:"name"`
	Address   types.Address `json:"address"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// OverviewEntry is one building's line in the tenant overview.
type OverviewEntry struct {
	BuildingID   string            `json:"building_id"`
	BuildingName string            `json:"building_name"`
	Percentage   int               `json:"percentage"`
	Source       compliance.Source `json:"source"`
}

// NewCheck is the body of RecordCheck.
type NewCheck struct {
	CheckType     compliance.CheckType `json:"check_type"`
	Status        compliance.Status    `json:"status"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	CompletedDate *time.Time           `json:"completed_date,omitempty"`
	Notes         string               `json:"notes,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&APIError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr.Code == "" {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode()), Code: "HTTP_ERROR"}
		}
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	return nil
}

func (c *Client) CreateBuilding(ctx context.Context, name string, addr types.Address) (*Building, error) {
	var b Building
	body := map[string]any{"name": name, "address": addr}
	if err := c.do(ctx, http.MethodPost, "/v1/buildings", body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) GetBuilding(ctx context.Context, id string) (*Building, error) {
	var b Building
	if err := c.do(ctx, http.MethodGet, "/v1/buildings/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBuildings returns buildings whose name contains query. An empty query
// lists the first page.
func (c *Client) ListBuildings(ctx context.Context, query string) ([]Building, error) {
	var out []Building
	path := "/v1/buildings"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecordCheck(ctx context.Context, buildingID string, in NewCheck) (*compliance.Check, error) {
	var out compliance.Check
	if err := c.do(ctx, http.MethodPost, "/v1/buildings/"+url.PathEscape(buildingID)+"/checks", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListChecks(ctx context.Context, buildingID string) ([]compliance.Check, error) {
	var out []compliance.Check
	if err := c.do(ctx, http.MethodGet, "/v1/buildings/"+url.PathEscape(buildingID)+"/checks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary returns the displayed compliance summary of a building.
func (c *Client) Summary(ctx context.Context, buildingID string) (*compliance.Summary, error) {
	var out compliance.Summary
	if err := c.do(ctx, http.MethodGet, "/v1/buildings/"+url.PathEscape(buildingID)+"/compliance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Overview(ctx context.Context) ([]OverviewEntry, error) {
	var out []OverviewEntry
	if err := c.do(ctx, http.MethodGet, "/v1/compliance/overview", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Catalog(ctx context.Context) ([]compliance.CheckTypeInfo, error) {
	var out []compliance.CheckTypeInfo
	if err := c.do(ctx, http.MethodGet, "/v1/compliance/catalog", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateData runs the advisory validation of a stored template.
func (c *Client) ValidateData(ctx context.Context, templateID string, data template.Data) (*template.Result, error) {
	var out template.Result
	body := map[string]any{"data": data}
	if err := c.do(ctx, http.MethodPost, "/v1/templates/"+url.PathEscape(templateID)+"/validate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
