// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/activity"
	"github.com/matthewbaird/compliance/internal/handler"
	"github.com/matthewbaird/compliance/internal/live"
	"github.com/matthewbaird/compliance/internal/service"
	"github.com/matthewbaird/compliance/internal/store"
)

// Config holds server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
	DB              *store.DB
	Activity        activity.Store
	Hub             *live.Hub
	Logger          *zap.Logger

	// RateLimitRPS and RateLimitBurst bound requests per tenant. A zero RPS
	// disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter registers every route. The returned limiter, when not nil, needs
// its cleanup loop run by the caller.
func NewRouter(cfg Config, svc service.Services) (http.Handler, *handler.TenantRateLimiter) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.Recovery)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := cfg.DB.SQL().PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	var limiter *handler.TenantRateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = handler.NewTenantRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	bh := handler.NewBuildingHandler(cfg.DB)
	th := handler.NewTemplateHandler(svc.Templates)
	ch := handler.NewComplianceHandler(svc.Compliance, cfg.DB, cfg.Hub)
	rh := handler.NewRecordHandler(svc.Records)
	ah := handler.NewActivityHandler(cfg.Activity)

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.RequireTenant)
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		// --- Buildings ---
		r.Post("/buildings", bh.CreateBuilding)
		r.Get("/buildings", bh.ListBuildings)
		r.Get("/buildings/{id}", bh.GetBuilding)
		r.Patch("/buildings/{id}", bh.UpdateBuilding)
		r.Delete("/buildings/{id}", bh.DeleteBuilding)
		r.Get("/buildings/{id}/activity", ah.GetBuildingActivity)
		r.Get("/buildings/{id}/signals", ah.GetBuildingSignals)

		// --- Templates ---
		r.Post("/templates", th.CreateTemplate)
		r.Get("/templates", th.ListTemplates)
		r.Get("/templates/{id}", th.GetTemplate)
		r.Put("/templates/{id}", th.ReplaceTemplate)
		r.Delete("/templates/{id}", th.DeleteTemplate)
		r.Post("/templates/{id}/validate", th.ValidateData)

		// --- Compliance ---
		r.Get("/compliance/catalog", ch.GetCatalog)
		r.Get("/compliance/overview", ch.GetOverview)
		r.Post("/buildings/{id}/checks", ch.RecordCheck)
		r.Get("/buildings/{id}/checks", ch.ListChecks)
		r.Get("/buildings/{id}/compliance", ch.GetSummary)
		r.Get("/buildings/{id}/compliance/report.xlsx", ch.GetReport)
		r.Get("/buildings/{id}/compliance/stream", ch.StreamSummary)
		r.Get("/checks/{id}", ch.GetCheck)
		r.Patch("/checks/{id}", ch.UpdateCheck)
		r.Delete("/checks/{id}", ch.DeleteCheck)

		// --- Activity ---
		r.Get("/activity/{entity_type}/{entity_id}", ah.GetEntityActivity)
		r.Post("/activity/search", ah.SearchActivity)

		// --- Records: documents, tasks, inspections ---
		r.Post("/buildings/{id}/{kind}", rh.CreateRecord)
		r.Get("/buildings/{id}/{kind}", rh.ListRecords)
		r.Get("/{kind}/{id}", rh.GetRecord)
		r.Patch("/{kind}/{id}", rh.UpdateRecord)
		r.Delete("/{kind}/{id}", rh.DeleteRecord)
		r.Post("/{kind}/{id}/transition", rh.TransitionRecord)
	})

	return r, limiter
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func Run(ctx context.Context, cfg Config, svc service.Services) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	router, limiter := NewRouter(cfg, svc)
	if limiter != nil {
		go limiter.Run(ctx, time.Minute)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down server", zap.Duration("timeout", timeout))
	if cfg.Hub != nil {
		cfg.Hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
