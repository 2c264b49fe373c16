package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/activity"
	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/config"
	"github.com/matthewbaird/compliance/internal/event"
	"github.com/matthewbaird/compliance/internal/eventbus"
	"github.com/matthewbaird/compliance/internal/handler"
	"github.com/matthewbaird/compliance/internal/live"
	"github.com/matthewbaird/compliance/internal/logging"
	"github.com/matthewbaird/compliance/internal/seed"
	"github.com/matthewbaird/compliance/internal/server"
	"github.com/matthewbaird/compliance/internal/service"
	"github.com/matthewbaird/compliance/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      logging.Format(cfg.Log.Format),
		Service:     "compliance",
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	catalog := compliance.DefaultCatalog()
	if cfg.CatalogFile != "" {
		src, err := os.ReadFile(cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("reading catalog: %w", err)
		}
		if catalog, err = compliance.LoadCatalog(src); err != nil {
			return fmt.Errorf("loading catalog %s: %w", cfg.CatalogFile, err)
		}
		logger.Info("catalog loaded", zap.String("file", cfg.CatalogFile), zap.Int("types", catalog.Len()))
	}

	svc := service.New(db, catalog)
	hub := live.NewHub(logger)
	acts := activity.NewSQLStore(db.SQL(), db.Dialect())

	bus := eventbus.New(cfg.Server.EventBuffer, logger)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Subscribe("live", live.NewBroadcaster(hub, svc.Compliance.Summary))
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		bus.Subscribe("redis", eventbus.NewRedisPublisher(rdb, cfg.Redis.Stream, cfg.Redis.MaxLen))
		logger.Info("publishing events to redis", zap.String("stream", cfg.Redis.Stream))
	}
	bus.Start(ctx)
	defer bus.Stop()

	rec := event.NewActivityRecorder(acts)
	rec.SetPublisher(bus)
	handler.SetRecorder(rec)

	if cfg.Seed.Demo {
		if err := seed.Demo(ctx, db, svc, cfg.Seed.TenantID, logger); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	port, _ := strconv.Atoi(cfg.Server.Port)
	return server.Run(ctx, server.Config{
		Port:            port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DB:              db,
		Activity:        acts,
		Hub:             hub,
		Logger:          logger,
		RateLimitRPS:    cfg.RateLimit.RPS,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}, svc)
}
