package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ugobe007/pythh-sub021/internal/api"
	"github.com/ugobe007/pythh-sub021/internal/cache"
	"github.com/ugobe007/pythh-sub021/internal/config"
	"github.com/ugobe007/pythh-sub021/internal/enrichment"
	"github.com/ugobe007/pythh-sub021/internal/guard"
	"github.com/ugobe007/pythh-sub021/internal/hermes"
	"github.com/ugobe007/pythh-sub021/internal/redact"
	"github.com/ugobe007/pythh-sub021/internal/rescore"
	"github.com/ugobe007/pythh-sub021/internal/scoring"
	"github.com/ugobe007/pythh-sub021/internal/store"
	"github.com/ugobe007/pythh-sub021/internal/versions"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("godscore exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(c config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := pg.Migrate(ctx, logger); err != nil {
			pg.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		db = pg
		logger.Info("connected to database")
	} else {
		db = store.NewMemoryStore()
		logger.Warn("no database configured, using in-memory store")
	}
	defer db.Close()

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}
	emitter := hermes.NewEmitter(hermesClient, cfg.Hermes.QueueSize, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := emitter.Close(flushCtx); err != nil {
			logger.Warn("event flush incomplete", "error", err)
		}
	}()

	// Suppression cache
	var suppression cache.SuppressionCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.KeyPrefix)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		suppression = rc
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		suppression = cache.NewMemoryCache()
	}
	defer suppression.Close()

	// Weight versions
	vs := versions.NewService(db, emitter, logger)
	if _, err := vs.Bootstrap(ctx, cfg.Scoring.BootstrapVersion, scoring.DefaultWeightConfig()); err != nil {
		return fmt.Errorf("bootstrap weights: %w", err)
	}
	active, err := vs.Active(ctx)
	if err != nil {
		return fmt.Errorf("no usable weight version: %w", err)
	}
	logger.Info("active weight version", "version", active.Version)

	// Enrichment (optional)
	var features rescore.FeatureSource
	if cfg.Enrichment.URL != "" {
		features = enrichment.NewHTTPClient(cfg.Enrichment.URL, cfg.EnrichmentTimeout(), cfg.Enrichment.RequestsPerSecond)
	}

	rs := rescore.NewService(db, scoring.NewScorer(cfg.DecayRules(), logger), features, emitter, logger)

	g := guard.New(db, suppression, rs, emitter, guard.Config{
		Interval:      cfg.GuardInterval(),
		WindowDays:    cfg.Guard.WindowDays,
		DecayInterval: cfg.DecayInterval(),
	}, logger)
	if cfg.Guard.Enabled {
		g.Start(ctx)
		defer g.Stop()
		logger.Info("guard started", "interval", cfg.GuardInterval(), "window_days", cfg.Guard.WindowDays)
	}

	router := api.NewRouter(api.Deps{
		Store:              db,
		Versions:           vs,
		Rescore:            rs,
		Guard:              g,
		Tripwire:           redact.New(redact.Options{BlockBareName: cfg.Redaction.BlockBareName}),
		Emitter:            emitter,
		AdminToken:         cfg.Server.AdminToken,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Logger:             logger,
	})
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("API server starting", "port", cfg.Server.Port)
		return serve(apiServer)
	})
	eg.Go(func() error {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		return serve(metricsServer)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	err = eg.Wait()
	logger.Info("shutdown complete")
	return err
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
