package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PulseTrigger/internal/api"
	"PulseTrigger/internal/automation"
	"PulseTrigger/internal/clock"
	"PulseTrigger/internal/config"
	"PulseTrigger/internal/csvparser"
	"PulseTrigger/internal/db"
	"PulseTrigger/internal/email"
	"PulseTrigger/internal/metrics"
	"PulseTrigger/internal/templates"
	"PulseTrigger/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Event Store
	// ------------------------------------------------
	var store db.Store

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer pg.Close()

		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("database migration failed", zap.Error(err))
		}

		recovered, err := pg.RecoverClaims(ctx)
		if err != nil {
			logger.Fatal("failed to recover claimed events", zap.Error(err))
		}
		if recovered > 0 {
			logger.Warn("released events claimed by a previous run", zap.Int("count", recovered))
		}
		store = pg
	default:
		logger.Warn("using in-memory event store, pending emails are lost on restart")
		store = db.NewMemoryStore()
	}

	// ------------------------------------------------
	// Templates
	// ------------------------------------------------
	registry := templates.Default()

	if cfg.TemplatesFile != "" {
		tpls, err := csvparser.ParseTemplatesFile(cfg.TemplatesFile)
		if err != nil {
			logger.Fatal("failed to load templates", zap.String("path", cfg.TemplatesFile), zap.Error(err))
		}
		registry = templates.NewRegistry(tpls...)
	}

	logger.Info("templates loaded", zap.Int("count", registry.Len()))

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Email Transport
	// ------------------------------------------------
	transport, _ := email.NewTransport(email.ProviderConfig{
		From:          cfg.EmailFrom,
		ResendAPIKey:  cfg.ResendAPIKey,
		SMTPHost:      cfg.SMTPHost,
		SMTPPort:      cfg.SMTPPort,
		SMTPUser:      cfg.SMTPUser,
		SMTPPassword:  cfg.SMTPPassword,
		RetryAttempts: cfg.RetryAttempts,
	}, logger)

	// ------------------------------------------------
	// Rate Limiter
	// ------------------------------------------------
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	// ------------------------------------------------
	// Automation Service + Dispatch Loop
	// ------------------------------------------------
	clk := clock.Real{}

	service := automation.New(store, registry, clk, logger)

	dispatcher := &worker.Dispatcher{
		Store:     store,
		Templates: registry,
		Transport: transport,
		Tracker:   worker.LogTracker{Log: logger},
		Limiter:   limiter,
		Clock:     clk,
		Interval:  cfg.DispatchInterval,
		Log:       logger,
	}

	dispatcher.Start(ctx)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Service: service,
		Log:     logger,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiHandler.Routes(),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Stop accepting new triggers
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	// Wait for the in-flight dispatch cycle
	dispatcher.Stop()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
