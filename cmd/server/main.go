package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"peoplepulse/realtime-hub/internal/audit"
	auditrepo "peoplepulse/realtime-hub/internal/audit/repository"
	"peoplepulse/realtime-hub/internal/config"
	"peoplepulse/realtime-hub/internal/db"
	"peoplepulse/realtime-hub/internal/hub"
	"peoplepulse/realtime-hub/internal/logger"
	notificationrepo "peoplepulse/realtime-hub/internal/notification/repository"
	"peoplepulse/realtime-hub/internal/security"
	"peoplepulse/realtime-hub/internal/server"
	"peoplepulse/realtime-hub/internal/telemetry/otel"
	"peoplepulse/realtime-hub/internal/transport/ws"
)

const serviceName = "realtime-hub"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		zlog.Fatal("telemetry setup failed", zap.Error(err))
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	// Persistence is optional: without DATABASE_URL the hub runs in-memory
	// only and notifications are emit-only.
	var (
		pinger            server.Pinger
		auditLogger       hub.AuditLogger
		notificationStore hub.NotificationStore
	)
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("database connection failed", zap.Error(err))
		}
		defer func() { _ = sqlDB.Close() }()
		pinger = sqlDB
		auditLogger = audit.NewLogger(auditrepo.NewPostgresRepository(sqlDB), zlog)
		notificationStore = notificationrepo.NewPostgresStore(sqlDB)
		zlog.Info("persistence enabled")
	} else {
		zlog.Warn("DATABASE_URL not set; notifications and audit events will not be persisted")
	}

	var validator *security.TokenValidator
	if cfg.JWTPublicKey != "" {
		validator, err = security.NewTokenValidator(cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			zlog.Fatal("token validator setup failed", zap.Error(err))
		}
	} else {
		zlog.Warn("JWT_PUBLIC_KEY not set; websocket handshake auth is disabled")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := hub.New(hub.Options{
		Logger:  zlog,
		LockTTL: cfg.LockTTLDuration(),
		Audit:   auditLogger,
		Metrics: hub.NewMetrics(promRegistry),
	})
	facade := hub.NewFacade(h, hub.FacadeOptions{
		Store:             notificationStore,
		Logger:            zlog,
		NR1AlertThreshold: cfg.NR1AlertThreshold,
	})

	router := server.NewRouter(server.Deps{
		Hub:           h,
		Facade:        facade,
		WSHandler:     ws.NewHandler(h, validator, zlog),
		InternalToken: cfg.InternalAPIToken,
		Pinger:        pinger,
		PromRegistry:  promRegistry,
		Logger:        zlog,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("serve failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown did not complete cleanly", zap.Error(err))
	}
	zlog.Info("http server stopped")
}
