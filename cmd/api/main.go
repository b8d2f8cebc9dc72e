package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/config"
	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/disk"
	"github.com/abduss/tribute/internal/logger"
	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/metrics"
	"github.com/abduss/tribute/internal/queue"
	"github.com/abduss/tribute/internal/server"
	"github.com/abduss/tribute/internal/storage"
	"github.com/abduss/tribute/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	zl, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		zl.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, "api", zl)
	if err != nil {
		zl.Fatal("setup tracing", zap.Error(err))
	}

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Postgres.AutoMigrate {
		if _, err := storage.Migrate(cfg.Postgres, zl); err != nil {
			zl.Fatal("migrate", zap.Error(err))
		}
	}

	disks, err := disk.FromConfig(ctx, cfg)
	if err != nil {
		zl.Fatal("configure disks", zap.Error(err))
	}

	mediaRepo := media.NewRepository(dbPool)
	derivativeRepo := derivative.NewRepository(dbPool)
	jobs := queue.NewPostgresQueue(dbPool, cfg.Worker.MaxAttempts, cfg.Worker.LeaseDuration)

	mediaService, err := media.NewService(mediaRepo, derivativeRepo, disks, jobs, zl.Named("media"), media.Options{
		MaxFileSize:  cfg.Upload.MaxBytes,
		URLTTL:       cfg.Disks.URLTTL,
		URLCacheSize: cfg.Upload.URLCacheSize,
	})
	if err != nil {
		zl.Fatal("create media service", zap.Error(err))
	}

	metrics.InitMetrics()

	router := server.NewRouter(server.Dependencies{
		Config:       cfg,
		DB:           dbPool,
		Disks:        disks,
		MediaService: mediaService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("tribute API listening", zap.String("addr", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Error("shutdown tracing", zap.Error(err))
	}
}
