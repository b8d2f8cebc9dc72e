package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abduss/tribute/internal/config"
	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/disk"
	"github.com/abduss/tribute/internal/imageproc"
	"github.com/abduss/tribute/internal/lock"
	"github.com/abduss/tribute/internal/logger"
	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/metrics"
	"github.com/abduss/tribute/internal/pipeline"
	"github.com/abduss/tribute/internal/queue"
	"github.com/abduss/tribute/internal/storage"
	"github.com/abduss/tribute/internal/tracing"
	"github.com/abduss/tribute/internal/worker"
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

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, "worker", zl)
	if err != nil {
		zl.Fatal("setup tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zl.Error("shutdown tracing", zap.Error(err))
		}
	}()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	disks, err := disk.FromConfig(ctx, cfg)
	if err != nil {
		zl.Fatal("configure disks", zap.Error(err))
	}

	locker, err := newLocker(ctx, cfg.Redis, zl)
	if err != nil {
		zl.Fatal("configure locks", zap.Error(err))
	}

	mediaRepo := media.NewRepository(dbPool)
	recorder := derivative.NewRecorder(derivative.NewRepository(dbPool), zl.Named("recorder"))
	jobs := queue.NewPostgresQueue(dbPool, cfg.Worker.MaxAttempts, cfg.Worker.LeaseDuration)

	orchestrator := pipeline.NewOrchestrator(mediaRepo, recorder, disks, imageproc.NewEncoder(), zl.Named("pipeline"), pipeline.Options{
		MaxPixels:   cfg.Pipeline.MaxPixels,
		Parallelism: cfg.Pipeline.StageParallelism,
	})

	dispatcher := worker.NewDispatcher()
	dispatcher.Register(worker.NewDeriveProcessor(orchestrator, mediaRepo, locker, zl.Named("derive")))

	runner := worker.NewRunner(jobs, dispatcher, zl.Named("runner"), worker.Options{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		JobTimeout:   cfg.Worker.JobTimeout,
		RetryBackoff: cfg.Worker.RetryBackoff,
	})
	sweeper := worker.NewSweeper(mediaRepo, jobs, zl.Named("sweeper"), worker.SweepOptions{
		Schedule:   cfg.Worker.SweepSchedule,
		StaleAfter: cfg.Worker.SweepStaleAfter,
		BatchSize:  cfg.Worker.SweepBatchSize,
	})

	metrics.InitMetrics()
	metricsServer := newMetricsServer(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		zl.Info("worker metrics listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zl.Error("worker exited", zap.Error(err))
	}
	zl.Info("worker shut down")
}

func newLocker(ctx context.Context, cfg config.RedisConfig, zl *zap.Logger) (lock.Locker, error) {
	if cfg.URL == "" {
		zl.Info("REDIS_URL not set, using in-process media locks")
		return lock.NewLocalLocker(), nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	return lock.NewRedisLocker(client, cfg.LockExpiry, zl.Named("lock")), nil
}

// newMetricsServer exposes health and metrics for the worker process.
func newMetricsServer(cfg config.Config) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	metrics.Register(router, cfg.Metrics.PrometheusPath)

	return &http.Server{
		Addr:              cfg.Worker.MetricsAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
