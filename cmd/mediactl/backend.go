package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/disk"
	"github.com/abduss/tribute/internal/imageproc"
	"github.com/abduss/tribute/internal/lock"
	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/pipeline"
	"github.com/abduss/tribute/internal/queue"
	"github.com/abduss/tribute/internal/storage"
	"github.com/abduss/tribute/internal/store/sqlstore"
	"github.com/abduss/tribute/internal/worker"
)

type mediaStore interface {
	Create(ctx context.Context, m media.Media) (media.Media, error)
	Get(ctx context.Context, id uuid.UUID) (media.Media, error)
	List(ctx context.Context, limit, offset int) ([]media.Media, error)
	Delete(ctx context.Context, id uuid.UUID) (media.Media, error)
	UpdateDimensions(ctx context.Context, id uuid.UUID, width, height int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status media.Status, message *string) error
}

// backend bundles the stores one command invocation works against.
type backend struct {
	media       mediaStore
	derivatives derivative.Store
	disks       *disk.Manager
	jobs        queue.Queue
	// inline is set when no external worker drains jobs.
	inline bool
	close  func()
}

func (a *app) openBackend(ctx context.Context) (*backend, error) {
	if a.sqlitePath != "" {
		return a.openSQLite(ctx)
	}

	pool, err := storage.NewPostgresPool(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	disks, err := disk.FromConfig(ctx, a.cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &backend{
		media:       media.NewRepository(pool),
		derivatives: derivative.NewRepository(pool),
		disks:       disks,
		jobs:        queue.NewPostgresQueue(pool, a.cfg.Worker.MaxAttempts, a.cfg.Worker.LeaseDuration),
		close:       pool.Close,
	}, nil
}

func (a *app) openSQLite(ctx context.Context) (*backend, error) {
	db, err := sqlstore.Open(ctx, sqlstore.Config{Path: a.sqlitePath})
	if err != nil {
		return nil, err
	}

	public, err := disk.NewFSDisk(disk.Public, filepath.Join(a.storageRoot, disk.Public), a.cfg.Local.PublicBaseURL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	local, err := disk.NewFSDisk(disk.Local, filepath.Join(a.storageRoot, disk.Local), "")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &backend{
		media:       db.Media(),
		derivatives: db.Derivatives(),
		disks:       disk.NewManager(public, local),
		jobs:        queue.NewMemoryQueue(a.cfg.Worker.MaxAttempts, a.cfg.Worker.LeaseDuration),
		inline:      true,
		close:       func() { _ = db.Close() },
	}, nil
}

func (a *app) service(b *backend) (*media.Service, error) {
	return media.NewService(b.media, b.derivatives, b.disks, b.jobs, a.log.Named("media"), media.Options{
		MaxFileSize:  a.cfg.Upload.MaxBytes,
		URLTTL:       a.cfg.Disks.URLTTL,
		URLCacheSize: a.cfg.Upload.URLCacheSize,
	})
}

func (a *app) orchestrator(b *backend) *pipeline.Orchestrator {
	recorder := derivative.NewRecorder(b.derivatives, a.log.Named("recorder"))
	return pipeline.NewOrchestrator(b.media, recorder, b.disks, imageproc.NewEncoder(), a.log.Named("pipeline"), pipeline.Options{
		MaxPixels:   a.cfg.Pipeline.MaxPixels,
		Parallelism: a.cfg.Pipeline.StageParallelism,
	})
}

// drain runs queued jobs in-process until the queue has nothing ready.
func (a *app) drain(ctx context.Context, b *backend) (int, error) {
	dispatcher := worker.NewDispatcher()
	dispatcher.Register(worker.NewDeriveProcessor(a.orchestrator(b), b.media, lock.NewLocalLocker(), a.log.Named("derive")))
	runner := worker.NewRunner(b.jobs, dispatcher, a.log.Named("runner"), worker.Options{
		Concurrency:  1,
		JobTimeout:   a.cfg.Worker.JobTimeout,
		RetryBackoff: time.Nanosecond,
	})

	count := 0
	for {
		ran, err := runner.RunOnce(ctx)
		if err != nil {
			return count, fmt.Errorf("run job: %w", err)
		}
		if !ran {
			return count, nil
		}
		count++
	}
}
