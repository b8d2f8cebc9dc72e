package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/queue"
)

type staleStore interface {
	ListStale(ctx context.Context, status media.Status, before time.Time, limit int) ([]media.Media, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status media.Status, message *string) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) (queue.Job, error)
}

// SweepOptions tunes a Sweeper.
type SweepOptions struct {
	Schedule   string
	StaleAfter time.Duration
	BatchSize  int
}

// Sweeper re-dispatches media left pending, typically because the upload's
// dispatch was lost.
type Sweeper struct {
	store      staleStore
	jobs       jobEnqueuer
	schedule   string
	staleAfter time.Duration
	batchSize  int
	log        *zap.Logger
	now        func() time.Time
}

// NewSweeper builds a sweeper. Zero SweepOptions fields select defaults.
func NewSweeper(store staleStore, jobs jobEnqueuer, log *zap.Logger, opts SweepOptions) *Sweeper {
	if opts.Schedule == "" {
		opts.Schedule = "@every 5m"
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Sweeper{
		store:      store,
		jobs:       jobs,
		schedule:   opts.Schedule,
		staleAfter: opts.StaleAfter,
		batchSize:  opts.BatchSize,
		log:        log,
		now:        time.Now,
	}
}

// Sweep enqueues a derive job for every media item pending longer than the
// stale threshold and returns how many were re-dispatched.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.staleAfter)
	stale, err := s.store.ListStale(ctx, media.StatusPending, cutoff, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale media: %w", err)
	}

	count := 0
	for _, m := range stale {
		log := s.log.With(zap.String("media_id", m.ID.String()))

		if _, err := s.jobs.Enqueue(ctx, queue.DeriveMediaJob, queue.DeriveMediaPayload{MediaID: m.ID}); err != nil {
			log.Error("re-dispatch stale media", zap.Error(err))
			continue
		}
		// Refreshes updated_at so the item is not picked again next sweep.
		if err := s.store.UpdateStatus(ctx, m.ID, media.StatusPending, nil); err != nil {
			log.Warn("touch stale media", zap.Error(err))
		}
		count++
	}

	if count > 0 {
		s.log.Info("re-dispatched stale media", zap.Int("count", count))
	}
	return count, nil
}

// Run sweeps on the configured cron schedule until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}

	s.log.Info("starting sweeper", zap.String("schedule", s.schedule), zap.Duration("stale_after", s.staleAfter))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
