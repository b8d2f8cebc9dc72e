package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/metrics"
	"github.com/abduss/tribute/internal/queue"
	"github.com/abduss/tribute/internal/tracing"
)

// Options tunes a Runner. Zero values select defaults.
type Options struct {
	Concurrency  int
	PollInterval time.Duration
	JobTimeout   time.Duration
	RetryBackoff time.Duration
}

// Runner leases jobs from a queue and executes them.
type Runner struct {
	queue      queue.Queue
	dispatcher *Dispatcher
	opts       Options
	log        *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewRunner builds a runner over q. Zero Options fields select defaults.
func NewRunner(q queue.Queue, dispatcher *Dispatcher, log *zap.Logger, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Minute
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Runner{
		queue:      q,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log,
		tracer:     tracing.Tracer(),
		now:        time.Now,
	}
}

// Run polls the queue with Concurrency goroutines until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("starting worker",
		zap.Int("concurrency", r.opts.Concurrency),
		zap.Duration("poll_interval", r.opts.PollInterval),
		zap.Duration("job_timeout", r.opts.JobTimeout),
	)

	var wg sync.WaitGroup
	wg.Add(r.opts.Concurrency)
	for i := 0; i < r.opts.Concurrency; i++ {
		go func() {
			defer wg.Done()
			r.loop(ctx, i)
		}()
	}
	wg.Wait()

	r.log.Info("worker stopped")
	return nil
}

func (r *Runner) loop(ctx context.Context, index int) {
	for {
		if ctx.Err() != nil {
			return
		}

		ran, err := r.RunOnce(ctx)
		if err != nil {
			r.log.Error("worker iteration failed", zap.Int("worker", index), zap.Error(err))
		}
		if ran && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.opts.PollInterval):
		}
	}
}

// RunOnce settles jobs lost on their final attempt, then leases and executes
// at most one job. It reports whether a job was executed.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	r.reap(ctx)

	job, err := r.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if job == nil {
		return false, nil
	}
	return true, r.handle(ctx, job)
}

// reap runs the failure hooks of jobs whose worker vanished during the
// final attempt.
func (r *Runner) reap(ctx context.Context) {
	jobs, err := r.queue.ReapExpired(ctx)
	if err != nil {
		r.log.Error("reap expired jobs", zap.Error(err))
		return
	}

	settleCtx := context.WithoutCancel(ctx)
	for i := range jobs {
		job := &jobs[i]
		r.log.Error("job lease expired on final attempt",
			zap.Int64("job_id", job.ID),
			zap.String("job_type", job.Type),
			zap.Int("attempt", job.Attempts),
		)
		metrics.RecordJob(job.Type, "failed", 0)

		p, err := r.dispatcher.Get(job)
		if err != nil {
			continue
		}
		if h, ok := p.(FailureHandler); ok {
			h.OnFailure(settleCtx, job, queue.ErrLeaseExpired)
		}
	}
}

func (r *Runner) handle(ctx context.Context, job *queue.Job) error {
	// Settling a job must survive shutdown of the polling context.
	settleCtx := context.WithoutCancel(ctx)
	log := r.log.With(
		zap.Int64("job_id", job.ID),
		zap.String("job_type", job.Type),
		zap.Int("attempt", job.Attempts),
		zap.Int("max_attempts", job.MaxAttempts),
	)

	p, err := r.dispatcher.Get(job)
	if err != nil {
		log.Error("dropping job", zap.Error(err))
		metrics.RecordJob(job.Type, "unknown", 0)
		return r.queue.Fail(settleCtx, job.ID, err.Error())
	}

	ctx, span := r.tracer.Start(ctx, "job "+job.Type, trace.WithAttributes(
		attribute.Int64("job.id", job.ID),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	start := r.now()
	jobCtx, cancel := context.WithTimeout(ctx, r.opts.JobTimeout)
	err = execute(jobCtx, p, job)
	cancel()
	elapsed := r.now().Sub(start)

	if err == nil {
		metrics.RecordJob(job.Type, "success", elapsed)
		log.Info("job finished", zap.Duration("elapsed", elapsed))
		return r.queue.Complete(settleCtx, job.ID)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	permanent := queue.IsPermanent(err)
	if permanent || job.Attempts >= job.MaxAttempts {
		metrics.RecordJob(job.Type, "failed", elapsed)
		log.Error("job failed", zap.Bool("permanent", permanent), zap.Duration("elapsed", elapsed), zap.Error(err))
		if h, ok := p.(FailureHandler); ok {
			h.OnFailure(settleCtx, job, err)
		}
		return r.queue.Fail(settleCtx, job.ID, err.Error())
	}

	runAt := r.now().Add(r.opts.RetryBackoff)
	metrics.RecordJob(job.Type, "retry", elapsed)
	log.Warn("job failed, retrying", zap.Time("run_at", runAt), zap.Error(err))
	return r.queue.Retry(settleCtx, job.ID, runAt, err.Error())
}

func execute(ctx context.Context, p Processor, job *queue.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processor panic: %v", rec)
		}
	}()
	return p.Process(ctx, job)
}
