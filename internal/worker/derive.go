package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/disk"
	"github.com/abduss/tribute/internal/imageproc"
	"github.com/abduss/tribute/internal/lock"
	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/pipeline"
	"github.com/abduss/tribute/internal/queue"
)

type derivativePipeline interface {
	Process(ctx context.Context, id uuid.UUID) (pipeline.Report, error)
}

type statusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status media.Status, message *string) error
}

// DeriveProcessor runs the derivative pipeline for media.derive jobs.
type DeriveProcessor struct {
	pipeline derivativePipeline
	media    statusUpdater
	locker   lock.Locker
	log      *zap.Logger
}

// NewDeriveProcessor wires the processor. locker may be nil, in which case
// concurrent runs for the same media race and the last write wins.
func NewDeriveProcessor(p derivativePipeline, store statusUpdater, locker lock.Locker, log *zap.Logger) *DeriveProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeriveProcessor{pipeline: p, media: store, locker: locker, log: log}
}

func (p *DeriveProcessor) JobType() string { return queue.DeriveMediaJob }

func (p *DeriveProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.DeriveMediaPayload
	if err := job.Decode(&payload); err != nil {
		return queue.Permanent(err)
	}
	if payload.MediaID == uuid.Nil {
		return queue.Permanent(errors.New("derive job without media id"))
	}

	if p.locker != nil {
		unlock, err := p.locker.Lock(ctx, payload.MediaID.String())
		if err != nil {
			return fmt.Errorf("lock media %s: %w", payload.MediaID, err)
		}
		defer unlock()
	}

	report, err := p.pipeline.Process(ctx, payload.MediaID)
	if err != nil {
		if isPermanent(err) {
			return queue.Permanent(err)
		}
		return err
	}

	p.log.Debug("derivatives generated",
		zap.String("media_id", payload.MediaID.String()),
		zap.String("status", string(report.Status)),
		zap.Int("succeeded", report.Succeeded()),
	)
	return nil
}

// OnFailure marks the media errored once retries are exhausted. Permanent
// failures already carry a specific message from the pipeline.
func (p *DeriveProcessor) OnFailure(ctx context.Context, job *queue.Job, err error) {
	if queue.IsPermanent(err) {
		return
	}

	var payload queue.DeriveMediaPayload
	if decodeErr := job.Decode(&payload); decodeErr != nil {
		return
	}

	msg := pipeline.MessageJobFailed
	if updateErr := p.media.UpdateStatus(ctx, payload.MediaID, media.StatusError, &msg); updateErr != nil {
		p.log.Error("mark media failed",
			zap.String("media_id", payload.MediaID.String()),
			zap.Error(updateErr),
		)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, pipeline.ErrSourceMissing) ||
		errors.Is(err, pipeline.ErrUnsupportedImage) ||
		errors.Is(err, imageproc.ErrImageTooLarge) ||
		errors.Is(err, media.ErrMediaNotFound) ||
		errors.Is(err, disk.ErrUnknownDisk)
}
