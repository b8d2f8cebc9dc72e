package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/disk"
	"github.com/abduss/tribute/internal/imageproc"
	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/metrics"
	"github.com/abduss/tribute/internal/tracing"
)

const posterMIME = "image/jpeg"

type mediaStore interface {
	Get(ctx context.Context, id uuid.UUID) (media.Media, error)
	UpdateDimensions(ctx context.Context, id uuid.UUID, width, height int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status media.Status, message *string) error
}

type derivativeRecorder interface {
	Record(ctx context.Context, target disk.Disk, d derivative.Derivative, data []byte) (derivative.Derivative, error)
}

type diskResolver interface {
	Disk(name string) (disk.Disk, error)
}

type variantEncoder interface {
	Encode(img image.Image, p imageproc.Preset) (imageproc.Result, error)
}

// Options tunes an Orchestrator. Zero values select defaults.
type Options struct {
	Presets     []imageproc.Preset
	MaxPixels   int64
	Parallelism int
}

// StageResult is the outcome of producing one derivative.
type StageResult struct {
	Type       derivative.Type
	Derivative derivative.Derivative
	Err        error
}

// Report summarises one pipeline run.
type Report struct {
	MediaID uuid.UUID
	Stages  []StageResult
	Status  media.Status
}

// Succeeded counts stages that recorded a derivative.
func (r Report) Succeeded() int {
	n := 0
	for _, s := range r.Stages {
		if s.Err == nil {
			n++
		}
	}
	return n
}

// Orchestrator turns one media original into its derivatives.
type Orchestrator struct {
	media       mediaStore
	recorder    derivativeRecorder
	disks       diskResolver
	encoder     variantEncoder
	presets     []imageproc.Preset
	maxPixels   int64
	parallelism int
	log         *zap.Logger
	tracer      trace.Tracer
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(store mediaStore, recorder derivativeRecorder, disks diskResolver, encoder variantEncoder, log *zap.Logger, opts Options) *Orchestrator {
	if len(opts.Presets) == 0 {
		opts.Presets = imageproc.DefaultPresets()
	}
	if opts.MaxPixels == 0 {
		opts.MaxPixels = imageproc.DefaultMaxPixels
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		media:       store,
		recorder:    recorder,
		disks:       disks,
		encoder:     encoder,
		presets:     opts.Presets,
		maxPixels:   opts.MaxPixels,
		parallelism: opts.Parallelism,
		log:         log,
		tracer:      tracing.Tracer(),
	}
}

// Process (re)generates every derivative of the media item. Stage failures
// are reported in the Report and do not fail the run. The returned error is
// non-nil only when the item could not be processed at all: a missing
// original, an oversized or undecodable image, a store/disk error worth
// retrying, or ctx ending mid-run. In the last case the status is left
// untouched for the retry.
func (o *Orchestrator) Process(ctx context.Context, id uuid.UUID) (Report, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("media.id", id.String())))
	defer span.End()

	report := Report{MediaID: id}

	m, err := o.media.Get(ctx, id)
	if err != nil {
		return report, fmt.Errorf("load media %s: %w", id, err)
	}

	log := o.log.With(
		zap.String("media_id", id.String()),
		zap.String("disk", m.Disk),
		zap.String("path", m.StoragePath),
	)

	source, err := o.disks.Disk(m.Disk)
	if err != nil {
		return report, fmt.Errorf("resolve disk for media %s: %w", id, err)
	}

	exists, err := source.Exists(ctx, m.StoragePath)
	if err != nil {
		return report, fmt.Errorf("check original of media %s: %w", id, err)
	}
	if !exists {
		log.Error("original file missing, no derivatives attempted")
		o.markError(ctx, log, &report, msgSourceMissing)
		span.SetStatus(codes.Error, msgSourceMissing)
		return report, ErrSourceMissing
	}

	if err := o.media.UpdateStatus(ctx, id, media.StatusProcessing, nil); err != nil {
		return report, fmt.Errorf("mark media %s processing: %w", id, err)
	}

	if m.IsImage() {
		err = o.processImage(ctx, log, source, m, &report)
	} else {
		report.Stages = []StageResult{o.writePoster(ctx, log, source, m)}
	}
	if err == nil && ctx.Err() != nil {
		log.Warn("pipeline interrupted, leaving status for retry",
			zap.Int("succeeded", report.Succeeded()),
			zap.Error(ctx.Err()),
		)
		err = fmt.Errorf("derive media %s: %w", id, ctx.Err())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	if report.Succeeded() > 0 {
		report.Status = media.StatusReady
		if err := o.media.UpdateStatus(context.WithoutCancel(ctx), id, media.StatusReady, nil); err != nil {
			return report, fmt.Errorf("mark media %s ready: %w", id, err)
		}
	} else {
		o.markError(ctx, log, &report, msgNoDerivatives)
	}

	log.Info("pipeline finished",
		zap.String("status", string(report.Status)),
		zap.Int("stages", len(report.Stages)),
		zap.Int("succeeded", report.Succeeded()),
	)
	return report, nil
}

func (o *Orchestrator) processImage(ctx context.Context, log *zap.Logger, source disk.Disk, m media.Media, report *Report) error {
	data, err := source.Get(ctx, m.StoragePath)
	if err != nil {
		return fmt.Errorf("read original of media %s: %w", m.ID, err)
	}

	info, err := imageproc.Probe(data)
	if err != nil {
		log.Warn("probe failed, leaving dimensions empty", zap.Error(err))
	} else {
		if err := imageproc.CheckPixelLimit(info, o.maxPixels); err != nil {
			log.Error("refusing to decode oversized image",
				zap.Int("width", info.Width),
				zap.Int("height", info.Height),
				zap.Error(err),
			)
			o.markError(ctx, log, report, msgTooLarge)
			return err
		}
		if err := o.media.UpdateDimensions(ctx, m.ID, info.Width, info.Height); err != nil {
			return fmt.Errorf("record dimensions of media %s: %w", m.ID, err)
		}
	}

	img, err := imageproc.Decode(data)
	if err != nil {
		log.Error("decode original", zap.Error(err))
		o.markError(ctx, log, report, msgUnsupported)
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("decode media %s: %w", m.ID, err)
	}

	// The decoded bitmap is only read by the stages.
	stages := make([]StageResult, len(o.presets))
	g := new(errgroup.Group)
	g.SetLimit(o.parallelism)
	for i, p := range o.presets {
		g.Go(func() error {
			stages[i] = o.encodeStage(ctx, log, source, m, img, p)
			return nil
		})
	}
	_ = g.Wait()

	report.Stages = stages
	return nil
}

func (o *Orchestrator) encodeStage(ctx context.Context, log *zap.Logger, target disk.Disk, m media.Media, img image.Image, p imageproc.Preset) StageResult {
	t := derivative.Type(p.Name)
	result := StageResult{Type: t}
	log = log.With(zap.String("stage", p.Name))

	ctx, span := o.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("derivative.type", p.Name)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return o.stageFailed(span, log, result, "none", err)
	}

	enc, err := o.encoder.Encode(img, p)
	if err != nil {
		return o.stageFailed(span, log, result, "none", fmt.Errorf("encode %s: %w", p.Name, err))
	}
	// Encoding does not observe ctx, so check again before writing.
	if err := ctx.Err(); err != nil {
		return o.stageFailed(span, log, result, enc.Format.Name, err)
	}
	if enc.FallbackReason != "" {
		log.Debug("preferred codec failed, used fallback",
			zap.String("format", enc.Format.Name),
			zap.String("reason", enc.FallbackReason),
		)
	}

	width, height := enc.Width, enc.Height
	d, err := o.recorder.Record(ctx, target, derivative.Derivative{
		MediaID:     m.ID,
		Type:        t,
		StoragePath: derivative.StoragePath(m.ID, t, enc.Format.Ext),
		Width:       &width,
		Height:      &height,
		MimeType:    enc.Format.MIME,
	}, enc.Data)
	if err != nil {
		return o.stageFailed(span, log, result, enc.Format.Name, err)
	}

	span.SetAttributes(
		attribute.String("derivative.format", enc.Format.Name),
		attribute.Int("derivative.quality", enc.Quality),
		attribute.Int64("derivative.bytes", enc.Size()),
	)
	metrics.RecordDerivative(p.Name, enc.Format.Name, "success", enc.Size(), enc.Attempts)

	result.Derivative = d
	return result
}

// writePoster records the placeholder poster used for media the pipeline
// cannot render, such as video.
func (o *Orchestrator) writePoster(ctx context.Context, log *zap.Logger, target disk.Disk, m media.Media) StageResult {
	result := StageResult{Type: derivative.TypePoster}
	log = log.With(zap.String("stage", string(derivative.TypePoster)))

	ctx, span := o.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("derivative.type", string(derivative.TypePoster))))
	defer span.End()

	d, err := o.recorder.Record(ctx, target, derivative.Derivative{
		MediaID:     m.ID,
		Type:        derivative.TypePoster,
		StoragePath: derivative.StoragePath(m.ID, derivative.TypePoster, "jpg"),
		MimeType:    posterMIME,
	}, []byte{})
	if err != nil {
		return o.stageFailed(span, log, result, "placeholder", err)
	}

	metrics.RecordDerivative(string(derivative.TypePoster), "placeholder", "success", 0, 0)
	result.Derivative = d
	return result
}

func (o *Orchestrator) stageFailed(span trace.Span, log *zap.Logger, result StageResult, format string, err error) StageResult {
	log.Error("derivative stage failed", zap.Error(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.RecordDerivative(string(result.Type), format, "failed", 0, 0)

	result.Err = err
	return result
}

// markError records a terminal failure on the media row, even when ctx is
// already done. A failed status write is logged; the caller's error takes
// precedence.
func (o *Orchestrator) markError(ctx context.Context, log *zap.Logger, report *Report, message string) {
	report.Status = media.StatusError
	if err := o.media.UpdateStatus(context.WithoutCancel(ctx), report.MediaID, media.StatusError, &message); err != nil {
		log.Error("update media status", zap.String("status", string(media.StatusError)), zap.Error(err))
	}
}
