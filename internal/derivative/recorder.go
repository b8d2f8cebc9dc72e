package derivative

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/disk"
)

// Store is the persistence surface the recorder and readers need.
type Store interface {
	Upsert(ctx context.Context, d Derivative) (Derivative, error)
	Get(ctx context.Context, mediaID uuid.UUID, t Type) (Derivative, error)
	ListByMedia(ctx context.Context, mediaID uuid.UUID) ([]Derivative, error)
}

// Recorder writes derivative bytes and then records their metadata, so a row
// never points at a file that was not written.
type Recorder struct {
	store Store
	log   *zap.Logger
}

// NewRecorder constructs a recorder.
func NewRecorder(store Store, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{store: store, log: log}
}

// Record stores data at d.StoragePath on target and upserts the row keyed by
// (MediaID, Type). SizeBytes and Disk are taken from the write. A file left
// behind by a previous run at a different path is removed best-effort.
func (r *Recorder) Record(ctx context.Context, target disk.Disk, d Derivative, data []byte) (Derivative, error) {
	previous, err := r.store.Get(ctx, d.MediaID, d.Type)
	hadPrevious := err == nil
	if err != nil && !errors.Is(err, ErrDerivativeNotFound) {
		return Derivative{}, fmt.Errorf("load previous derivative: %w", err)
	}

	if dir := path.Dir(d.StoragePath); dir != "." && dir != "/" {
		if err := target.MakeDirectory(ctx, dir); err != nil {
			return Derivative{}, fmt.Errorf("prepare derivative directory: %w", err)
		}
	}
	if err := target.Put(ctx, d.StoragePath, data, d.MimeType); err != nil {
		return Derivative{}, fmt.Errorf("store derivative: %w", err)
	}

	d.SizeBytes = int64(len(data))
	d.Disk = target.Name()

	stored, err := r.store.Upsert(ctx, d)
	if err != nil {
		return Derivative{}, fmt.Errorf("record derivative: %w", err)
	}

	if hadPrevious && previous.Disk == target.Name() && previous.StoragePath != stored.StoragePath {
		if err := target.Delete(ctx, previous.StoragePath); err != nil {
			r.log.Warn("remove superseded derivative",
				zap.String("media_id", d.MediaID.String()),
				zap.String("type", string(d.Type)),
				zap.String("disk", previous.Disk),
				zap.String("path", previous.StoragePath),
				zap.Error(err),
			)
		}
	}

	return stored, nil
}
