package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abduss/tribute/internal/derivative"
)

// DerivativeStore implements derivative metadata persistence on SQLite.
type DerivativeStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Upsert inserts or replaces the row for (media_id, type), keeping the
// original id and created_at.
func (s *DerivativeStore) Upsert(ctx context.Context, d derivative.Derivative) (derivative.Derivative, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := fromDerivative(d)
	now := s.now()
	row.CreatedAt, row.UpdatedAt = now, now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "media_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"storage_path", "width", "height", "size_bytes", "disk", "mime_type", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return derivative.Derivative{}, fmt.Errorf("upsert derivative: %w", err)
	}

	return s.Get(ctx, d.MediaID, d.Type)
}

func (s *DerivativeStore) Get(ctx context.Context, mediaID uuid.UUID, t derivative.Type) (derivative.Derivative, error) {
	var row derivativeRow
	err := s.db.WithContext(ctx).First(&row, "media_id = ? AND type = ?", mediaID.String(), string(t)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return derivative.Derivative{}, derivative.ErrDerivativeNotFound
		}
		return derivative.Derivative{}, fmt.Errorf("get derivative: %w", err)
	}
	return row.toDerivative(), nil
}

func (s *DerivativeStore) ListByMedia(ctx context.Context, mediaID uuid.UUID) ([]derivative.Derivative, error) {
	var rows []derivativeRow
	err := s.db.WithContext(ctx).Where("media_id = ?", mediaID.String()).Order("type").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list derivatives: %w", err)
	}

	list := make([]derivative.Derivative, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toDerivative())
	}
	return list, nil
}
