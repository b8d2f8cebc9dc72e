package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abduss/tribute/internal/media"
)

// MediaStore implements media metadata persistence on SQLite.
type MediaStore struct {
	db  *gorm.DB
	now func() time.Time
}

func (s *MediaStore) Create(ctx context.Context, m media.Media) (media.Media, error) {
	row := fromMedia(m)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return media.Media{}, fmt.Errorf("create media: %w", err)
	}
	return row.toMedia(), nil
}

func (s *MediaStore) Get(ctx context.Context, id uuid.UUID) (media.Media, error) {
	var row mediaRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return media.Media{}, media.ErrMediaNotFound
		}
		return media.Media{}, fmt.Errorf("get media: %w", err)
	}
	return row.toMedia(), nil
}

func (s *MediaStore) List(ctx context.Context, limit, offset int) ([]media.Media, error) {
	var rows []mediaRow
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return toMediaList(rows), nil
}

func (s *MediaStore) ListStale(ctx context.Context, status media.Status, before time.Time, limit int) ([]media.Media, error) {
	var rows []mediaRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(status), before.UTC()).
		Order("updated_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list stale media: %w", err)
	}
	return toMediaList(rows), nil
}

// Delete removes the media row and its derivative rows in one transaction.
func (s *MediaStore) Delete(ctx context.Context, id uuid.UUID) (media.Media, error) {
	var row mediaRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "id = ?", id.String()).Error; err != nil {
			return err
		}
		if err := tx.Where("media_id = ?", row.ID).Delete(&derivativeRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&mediaRow{}, "id = ?", row.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return media.Media{}, media.ErrMediaNotFound
		}
		return media.Media{}, fmt.Errorf("delete media: %w", err)
	}
	return row.toMedia(), nil
}

func (s *MediaStore) UpdateDimensions(ctx context.Context, id uuid.UUID, width, height int) error {
	return s.update(ctx, "update media dimensions", id, map[string]any{
		"width":  width,
		"height": height,
	})
}

func (s *MediaStore) UpdateStatus(ctx context.Context, id uuid.UUID, status media.Status, message *string) error {
	return s.update(ctx, "update media status", id, map[string]any{
		"status":        string(status),
		"error_message": message,
	})
}

func (s *MediaStore) update(ctx context.Context, op string, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = s.now()
	res := s.db.WithContext(ctx).Model(&mediaRow{}).Where("id = ?", id.String()).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return media.ErrMediaNotFound
	}
	return nil
}

func toMediaList(rows []mediaRow) []media.Media {
	list := make([]media.Media, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toMedia())
	}
	return list
}
