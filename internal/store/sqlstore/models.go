package sqlstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/media"
)

type mediaRow struct {
	ID               string  `gorm:"primaryKey;type:text"`
	OriginalFilename string  `gorm:"not null"`
	MimeType         string  `gorm:"not null"`
	SizeBytes        int64   `gorm:"not null"`
	Width            *int
	Height           *int
	DurationSeconds  *int
	Hash             string `gorm:"not null;index"`
	Disk             string `gorm:"not null"`
	StoragePath      string `gorm:"not null"`
	IsPublic         bool   `gorm:"not null;default:false"`
	Status           string `gorm:"not null;default:pending;index:idx_media_status_updated,priority:1"`
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time `gorm:"index:idx_media_status_updated,priority:2"`
}

func (mediaRow) TableName() string { return "media" }

type derivativeRow struct {
	ID          string `gorm:"primaryKey;type:text"`
	MediaID     string `gorm:"not null;type:text;uniqueIndex:uq_media_derivatives_media_type,priority:1"`
	Type        string `gorm:"not null;uniqueIndex:uq_media_derivatives_media_type,priority:2"`
	StoragePath string `gorm:"not null"`
	Width       *int
	Height      *int
	SizeBytes   int64  `gorm:"not null"`
	Disk        string `gorm:"not null"`
	MimeType    string `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (derivativeRow) TableName() string { return "media_derivatives" }

func fromMedia(m media.Media) mediaRow {
	return mediaRow{
		ID:               m.ID.String(),
		OriginalFilename: m.OriginalFilename,
		MimeType:         m.MimeType,
		SizeBytes:        m.SizeBytes,
		Width:            m.Width,
		Height:           m.Height,
		DurationSeconds:  m.DurationSeconds,
		Hash:             m.Hash,
		Disk:             m.Disk,
		StoragePath:      m.StoragePath,
		IsPublic:         m.IsPublic,
		Status:           string(m.Status),
		ErrorMessage:     m.ErrorMessage,
	}
}

func (r mediaRow) toMedia() media.Media {
	return media.Media{
		ID:               uuid.MustParse(r.ID),
		OriginalFilename: r.OriginalFilename,
		MimeType:         r.MimeType,
		SizeBytes:        r.SizeBytes,
		Width:            r.Width,
		Height:           r.Height,
		DurationSeconds:  r.DurationSeconds,
		Hash:             r.Hash,
		Disk:             r.Disk,
		StoragePath:      r.StoragePath,
		IsPublic:         r.IsPublic,
		Status:           media.Status(r.Status),
		ErrorMessage:     r.ErrorMessage,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromDerivative(d derivative.Derivative) derivativeRow {
	return derivativeRow{
		ID:          d.ID.String(),
		MediaID:     d.MediaID.String(),
		Type:        string(d.Type),
		StoragePath: d.StoragePath,
		Width:       d.Width,
		Height:      d.Height,
		SizeBytes:   d.SizeBytes,
		Disk:        d.Disk,
		MimeType:    d.MimeType,
	}
}

func (r derivativeRow) toDerivative() derivative.Derivative {
	return derivative.Derivative{
		ID:          uuid.MustParse(r.ID),
		MediaID:     uuid.MustParse(r.MediaID),
		Type:        derivative.Type(r.Type),
		StoragePath: r.StoragePath,
		Width:       r.Width,
		Height:      r.Height,
		SizeBytes:   r.SizeBytes,
		Disk:        r.Disk,
		MimeType:    r.MimeType,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
