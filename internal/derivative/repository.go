package derivative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const columns = `id, media_id, type, storage_path, width, height, size_bytes, disk, mime_type, created_at, updated_at`

// Repository persists derivative metadata in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a derivative repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts the derivative or replaces the row already recorded for
// (media_id, type). The row id and created_at survive replacement.
func (r *Repository) Upsert(ctx context.Context, d Derivative) (Derivative, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	query := `
INSERT INTO media_derivatives (id, media_id, type, storage_path, width, height, size_bytes, disk, mime_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (media_id, type) DO UPDATE
SET storage_path = EXCLUDED.storage_path,
    width        = EXCLUDED.width,
    height       = EXCLUDED.height,
    size_bytes   = EXCLUDED.size_bytes,
    disk         = EXCLUDED.disk,
    mime_type    = EXCLUDED.mime_type,
    updated_at   = NOW()
RETURNING ` + columns + `;`

	row := r.pool.QueryRow(ctx, query,
		d.ID,
		d.MediaID,
		string(d.Type),
		d.StoragePath,
		d.Width,
		d.Height,
		d.SizeBytes,
		d.Disk,
		d.MimeType,
	)

	stored, err := scan(row)
	if err != nil {
		return Derivative{}, fmt.Errorf("upsert derivative: %w", err)
	}
	return stored, nil
}

// Get returns the derivative of type t for a media item.
func (r *Repository) Get(ctx context.Context, mediaID uuid.UUID, t Type) (Derivative, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + columns + ` FROM media_derivatives WHERE media_id = $1 AND type = $2;`

	d, err := scan(r.pool.QueryRow(ctx, query, mediaID, string(t)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Derivative{}, ErrDerivativeNotFound
		}
		return Derivative{}, fmt.Errorf("get derivative: %w", err)
	}
	return d, nil
}

// ListByMedia returns all derivatives of a media item ordered by type.
func (r *Repository) ListByMedia(ctx context.Context, mediaID uuid.UUID) ([]Derivative, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + columns + ` FROM media_derivatives WHERE media_id = $1 ORDER BY type;`

	rows, err := r.pool.Query(ctx, query, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list derivatives: %w", err)
	}
	defer rows.Close()

	var list []Derivative
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan derivative: %w", err)
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate derivatives: %w", err)
	}
	return list, nil
}

func scan(row pgx.Row) (Derivative, error) {
	var (
		d       Derivative
		derType string
	)
	err := row.Scan(
		&d.ID,
		&d.MediaID,
		&derType,
		&d.StoragePath,
		&d.Width,
		&d.Height,
		&d.SizeBytes,
		&d.Disk,
		&d.MimeType,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	d.Type = Type(derType)
	return d, err
}
