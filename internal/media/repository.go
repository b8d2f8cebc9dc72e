package media

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

const columns = `id, original_filename, mime_type, size_bytes, width, height, duration_seconds, hash, disk, storage_path, is_public, status, error_message, created_at, updated_at`

// Repository provides access to media metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new media repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts metadata for a new upload.
func (r *Repository) Create(ctx context.Context, m Media) (Media, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO media (id, original_filename, mime_type, size_bytes, width, height, duration_seconds, hash, disk, storage_path, is_public, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + columns + `;`

	row := r.pool.QueryRow(ctx, query,
		m.ID,
		m.OriginalFilename,
		m.MimeType,
		m.SizeBytes,
		m.Width,
		m.Height,
		m.DurationSeconds,
		m.Hash,
		m.Disk,
		m.StoragePath,
		m.IsPublic,
		string(m.Status),
	)

	stored, err := scan(row)
	if err != nil {
		return Media{}, fmt.Errorf("create media: %w", err)
	}
	return stored, nil
}

// Get fetches a single media item.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Media, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	m, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM media WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Media{}, ErrMediaNotFound
		}
		return Media{}, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

// List returns media newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Media, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + columns + ` FROM media ORDER BY created_at DESC, id LIMIT $1 OFFSET $2;`
	return r.query(ctx, "list media", query, limit, offset)
}

// ListStale returns media in status whose last update is older than before.
func (r *Repository) ListStale(ctx context.Context, status Status, before time.Time, limit int) ([]Media, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + columns + ` FROM media WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3;`
	return r.query(ctx, "list stale media", query, string(status), before, limit)
}

// Delete removes metadata and returns the deleted record. Derivative rows
// are removed by the foreign key cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (Media, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	m, err := scan(r.pool.QueryRow(ctx, `DELETE FROM media WHERE id = $1 RETURNING `+columns+`;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Media{}, ErrMediaNotFound
		}
		return Media{}, fmt.Errorf("delete media: %w", err)
	}
	return m, nil
}

// UpdateDimensions stores probed width and height.
func (r *Repository) UpdateDimensions(ctx context.Context, id uuid.UUID, width, height int) error {
	return r.exec(ctx, "update media dimensions",
		`UPDATE media SET width = $2, height = $3, updated_at = NOW() WHERE id = $1;`,
		id, width, height)
}

// UpdateStatus sets status and error message. A nil message clears it.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, message *string) error {
	return r.exec(ctx, "update media status",
		`UPDATE media SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1;`,
		id, string(status), message)
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (r *Repository) query(ctx context.Context, op, query string, args ...any) ([]Media, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var list []Media
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return list, nil
}

func scan(row pgx.Row) (Media, error) {
	var (
		m      Media
		status string
	)
	err := row.Scan(
		&m.ID,
		&m.OriginalFilename,
		&m.MimeType,
		&m.SizeBytes,
		&m.Width,
		&m.Height,
		&m.DurationSeconds,
		&m.Hash,
		&m.Disk,
		&m.StoragePath,
		&m.IsPublic,
		&status,
		&m.ErrorMessage,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	m.Status = Status(status)
	return m, err
}
