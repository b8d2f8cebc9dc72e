package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/media"
)

func openTestDB(t *testing.T, now func() time.Time) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "tribute.db"), Now: now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMedia() media.Media {
	id := uuid.New()
	return media.Media{
		ID:               id,
		OriginalFilename: "photo.jpg",
		MimeType:         "image/jpeg",
		SizeBytes:        1234,
		Hash:             "abc",
		Disk:             "public",
		StoragePath:      "originals/" + id.String() + ".jpg",
		IsPublic:         true,
		Status:           media.StatusPending,
	}
}

func TestMediaCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t, nil).Media()

	created, err := store.Create(ctx, newMedia())
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	require.NoError(t, store.UpdateDimensions(ctx, created.ID, 4000, 3000))
	msg := "Image dimensions too large"
	require.NoError(t, store.UpdateStatus(ctx, created.ID, media.StatusError, &msg))

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Width)
	assert.Equal(t, 4000, *got.Width)
	assert.Equal(t, 3000, *got.Height)
	assert.Equal(t, media.StatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)

	require.NoError(t, store.UpdateStatus(ctx, created.ID, media.StatusReady, nil))
	got, err = store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ErrorMessage)

	_, err = store.Get(ctx, uuid.New())
	require.ErrorIs(t, err, media.ErrMediaNotFound)
	require.ErrorIs(t, store.UpdateStatus(ctx, uuid.New(), media.StatusReady, nil), media.ErrMediaNotFound)
}

func TestDerivativeUpsertKeepsOneRowPerType(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)
	m, err := db.Media().Create(ctx, newMedia())
	require.NoError(t, err)

	store := db.Derivatives()
	w, h := 800, 600
	first, err := store.Upsert(ctx, derivative.Derivative{
		MediaID: m.ID, Type: derivative.TypeThumbnail, StoragePath: "derivatives/x/thumbnail.webp",
		Width: &w, Height: &h, SizeBytes: 100, Disk: "public", MimeType: "image/webp",
	})
	require.NoError(t, err)

	second, err := store.Upsert(ctx, derivative.Derivative{
		MediaID: m.ID, Type: derivative.TypeThumbnail, StoragePath: "derivatives/x/thumbnail.jpg",
		Width: &w, Height: &h, SizeBytes: 200, Disk: "public", MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "derivatives/x/thumbnail.jpg", second.StoragePath)
	assert.Equal(t, int64(200), second.SizeBytes)
	assert.Equal(t, "image/jpeg", second.MimeType)

	_, err = store.Upsert(ctx, derivative.Derivative{
		MediaID: m.ID, Type: derivative.TypeWebOptimized, StoragePath: "derivatives/x/web-optimized.jpg",
		SizeBytes: 300, Disk: "public", MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	list, err := store.ListByMedia(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, derivative.TypeThumbnail, list[0].Type)
	assert.Equal(t, derivative.TypeWebOptimized, list[1].Type)

	_, err = store.Get(ctx, m.ID, derivative.TypePoster)
	require.ErrorIs(t, err, derivative.ErrDerivativeNotFound)
}

func TestDeleteMediaRemovesDerivatives(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)
	m, err := db.Media().Create(ctx, newMedia())
	require.NoError(t, err)

	_, err = db.Derivatives().Upsert(ctx, derivative.Derivative{
		MediaID: m.ID, Type: derivative.TypePoster, StoragePath: "p", Disk: "local", MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	deleted, err := db.Media().Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, deleted.ID)

	list, err := db.Derivatives().ListByMedia(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = db.Media().Delete(ctx, m.ID)
	require.ErrorIs(t, err, media.ErrMediaNotFound)
}

func TestListStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db := openTestDB(t, func() time.Time { return now })
	store := db.Media()

	old, err := store.Create(ctx, newMedia())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = store.Create(ctx, newMedia())
	require.NoError(t, err)

	ready := newMedia()
	ready.Status = media.StatusReady
	_, err = store.Create(ctx, ready)
	require.NoError(t, err)

	stale, err := store.ListStale(ctx, media.StatusPending, now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db := openTestDB(t, func() time.Time { return now })

	first, _ := db.Media().Create(ctx, newMedia())
	now = now.Add(time.Minute)
	second, _ := db.Media().Create(ctx, newMedia())

	list, err := db.Media().List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = db.Media().List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestPing(t *testing.T) {
	require.NoError(t, openTestDB(t, nil).Ping(context.Background()))
}
