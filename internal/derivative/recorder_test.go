package derivative

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/tribute/internal/disk"
)

func TestRecordWritesFileThenRow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	target := disk.NewFSDiskWithFs(disk.Public, afero.NewMemMapFs(), "")
	recorder := NewRecorder(store, nil)

	mediaID := uuid.New()
	w, h := 800, 600
	stored, err := recorder.Record(ctx, target, Derivative{
		MediaID:     mediaID,
		Type:        TypeThumbnail,
		StoragePath: StoragePath(mediaID, TypeThumbnail, "jpg"),
		Width:       &w,
		Height:      &h,
		MimeType:    "image/jpeg",
	}, []byte("encoded"))
	require.NoError(t, err)

	assert.Equal(t, int64(7), stored.SizeBytes)
	assert.Equal(t, disk.Public, stored.Disk)
	assert.Equal(t, "derivatives/"+mediaID.String()+"/thumbnail.jpg", stored.StoragePath)

	data, err := target.Get(ctx, stored.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(data))
	assert.Equal(t, 1, store.upserts)
}

func TestRecordSkipsRowWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	target := failingPutDisk{Disk: disk.NewFSDiskWithFs(disk.Local, afero.NewMemMapFs(), "")}
	recorder := NewRecorder(store, nil)

	_, err := recorder.Record(ctx, target, Derivative{
		MediaID:     uuid.New(),
		Type:        TypeWebOptimized,
		StoragePath: "derivatives/x/web-optimized.jpg",
	}, []byte("data"))
	require.Error(t, err)
	assert.Zero(t, store.upserts)
	assert.Empty(t, store.rows)
}

func TestRecordIsIdempotentPerType(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	target := disk.NewFSDiskWithFs(disk.Public, afero.NewMemMapFs(), "")
	recorder := NewRecorder(store, nil)
	mediaID := uuid.New()

	d := Derivative{MediaID: mediaID, Type: TypeThumbnail, StoragePath: StoragePath(mediaID, TypeThumbnail, "jpg")}
	first, err := recorder.Record(ctx, target, d, []byte("one"))
	require.NoError(t, err)
	second, err := recorder.Record(ctx, target, d, []byte("two!"))
	require.NoError(t, err)

	assert.Len(t, store.rows, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(4), second.SizeBytes)

	ok, err := target.Exists(ctx, d.StoragePath)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordRemovesSupersededFile(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	target := disk.NewFSDiskWithFs(disk.Public, afero.NewMemMapFs(), "")
	recorder := NewRecorder(store, nil)
	mediaID := uuid.New()

	oldPath := StoragePath(mediaID, TypeThumbnail, "jpg")
	newPath := StoragePath(mediaID, TypeThumbnail, "webp")

	_, err := recorder.Record(ctx, target, Derivative{MediaID: mediaID, Type: TypeThumbnail, StoragePath: oldPath}, []byte("jpeg"))
	require.NoError(t, err)
	_, err = recorder.Record(ctx, target, Derivative{MediaID: mediaID, Type: TypeThumbnail, StoragePath: newPath}, []byte("webp"))
	require.NoError(t, err)

	oldExists, err := target.Exists(ctx, oldPath)
	require.NoError(t, err)
	assert.False(t, oldExists)

	newExists, err := target.Exists(ctx, newPath)
	require.NoError(t, err)
	assert.True(t, newExists)
	assert.Equal(t, newPath, store.rows[key(mediaID, TypeThumbnail)].StoragePath)
}

func TestRecordPropagatesUpsertFailure(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("db down")
	target := disk.NewFSDiskWithFs(disk.Public, afero.NewMemMapFs(), "")

	_, err := NewRecorder(store, nil).Record(context.Background(), target, Derivative{
		MediaID:     uuid.New(),
		Type:        TypePoster,
		StoragePath: "derivatives/x/poster.jpg",
	}, nil)
	require.ErrorContains(t, err, "db down")
}

func TestStoragePath(t *testing.T) {
	id := uuid.MustParse("5f0c7d2e-8c4b-4a51-9d3f-0d1d1a2b3c4d")
	assert.Equal(t, "derivatives/5f0c7d2e-8c4b-4a51-9d3f-0d1d1a2b3c4d/web-optimized.webp", StoragePath(id, TypeWebOptimized, "webp"))
}

// --- helpers & fakes ---

func key(mediaID uuid.UUID, t Type) string {
	return mediaID.String() + "/" + string(t)
}

type fakeStore struct {
	rows      map[string]Derivative
	upserts   int
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]Derivative)}
}

func (f *fakeStore) Upsert(_ context.Context, d Derivative) (Derivative, error) {
	if f.upsertErr != nil {
		return Derivative{}, f.upsertErr
	}
	f.upserts++
	if existing, ok := f.rows[key(d.MediaID, d.Type)]; ok {
		d.ID = existing.ID
	} else if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	f.rows[key(d.MediaID, d.Type)] = d
	return d, nil
}

func (f *fakeStore) Get(_ context.Context, mediaID uuid.UUID, t Type) (Derivative, error) {
	d, ok := f.rows[key(mediaID, t)]
	if !ok {
		return Derivative{}, ErrDerivativeNotFound
	}
	return d, nil
}

func (f *fakeStore) ListByMedia(_ context.Context, mediaID uuid.UUID) ([]Derivative, error) {
	var list []Derivative
	for _, d := range f.rows {
		if d.MediaID == mediaID {
			list = append(list, d)
		}
	}
	return list, nil
}

type failingPutDisk struct {
	disk.Disk
}

func (failingPutDisk) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}
