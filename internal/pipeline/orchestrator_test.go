package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/disk"
	"github.com/abduss/tribute/internal/imageproc"
	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/store/sqlstore"
)

func TestProcessLargeJPEGProducesBoundedDerivatives(t *testing.T) {
	env := newPipelineEnv(t, Options{})
	m := env.addImage(t, 4000, 3000)

	report, err := env.orch.Process(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, media.StatusReady, report.Status)
	assert.Equal(t, 2, report.Succeeded())

	thumb := env.derivative(t, m.ID, derivative.TypeThumbnail)
	assert.Equal(t, 800, *thumb.Width)
	assert.Equal(t, 600, *thumb.Height)
	assert.Less(t, thumb.SizeBytes, int64(204800))

	web := env.derivative(t, m.ID, derivative.TypeWebOptimized)
	assert.Equal(t, 1920, *web.Width)
	assert.Equal(t, 1440, *web.Height)
	assert.Less(t, web.SizeBytes, int64(2097152))

	for _, d := range []derivative.Derivative{thumb, web} {
		assert.Contains(t, []string{"image/webp", "image/jpeg"}, d.MimeType)
		assert.Equal(t, disk.Public, d.Disk)

		stored, err := env.public.Size(context.Background(), d.StoragePath)
		require.NoError(t, err)
		assert.Equal(t, d.SizeBytes, stored)
	}

	got, err := env.db.Media().Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, media.StatusReady, got.Status)
	assert.Nil(t, got.ErrorMessage)
	require.NotNil(t, got.Width)
	assert.Equal(t, 4000, *got.Width)
	assert.Equal(t, 3000, *got.Height)
}

func TestProcessDoesNotUpscale(t *testing.T) {
	env := newPipelineEnv(t, Options{})
	m := env.addImage(t, 1000, 800)

	_, err := env.orch.Process(context.Background(), m.ID)
	require.NoError(t, err)

	web := env.derivative(t, m.ID, derivative.TypeWebOptimized)
	assert.Equal(t, 1000, *web.Width)
	assert.Equal(t, 800, *web.Height)

	thumb := env.derivative(t, m.ID, derivative.TypeThumbnail)
	assert.Equal(t, 800, *thumb.Width)
	assert.Equal(t, 640, *thumb.Height)
}

func TestProcessTwiceKeepsOneRowPerType(t *testing.T) {
	env := newPipelineEnv(t, Options{Parallelism: 2})
	m := env.addImage(t, 1200, 900)
	ctx := context.Background()

	_, err := env.orch.Process(ctx, m.ID)
	require.NoError(t, err)
	first := env.derivative(t, m.ID, derivative.TypeThumbnail)

	_, err = env.orch.Process(ctx, m.ID)
	require.NoError(t, err)

	rows, err := env.db.Derivatives().ListByMedia(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	second := env.derivative(t, m.ID, derivative.TypeThumbnail)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.StoragePath, second.StoragePath)
}

func TestProcessIsolatesStageFailure(t *testing.T) {
	env := newPipelineEnv(t, Options{})
	env.orch.encoder = &selectiveEncoder{
		failFor: imageproc.Thumbnail.Name,
		next:    imageproc.NewEncoder(),
	}
	m := env.addImage(t, 2400, 1600)

	report, err := env.orch.Process(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, media.StatusReady, report.Status)

	for _, s := range report.Stages {
		if s.Type == derivative.TypeThumbnail {
			assert.Error(t, s.Err)
		}
	}

	_, err = env.db.Derivatives().Get(context.Background(), m.ID, derivative.TypeThumbnail)
	assert.ErrorIs(t, err, derivative.ErrDerivativeNotFound)

	web := env.derivative(t, m.ID, derivative.TypeWebOptimized)
	assert.Equal(t, 1920, *web.Width)
	assert.Equal(t, 1280, *web.Height)
}

func TestProcessAllStagesFailingMarksError(t *testing.T) {
	env := newPipelineEnv(t, Options{})
	env.orch.encoder = &selectiveEncoder{failAll: true}
	m := env.addImage(t, 300, 200)

	report, err := env.orch.Process(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, media.StatusError, report.Status)

	got := env.media(t, m.ID)
	assert.Equal(t, media.StatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msgNoDerivatives, *got.ErrorMessage)
}

func TestProcessCancelledMidRunLeavesStatusForRetry(t *testing.T) {
	env := newPipelineEnv(t, Options{Parallelism: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.orch.encoder = &cancellingEncoder{cancel: cancel, next: imageproc.NewEncoder()}
	m := env.addImage(t, 300, 200)

	report, err := env.orch.Process(ctx, m.ID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Succeeded())
	assert.Empty(t, report.Status)

	rows, err := env.db.Derivatives().ListByMedia(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	for _, ext := range []string{"webp", "jpg"} {
		exists, err := env.public.Exists(context.Background(), derivative.StoragePath(m.ID, derivative.TypeThumbnail, ext))
		require.NoError(t, err)
		assert.False(t, exists)
	}

	got := env.media(t, m.ID)
	assert.Equal(t, media.StatusProcessing, got.Status)
	assert.Nil(t, got.ErrorMessage)
}

func TestProcessDeadlineDuringEncodeIsRetryable(t *testing.T) {
	env := newPipelineEnv(t, Options{Parallelism: 2})
	env.orch.encoder = &slowEncoder{delay: 200 * time.Millisecond, next: imageproc.NewEncoder()}
	m := env.addImage(t, 300, 200)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := env.orch.Process(ctx, m.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEqual(t, media.StatusError, report.Status)
	assert.NotEqual(t, media.StatusReady, report.Status)

	rows, err := env.db.Derivatives().ListByMedia(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	got := env.media(t, m.ID)
	assert.Contains(t, []media.Status{media.StatusPending, media.StatusProcessing}, got.Status)
}

func TestProcessMissingOriginalWritesNothing(t *testing.T) {
	env := newPipelineEnv(t, Options{})
	m := env.createMedia(t, "image/jpeg", "jpg")

	_, err := env.orch.Process(context.Background(), m.ID)
	require.ErrorIs(t, err, ErrSourceMissing)

	rows, err := env.db.Derivatives().ListByMedia(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	for _, ext := range []string{"webp", "jpg"} {
		exists, err := env.public.Exists(context.Background(), derivative.StoragePath(m.ID, derivative.TypeThumbnail, ext))
		require.NoError(t, err)
		assert.False(t, exists)
	}

	got := env.media(t, m.ID)
	assert.Equal(t, media.StatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msgSourceMissing, *got.ErrorMessage)
}

func TestProcessRejectsOversizedImageBeforeDecode(t *testing.T) {
	env := newPipelineEnv(t, Options{MaxPixels: 100})
	env.orch.encoder = &selectiveEncoder{failAll: true}
	m := env.addImage(t, 20, 20)

	_, err := env.orch.Process(context.Background(), m.ID)
	require.ErrorIs(t, err, imageproc.ErrImageTooLarge)

	rows, err := env.db.Derivatives().ListByMedia(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	got := env.media(t, m.ID)
	assert.Equal(t, media.StatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "Image dimensions too large", *got.ErrorMessage)
	assert.Nil(t, got.Width)
}

func TestProcessUndecodableImage(t *testing.T) {
	env := newPipelineEnv(t, Options{})
	m := env.createMedia(t, "image/png", "png")
	require.NoError(t, env.public.Put(context.Background(), m.StoragePath, []byte("not really a png"), m.MimeType))

	_, err := env.orch.Process(context.Background(), m.ID)
	require.ErrorIs(t, err, ErrUnsupportedImage)

	got := env.media(t, m.ID)
	assert.Equal(t, media.StatusError, got.Status)
	assert.Nil(t, got.Width)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msgUnsupported, *got.ErrorMessage)
}

func TestProcessVideoWritesPosterPlaceholder(t *testing.T) {
	env := newPipelineEnv(t, Options{})
	m := env.createMedia(t, "video/mp4", "mp4")
	require.NoError(t, env.public.Put(context.Background(), m.StoragePath, []byte("\x00\x00\x00\x18ftypmp42"), m.MimeType))

	report, err := env.orch.Process(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, media.StatusReady, report.Status)

	rows, err := env.db.Derivatives().ListByMedia(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	poster := rows[0]
	assert.Equal(t, derivative.TypePoster, poster.Type)
	assert.Equal(t, derivative.StoragePath(m.ID, derivative.TypePoster, "jpg"), poster.StoragePath)
	assert.Equal(t, int64(0), poster.SizeBytes)
	assert.Nil(t, poster.Width)

	exists, err := env.public.Exists(context.Background(), poster.StoragePath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProcessUnknownMedia(t *testing.T) {
	env := newPipelineEnv(t, Options{})

	_, err := env.orch.Process(context.Background(), uuid.New())
	require.ErrorIs(t, err, media.ErrMediaNotFound)
}

// --- helpers & fakes ---

type pipelineEnv struct {
	db     *sqlstore.DB
	public *disk.FSDisk
	orch   *Orchestrator
}

func newPipelineEnv(t *testing.T, opts Options) *pipelineEnv {
	t.Helper()

	db, err := sqlstore.Open(context.Background(), sqlstore.Config{Path: filepath.Join(t.TempDir(), "pipeline.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	public := disk.NewFSDiskWithFs(disk.Public, afero.NewMemMapFs(), "https://cdn.example.com")
	local := disk.NewFSDiskWithFs(disk.Local, afero.NewMemMapFs(), "")
	disks := disk.NewManager(public, local)

	recorder := derivative.NewRecorder(db.Derivatives(), zap.NewNop())
	orch := NewOrchestrator(db.Media(), recorder, disks, imageproc.NewEncoder(), zap.NewNop(), opts)

	return &pipelineEnv{db: db, public: public, orch: orch}
}

func (e *pipelineEnv) createMedia(t *testing.T, mime, ext string) media.Media {
	t.Helper()
	id := uuid.New()
	m, err := e.db.Media().Create(context.Background(), media.Media{
		ID:               id,
		OriginalFilename: "upload." + ext,
		MimeType:         mime,
		Hash:             "hash",
		Disk:             disk.Public,
		StoragePath:      "originals/" + id.String() + "." + ext,
		IsPublic:         true,
		Status:           media.StatusPending,
	})
	require.NoError(t, err)
	return m
}

func (e *pipelineEnv) addImage(t *testing.T, w, h int) media.Media {
	t.Helper()
	m := e.createMedia(t, "image/jpeg", "jpg")
	data := jpegBytes(t, w, h)
	require.NoError(t, e.public.Put(context.Background(), m.StoragePath, data, m.MimeType))
	return m
}

func (e *pipelineEnv) derivative(t *testing.T, id uuid.UUID, typ derivative.Type) derivative.Derivative {
	t.Helper()
	d, err := e.db.Derivatives().Get(context.Background(), id, typ)
	require.NoError(t, err)
	require.NotNil(t, d.Width)
	require.NotNil(t, d.Height)
	return d
}

func (e *pipelineEnv) media(t *testing.T, id uuid.UUID) media.Media {
	t.Helper()
	m, err := e.db.Media().Get(context.Background(), id)
	require.NoError(t, err)
	return m
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 96,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

type selectiveEncoder struct {
	failFor string
	failAll bool
	next    variantEncoder
}

func (e *selectiveEncoder) Encode(img image.Image, p imageproc.Preset) (imageproc.Result, error) {
	if e.failAll || p.Name == e.failFor {
		return imageproc.Result{}, errors.New("simulated resize failure")
	}
	return e.next.Encode(img, p)
}

// cancellingEncoder cancels the run once the first stage has encoded.
type cancellingEncoder struct {
	cancel context.CancelFunc
	next   variantEncoder
}

func (e *cancellingEncoder) Encode(img image.Image, p imageproc.Preset) (imageproc.Result, error) {
	res, err := e.next.Encode(img, p)
	e.cancel()
	return res, err
}

type slowEncoder struct {
	delay time.Duration
	next  variantEncoder
}

func (e *slowEncoder) Encode(img image.Image, p imageproc.Preset) (imageproc.Result, error) {
	time.Sleep(e.delay)
	return e.next.Encode(img, p)
}
