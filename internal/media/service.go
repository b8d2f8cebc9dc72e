package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/derivative"
	"github.com/abduss/tribute/internal/disk"
	"github.com/abduss/tribute/internal/imageproc"
	"github.com/abduss/tribute/internal/metrics"
	"github.com/abduss/tribute/internal/queue"
)

const (
	defaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	defaultListLimit   = 50
	maxListLimit       = 200
)

type metadataStore interface {
	Create(ctx context.Context, m Media) (Media, error)
	Get(ctx context.Context, id uuid.UUID) (Media, error)
	List(ctx context.Context, limit, offset int) ([]Media, error)
	Delete(ctx context.Context, id uuid.UUID) (Media, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, message *string) error
}

type derivativeLister interface {
	ListByMedia(ctx context.Context, mediaID uuid.UUID) ([]derivative.Derivative, error)
}

type diskResolver interface {
	Disk(name string) (disk.Disk, error)
}

type jobDispatcher interface {
	Enqueue(ctx context.Context, jobType string, payload any) (queue.Job, error)
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	MaxFileSize  int64
	URLTTL       time.Duration
	URLCacheSize int
}

// Service manages the media lifecycle: intake, lookup, deletion and
// dispatching derivative jobs.
type Service struct {
	repo        metadataStore
	derivatives derivativeLister
	disks       diskResolver
	jobs        jobDispatcher
	maxFileSize int64
	urlTTL      time.Duration
	urls        *lru.Cache
	log         *zap.Logger
	now         func() time.Time
}

type cachedURL struct {
	url     string
	expires time.Time
}

// NewService constructs a media service.
func NewService(repo metadataStore, derivatives derivativeLister, disks diskResolver, jobs jobDispatcher, log *zap.Logger, opts Options) (*Service, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = 15 * time.Minute
	}
	if opts.URLCacheSize <= 0 {
		opts.URLCacheSize = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}

	cache, err := lru.New(opts.URLCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create url cache: %w", err)
	}

	return &Service{
		repo:        repo,
		derivatives: derivatives,
		disks:       disks,
		jobs:        jobs,
		maxFileSize: opts.MaxFileSize,
		urlTTL:      opts.URLTTL,
		urls:        cache,
		log:         log,
		now:         time.Now,
	}, nil
}

// Upload reads a multipart file and ingests it.
func (s *Service) Upload(ctx context.Context, fileHeader *multipart.FileHeader, isPublic bool) (Media, error) {
	if fileHeader == nil {
		return Media{}, ErrMissingFile
	}
	if fileHeader.Size > s.maxFileSize {
		return Media{}, ErrFileTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Media{}, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxFileSize+1))
	if err != nil {
		return Media{}, fmt.Errorf("read upload file: %w", err)
	}

	return s.Ingest(ctx, fileHeader.Filename, data, isPublic)
}

// Ingest validates and stores an original, records it as pending and
// dispatches its derivative job. A failed dispatch is logged and left for
// the stale-media sweeper; the upload still succeeds.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte, isPublic bool) (Media, error) {
	if len(data) == 0 {
		return Media{}, ErrEmptyFile
	}
	if int64(len(data)) > s.maxFileSize {
		return Media{}, ErrFileTooLarge
	}

	mimeType := mimetype.Detect(data).String()
	ext, ok := allowedTypes[mimeType]
	if !ok {
		return Media{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	diskName := disk.Local
	if isPublic {
		diskName = disk.Public
	}
	target, err := s.disks.Disk(diskName)
	if err != nil {
		return Media{}, err
	}

	sum := sha256.Sum256(data)
	id := uuid.New()
	m := Media{
		ID:               id,
		OriginalFilename: sanitizeFilename(filename),
		MimeType:         mimeType,
		SizeBytes:        int64(len(data)),
		Hash:             hex.EncodeToString(sum[:]),
		Disk:             diskName,
		StoragePath:      fmt.Sprintf("originals/%s.%s", id, ext),
		IsPublic:         isPublic,
		Status:           StatusPending,
	}

	if m.IsImage() {
		if info, err := imageproc.Probe(data); err == nil {
			m.Width, m.Height = &info.Width, &info.Height
		} else {
			s.log.Warn("probe upload", zap.String("media_id", id.String()), zap.Error(err))
		}
	}

	if err := target.Put(ctx, m.StoragePath, data, mimeType); err != nil {
		metrics.RecordUpload(diskName, "error")
		return Media{}, fmt.Errorf("store original: %w", err)
	}

	stored, err := s.repo.Create(ctx, m)
	if err != nil {
		_ = target.Delete(ctx, m.StoragePath)
		metrics.RecordUpload(diskName, "error")
		return Media{}, err
	}
	metrics.RecordUpload(diskName, "success")

	s.dispatch(ctx, stored.ID)
	return stored, nil
}

// Get returns a media item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Media, error) {
	return s.repo.Get(ctx, id)
}

// List returns media newest first. limit is clamped to 1..200.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Media, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// Describe returns a media item with its derivatives and resolved URLs.
// Objects whose disk cannot produce a URL are returned without one.
func (s *Service) Describe(ctx context.Context, id uuid.UUID) (Detail, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	derivs, err := s.derivatives.ListByMedia(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("list derivatives: %w", err)
	}

	detail := Detail{Media: m, URL: s.url(ctx, m.Disk, m.StoragePath), Derivatives: make([]DerivativeView, 0, len(derivs))}
	for _, d := range derivs {
		detail.Derivatives = append(detail.Derivatives, DerivativeView{
			Derivative: d,
			URL:        s.url(ctx, d.Disk, d.StoragePath),
		})
	}
	return detail, nil
}

// Download returns the metadata and a reader over the original.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (Media, io.ReadCloser, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Media{}, nil, err
	}

	d, err := s.disks.Disk(m.Disk)
	if err != nil {
		return Media{}, nil, err
	}

	r, err := d.Open(ctx, m.StoragePath)
	if err != nil {
		return Media{}, nil, fmt.Errorf("fetch original: %w", err)
	}
	return m, r, nil
}

// Delete removes the media row (cascading to derivative rows) and then the
// stored files. File removal failures are logged, not returned.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	derivs, err := s.derivatives.ListByMedia(ctx, id)
	if err != nil {
		return fmt.Errorf("list derivatives: %w", err)
	}

	m, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.removeFile(ctx, m.ID, m.Disk, m.StoragePath)
	for _, d := range derivs {
		s.removeFile(ctx, m.ID, d.Disk, d.StoragePath)
	}
	return nil
}

// Reprocess resets the item to pending and dispatches a new derivative job.
func (s *Service) Reprocess(ctx context.Context, id uuid.UUID) (Media, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Media{}, err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusPending, nil); err != nil {
		return Media{}, err
	}
	if _, err := s.jobs.Enqueue(ctx, queue.DeriveMediaJob, queue.DeriveMediaPayload{MediaID: id}); err != nil {
		return Media{}, fmt.Errorf("dispatch derivative job: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) dispatch(ctx context.Context, id uuid.UUID) {
	if _, err := s.jobs.Enqueue(ctx, queue.DeriveMediaJob, queue.DeriveMediaPayload{MediaID: id}); err != nil {
		s.log.Error("dispatch derivative job", zap.String("media_id", id.String()), zap.Error(err))
	}
}

func (s *Service) removeFile(ctx context.Context, id uuid.UUID, diskName, path string) {
	s.urls.Remove(diskName + ":" + path)

	d, err := s.disks.Disk(diskName)
	if err == nil {
		err = d.Delete(ctx, path)
	}
	if err != nil {
		s.log.Warn("remove media file",
			zap.String("media_id", id.String()),
			zap.String("disk", diskName),
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// url resolves an object URL, caching it for half the URL lifetime so
// presigned links handed out are never close to expiry.
func (s *Service) url(ctx context.Context, diskName, path string) string {
	key := diskName + ":" + path
	now := s.now()
	if v, ok := s.urls.Get(key); ok {
		if c := v.(cachedURL); now.Before(c.expires) {
			return c.url
		}
	}

	d, err := s.disks.Disk(diskName)
	if err != nil {
		s.log.Warn("resolve disk", zap.String("disk", diskName), zap.Error(err))
		return ""
	}
	u, err := d.URL(ctx, path)
	if err != nil {
		if !errors.Is(err, disk.ErrURLUnavailable) {
			s.log.Warn("resolve url", zap.String("disk", diskName), zap.String("path", path), zap.Error(err))
		}
		return ""
	}

	s.urls.Add(key, cachedURL{url: u, expires: now.Add(s.urlTTL / 2)})
	return u
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
