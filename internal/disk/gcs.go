package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/abduss/tribute/internal/config"
)

// GCSDisk stores objects in a Google Cloud Storage bucket.
type GCSDisk struct {
	name        string
	client      *storage.Client
	bucket      string
	public      bool
	presignTTL  time.Duration
	signerEmail string
	signerKey   []byte
}

// NewGCSClient creates a storage client, using a credentials file when one
// is configured and application default credentials otherwise.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*storage.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return client, nil
}

// NewGCSDisk constructs the adapter. Private disks sign URLs with the given
// service account; literal \n sequences in the key are expanded.
func NewGCSDisk(name string, client *storage.Client, bucket string, public bool, cfg config.GCSConfig, presignTTL time.Duration) *GCSDisk {
	return &GCSDisk{
		name:        name,
		client:      client,
		bucket:      bucket,
		public:      public,
		presignTTL:  presignTTL,
		signerEmail: cfg.SigningEmail,
		signerKey:   []byte(strings.ReplaceAll(cfg.SigningPrivateKey, `\n`, "\n")),
	}
}

func (d *GCSDisk) Name() string { return d.name }

func (d *GCSDisk) object(p string) *storage.ObjectHandle {
	return d.client.Bucket(d.bucket).Object(clean(p))
}

func (d *GCSDisk) Exists(ctx context.Context, p string) (bool, error) {
	_, err := d.object(p).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("object attrs %s: %w", p, err)
	}
	return true, nil
}

func (d *GCSDisk) Get(ctx context.Context, p string) ([]byte, error) {
	r, err := d.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", p, err)
	}
	return data, nil
}

func (d *GCSDisk) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	r, err := d.object(p).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("open object %s: %w", p, err)
	}
	return r, nil
}

func (d *GCSDisk) Put(ctx context.Context, p string, data []byte, contentType string) error {
	w := d.object(p).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", p, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", p, err)
	}
	return nil
}

func (d *GCSDisk) Size(ctx context.Context, p string) (int64, error) {
	attrs, err := d.object(p).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return 0, fmt.Errorf("object attrs %s: %w", p, err)
	}
	return attrs.Size, nil
}

func (d *GCSDisk) MakeDirectory(context.Context, string) error { return nil }

func (d *GCSDisk) Delete(ctx context.Context, p string) error {
	if err := d.object(p).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", p, err)
	}
	return nil
}

func (d *GCSDisk) URL(_ context.Context, p string) (string, error) {
	if d.public {
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", d.bucket, escapePath(clean(p))), nil
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(d.presignTTL),
	}
	if d.signerEmail != "" && len(d.signerKey) > 0 {
		opts.GoogleAccessID = d.signerEmail
		opts.PrivateKey = d.signerKey
	}

	u, err := d.client.Bucket(d.bucket).SignedURL(clean(p), opts)
	if err != nil {
		return "", fmt.Errorf("sign url %s: %w", p, err)
	}
	return u, nil
}

func (d *GCSDisk) Health(ctx context.Context) error {
	_, err := d.client.Bucket(d.bucket).Attrs(ctx)
	return err
}
