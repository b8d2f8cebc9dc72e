package disk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinIODisk stores objects in a single MinIO bucket. Private disks hand out
// presigned GET URLs; public disks build plain URLs from baseURL.
type MinIODisk struct {
	name       string
	client     *minio.Client
	bucket     string
	public     bool
	baseURL    string
	presignTTL time.Duration
}

// NewMinIODisk constructs the adapter. When baseURL is empty a public disk
// addresses objects through the client endpoint.
func NewMinIODisk(name string, client *minio.Client, bucket string, public bool, baseURL string, presignTTL time.Duration) *MinIODisk {
	if baseURL == "" && client != nil {
		baseURL = client.EndpointURL().String() + "/" + bucket
	}
	return &MinIODisk{
		name:       name,
		client:     client,
		bucket:     bucket,
		public:     public,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		presignTTL: presignTTL,
	}
}

func (d *MinIODisk) Name() string { return d.name }

func (d *MinIODisk) Exists(ctx context.Context, p string) (bool, error) {
	_, err := d.client.StatObject(ctx, d.bucket, clean(p), minio.StatObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", p, err)
	}
	return true, nil
}

func (d *MinIODisk) Get(ctx context.Context, p string) ([]byte, error) {
	r, err := d.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		if isMinIONotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("read object %s: %w", p, err)
	}
	return data, nil
}

func (d *MinIODisk) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, clean(p), minio.GetObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("get object %s: %w", p, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isMinIONotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("stat object %s: %w", p, err)
	}
	return obj, nil
}

func (d *MinIODisk) Put(ctx context.Context, p string, data []byte, contentType string) error {
	_, err := d.client.PutObject(ctx, d.bucket, clean(p), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}
	return nil
}

func (d *MinIODisk) Size(ctx context.Context, p string) (int64, error) {
	info, err := d.client.StatObject(ctx, d.bucket, clean(p), minio.StatObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return 0, fmt.Errorf("stat object %s: %w", p, err)
	}
	return info.Size, nil
}

func (d *MinIODisk) MakeDirectory(context.Context, string) error { return nil }

func (d *MinIODisk) Delete(ctx context.Context, p string) error {
	if err := d.client.RemoveObject(ctx, d.bucket, clean(p), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", p, err)
	}
	return nil
}

func (d *MinIODisk) URL(ctx context.Context, p string) (string, error) {
	if d.public {
		return d.baseURL + "/" + escapePath(clean(p)), nil
	}

	u, err := d.client.PresignedGetObject(ctx, d.bucket, clean(p), d.presignTTL, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", p, err)
	}
	return u.String(), nil
}

func (d *MinIODisk) Health(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q missing", d.bucket)
	}
	return nil
}

func isMinIONotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
