package disk

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/minio/minio-go/v7"

	"github.com/abduss/tribute/internal/config"
	"github.com/abduss/tribute/internal/storage"
)

// FromConfig builds the public and local disks from their configured drivers.
// Object store clients are shared between the two disks.
func FromConfig(ctx context.Context, cfg config.Config) (*Manager, error) {
	b := builder{cfg: cfg}

	public, err := b.build(ctx, Public, cfg.Disks.PublicDriver)
	if err != nil {
		return nil, err
	}
	local, err := b.build(ctx, Local, cfg.Disks.LocalDriver)
	if err != nil {
		return nil, err
	}

	return NewManager(public, local), nil
}

type builder struct {
	cfg   config.Config
	minio *minio.Client
}

func (b *builder) build(ctx context.Context, name, driver string) (Disk, error) {
	public := name == Public
	ttl := b.cfg.Disks.URLTTL

	switch driver {
	case "fs":
		baseURL := ""
		if public {
			baseURL = b.cfg.Local.PublicBaseURL
		}
		return NewFSDisk(name, filepath.Join(b.cfg.Local.Root, name), baseURL)

	case "minio":
		if b.minio == nil {
			client, err := storage.NewMinIOClient(b.cfg.MinIO)
			if err != nil {
				return nil, err
			}
			b.minio = client
		}
		bucket, baseURL := b.cfg.MinIO.PrivateBucket, ""
		if public {
			bucket, baseURL = b.cfg.MinIO.PublicBucket, b.cfg.MinIO.PublicBaseURL
		}
		if err := storage.EnsureBucket(ctx, b.minio, bucket, b.cfg.MinIO.Region, public); err != nil {
			return nil, err
		}
		return NewMinIODisk(name, b.minio, bucket, public, baseURL, ttl), nil

	case "s3":
		client, err := NewS3Client(ctx, b.cfg.S3)
		if err != nil {
			return nil, err
		}
		bucket := b.cfg.S3.PrivateBucket
		if public {
			bucket = b.cfg.S3.PublicBucket
		}
		if bucket == "" {
			return nil, fmt.Errorf("disk %s: s3 bucket not configured", name)
		}
		return NewS3Disk(name, client, bucket, public, b.cfg.S3.PublicBaseURL, ttl), nil

	case "gcs":
		client, err := NewGCSClient(ctx, b.cfg.GCS)
		if err != nil {
			return nil, err
		}
		bucket := b.cfg.GCS.PrivateBucket
		if public {
			bucket = b.cfg.GCS.PublicBucket
		}
		if bucket == "" {
			return nil, fmt.Errorf("disk %s: gcs bucket not configured", name)
		}
		return NewGCSDisk(name, client, bucket, public, b.cfg.GCS, ttl), nil
	}

	return nil, fmt.Errorf("disk %s: unsupported driver %q", name, driver)
}
