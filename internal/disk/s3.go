package disk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/abduss/tribute/internal/config"
)

// S3Disk stores objects in an S3 (or S3-compatible) bucket.
type S3Disk struct {
	name       string
	bucket     string
	public     bool
	baseURL    string
	presignTTL time.Duration
	client     *s3.Client
	presign    *s3.PresignClient
}

// NewS3Client builds an S3 client from static credentials, falling back to
// the default AWS credential chain when none are configured.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Disk constructs the adapter.
func NewS3Disk(name string, client *s3.Client, bucket string, public bool, baseURL string, presignTTL time.Duration) *S3Disk {
	return &S3Disk{
		name:       name,
		bucket:     bucket,
		public:     public,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		presignTTL: presignTTL,
		client:     client,
		presign:    s3.NewPresignClient(client),
	}
}

func (d *S3Disk) Name() string { return d.name }

func (d *S3Disk) Exists(ctx context.Context, p string) (bool, error) {
	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(clean(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", p, err)
	}
	return true, nil
}

func (d *S3Disk) Get(ctx context.Context, p string) ([]byte, error) {
	body, err := d.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", p, err)
	}
	return data, nil
}

func (d *S3Disk) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(clean(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("get object %s: %w", p, err)
	}
	return out.Body, nil
}

func (d *S3Disk) Put(ctx context.Context, p string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(clean(p)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := d.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}
	return nil
}

func (d *S3Disk) Size(ctx context.Context, p string) (int64, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(clean(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return 0, fmt.Errorf("head object %s: %w", p, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (d *S3Disk) MakeDirectory(context.Context, string) error { return nil }

func (d *S3Disk) Delete(ctx context.Context, p string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(clean(p)),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", p, err)
	}
	return nil
}

func (d *S3Disk) URL(ctx context.Context, p string) (string, error) {
	if d.public && d.baseURL != "" {
		return d.baseURL + "/" + escapePath(clean(p)), nil
	}

	req, err := d.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(clean(p)),
	}, s3.WithPresignExpires(d.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", p, err)
	}
	return req.URL, nil
}

// Health performs a HeadBucket request.
func (d *S3Disk) Health(ctx context.Context) error {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucket)})
	return err
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
