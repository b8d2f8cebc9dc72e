package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config aggregates runtime configuration for the tribute media service.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	S3       S3Config
	GCS      GCSConfig
	Local    LocalConfig
	Disks    DisksConfig
	Upload   UploadConfig
	Pipeline PipelineConfig
	Worker   WorkerConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string        `env:"TRIBUTE_API_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"TRIBUTE_API_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"TRIBUTE_API_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"TRIBUTE_API_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"TRIBUTE_API_IDLE_TIMEOUT" envDefault:"60s"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host        string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port        int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User        string `env:"POSTGRES_USER" envDefault:"tribute_app"`
	Password    string `env:"POSTGRES_PASSWORD" envDefault:"change-me"`
	Database    string `env:"POSTGRES_DB" envDefault:"tribute"`
	SSLMode     string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxConns    int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	AutoMigrate bool   `env:"POSTGRES_AUTO_MIGRATE" envDefault:"false"`
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKeyID     string `env:"MINIO_ROOT_USER" envDefault:"tribute"`
	SecretAccessKey string `env:"MINIO_ROOT_PASSWORD" envDefault:"change-me-strong-password"`
	PublicBucket    string `env:"MINIO_PUBLIC_BUCKET" envDefault:"tribute-public"`
	PrivateBucket   string `env:"MINIO_PRIVATE_BUCKET" envDefault:"tribute-private"`
	PublicBaseURL   string `env:"MINIO_PUBLIC_BASE_URL"`
	UseSSL          bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	Region          string `env:"MINIO_REGION"`
}

// S3Config carries AWS S3 (or S3-compatible) settings.
type S3Config struct {
	Endpoint        string `env:"S3_ENDPOINT"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	PublicBucket    string `env:"S3_PUBLIC_BUCKET"`
	PrivateBucket   string `env:"S3_PRIVATE_BUCKET"`
	PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
}

// GCSConfig carries Google Cloud Storage settings.
type GCSConfig struct {
	PublicBucket      string `env:"GCS_PUBLIC_BUCKET"`
	PrivateBucket     string `env:"GCS_PRIVATE_BUCKET"`
	CredentialsFile   string `env:"GCS_CREDENTIALS_FILE"`
	SigningEmail      string `env:"GCS_SIGNING_EMAIL"`
	SigningPrivateKey string `env:"GCS_SIGNING_PRIVATE_KEY"`
}

// LocalConfig configures the filesystem driver.
type LocalConfig struct {
	Root          string `env:"LOCAL_STORAGE_ROOT" envDefault:"./storage"`
	PublicBaseURL string `env:"LOCAL_PUBLIC_BASE_URL" envDefault:"http://localhost:8080/storage"`
}

// DisksConfig selects a driver for each logical disk. Valid drivers are
// fs, minio, s3 and gcs.
type DisksConfig struct {
	PublicDriver string        `env:"DISK_PUBLIC_DRIVER" envDefault:"minio"`
	LocalDriver  string        `env:"DISK_LOCAL_DRIVER" envDefault:"minio"`
	URLTTL       time.Duration `env:"DISK_URL_TTL" envDefault:"15m"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes     int64 `env:"UPLOAD_MAX_BYTES" envDefault:"104857600"`
	URLCacheSize int   `env:"UPLOAD_URL_CACHE_SIZE" envDefault:"1024"`
}

// PipelineConfig tunes the derivative pipeline.
type PipelineConfig struct {
	MaxPixels        int64 `env:"PIPELINE_MAX_PIXELS" envDefault:"80000000"`
	StageParallelism int   `env:"PIPELINE_STAGE_PARALLELISM" envDefault:"2"`
}

// WorkerConfig tunes the job runner.
type WorkerConfig struct {
	Concurrency     int           `env:"WORKER_CONCURRENCY" envDefault:"2"`
	PollInterval    time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"1s"`
	JobTimeout      time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"2m"`
	MaxAttempts     int           `env:"WORKER_MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff    time.Duration `env:"WORKER_RETRY_BACKOFF" envDefault:"10s"`
	LeaseDuration   time.Duration `env:"WORKER_LEASE_DURATION" envDefault:"3m"`
	SweepSchedule   string        `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"`
	SweepStaleAfter time.Duration `env:"SWEEP_STALE_AFTER" envDefault:"15m"`
	SweepBatchSize  int           `env:"SWEEP_BATCH_SIZE" envDefault:"100"`
	MetricsAddress  string        `env:"WORKER_METRICS_ADDR" envDefault:":9091"`
}

// RedisConfig enables distributed per-media locks when URL is set.
type RedisConfig struct {
	URL        string        `env:"REDIS_URL"`
	LockExpiry time.Duration `env:"REDIS_LOCK_EXPIRY" envDefault:"3m"`
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string `env:"TRIBUTE_METRICS_PATH" envDefault:"/metrics"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"tribute"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	for _, driver := range []string{c.Disks.PublicDriver, c.Disks.LocalDriver} {
		switch driver {
		case "fs", "minio", "s3", "gcs":
		default:
			return fmt.Errorf("unsupported disk driver %q", driver)
		}
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	// A lease or lock that can lapse mid-job lets a second worker run it.
	if c.Worker.LeaseDuration <= c.Worker.JobTimeout {
		return fmt.Errorf("WORKER_LEASE_DURATION (%s) must exceed WORKER_JOB_TIMEOUT (%s)",
			c.Worker.LeaseDuration, c.Worker.JobTimeout)
	}
	if c.Redis.LockExpiry < c.Worker.JobTimeout {
		return fmt.Errorf("REDIS_LOCK_EXPIRY (%s) must be at least WORKER_JOB_TIMEOUT (%s)",
			c.Redis.LockExpiry, c.Worker.JobTimeout)
	}
	if c.Pipeline.StageParallelism < 1 {
		c.Pipeline.StageParallelism = 1
	}
	if c.Worker.Concurrency < 1 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.MaxAttempts < 1 {
		c.Worker.MaxAttempts = 1
	}

	return nil
}
