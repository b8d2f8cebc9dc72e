package media

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abduss/tribute/internal/derivative"
)

// Status is the processing state of a media item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Media is an uploaded original.
type Media struct {
	ID               uuid.UUID `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	Width            *int      `json:"width"`
	Height           *int      `json:"height"`
	DurationSeconds  *int      `json:"duration_seconds"`
	Hash             string    `json:"hash"`
	Disk             string    `json:"disk"`
	StoragePath      string    `json:"storage_path"`
	IsPublic         bool      `json:"is_public"`
	Status           Status    `json:"status"`
	ErrorMessage     *string   `json:"error_message"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsImage reports whether the sniffed type is a raster image.
func (m Media) IsImage() bool {
	return strings.HasPrefix(m.MimeType, "image/")
}

// Detail is a media item with its derivatives and resolved URLs.
type Detail struct {
	Media
	URL         string           `json:"url,omitempty"`
	Derivatives []DerivativeView `json:"derivatives"`
}

// DerivativeView is a derivative with its resolved URL.
type DerivativeView struct {
	derivative.Derivative
	URL string `json:"url,omitempty"`
}

// allowedTypes maps accepted sniffed MIME types to storage extensions.
var allowedTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/bmp":       "bmp",
	"image/tiff":      "tiff",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/webm":      "webm",
}
