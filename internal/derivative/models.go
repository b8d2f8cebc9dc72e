package derivative

import (
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// Type names a derivative kind. The set is open: historic rows may carry
// "medium" or "preview".
type Type string

const (
	TypeThumbnail    Type = "thumbnail"
	TypeWebOptimized Type = "web-optimized"
	TypePoster       Type = "poster"
	TypeMedium       Type = "medium"
	TypePreview      Type = "preview"
)

// Derivative is a processed variant of a media original.
type Derivative struct {
	ID          uuid.UUID `json:"id"`
	MediaID     uuid.UUID `json:"media_id"`
	Type        Type      `json:"type"`
	StoragePath string    `json:"storage_path"`
	Width       *int      `json:"width"`
	Height      *int      `json:"height"`
	SizeBytes   int64     `json:"size_bytes"`
	Disk        string    `json:"disk"`
	MimeType    string    `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StoragePath returns the canonical location of a derivative next to its
// siblings: derivatives/{media_id}/{type}.{ext}.
func StoragePath(mediaID uuid.UUID, t Type, ext string) string {
	return path.Join("derivatives", mediaID.String(), fmt.Sprintf("%s.%s", t, ext))
}
