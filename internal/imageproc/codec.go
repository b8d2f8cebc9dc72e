package imageproc

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// Format describes an output encoding.
type Format struct {
	Name string
	MIME string
	Ext  string
}

var (
	FormatWebP = Format{Name: "webp", MIME: "image/webp", Ext: "webp"}
	FormatJPEG = Format{Name: "jpeg", MIME: "image/jpeg", Ext: "jpg"}
)

// Codec encodes a bitmap at a given quality (1..100).
type Codec interface {
	Format() Format
	Encode(w io.Writer, img image.Image, quality int) error
}

type jpegCodec struct{}

// JPEGCodec returns the baseline JPEG codec used as the fallback.
func JPEGCodec() Codec { return jpegCodec{} }

func (jpegCodec) Format() Format { return FormatJPEG }

func (jpegCodec) Encode(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

type webpCodec struct{}

// WebPCodec returns the preferred codec. Without the libwebp build tag it
// always fails with ErrCodecUnavailable.
func WebPCodec() Codec { return webpCodec{} }

func (webpCodec) Format() Format { return FormatWebP }
