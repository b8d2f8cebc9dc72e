package imageproc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels is the decompression-bomb limit applied before decoding.
const DefaultMaxPixels int64 = 80_000_000

// Info describes an image header.
type Info struct {
	Width  int
	Height int
	Format string
}

// Pixels returns Width*Height without overflowing int on 32-bit platforms.
func (i Info) Pixels() int64 {
	return int64(i.Width) * int64(i.Height)
}

// Probe reads only the image header and reports its dimensions.
func Probe(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrProbeFailed, cfg.Width, cfg.Height)
	}

	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// CheckPixelLimit rejects images whose decoded bitmap would exceed maxPixels.
// A non-positive limit disables the check.
func CheckPixelLimit(info Info, maxPixels int64) error {
	if maxPixels <= 0 || info.Pixels() <= maxPixels {
		return nil
	}
	return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, info.Width, info.Height, maxPixels)
}

// Decode fully decodes data, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return img, nil
}
