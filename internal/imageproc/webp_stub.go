//go:build !libwebp

package imageproc

import (
	"fmt"
	"image"
	"io"
)

func (webpCodec) Encode(io.Writer, image.Image, int) error {
	return fmt.Errorf("%w: webp (build with -tags libwebp)", ErrCodecUnavailable)
}
