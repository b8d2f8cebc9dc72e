package imageproc

import (
	"bytes"
	"fmt"
	"image"
)

// Result is one encoded derivative.
type Result struct {
	Data     []byte
	Width    int
	Height   int
	Format   Format
	Quality  int
	Attempts int
	// FallbackReason is set when the preferred codec failed and the
	// fallback produced Data.
	FallbackReason string
}

// Size returns len(Data) as int64.
func (r Result) Size() int64 {
	return int64(len(r.Data))
}

// Encoder runs the quality ladder with a preferred codec and a fallback.
type Encoder struct {
	preferred Codec
	fallback  Codec
}

// NewEncoder returns an encoder preferring WebP and falling back to JPEG.
func NewEncoder() *Encoder {
	return NewEncoderWithCodecs(WebPCodec(), JPEGCodec())
}

// NewEncoderWithCodecs builds an encoder from explicit codecs. fallback may
// be nil.
func NewEncoderWithCodecs(preferred, fallback Codec) *Encoder {
	return &Encoder{preferred: preferred, fallback: fallback}
}

// Encode resizes img per the preset and searches for the highest quality
// whose output fits the budget, stopping at the floor quality regardless of
// size. The source image is never modified.
func (e *Encoder) Encode(img image.Image, p Preset) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	scaled := Resize(img, p)

	res, err := search(e.preferred, scaled, p)
	if err == nil {
		return res, nil
	}
	if e.fallback == nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	fb, fbErr := search(e.fallback, scaled, p)
	if fbErr != nil {
		return Result{}, fmt.Errorf("%w: preferred: %v; fallback: %v", ErrEncodeFailed, err, fbErr)
	}
	fb.FallbackReason = err.Error()
	return fb, nil
}

func search(c Codec, img image.Image, p Preset) (Result, error) {
	b := img.Bounds()
	var buf bytes.Buffer

	q := p.InitialQuality
	for attempt := 1; ; attempt++ {
		buf.Reset()
		if err := c.Encode(&buf, img, q); err != nil {
			return Result{}, fmt.Errorf("encode %s at quality %d: %w", c.Format().Name, q, err)
		}

		if int64(buf.Len()) <= p.BudgetBytes || q <= p.FloorQuality {
			data := make([]byte, buf.Len())
			copy(data, buf.Bytes())
			return Result{
				Data:     data,
				Width:    b.Dx(),
				Height:   b.Dy(),
				Format:   c.Format(),
				Quality:  q,
				Attempts: attempt,
			}, nil
		}

		q -= p.Step
		if q < p.FloorQuality {
			q = p.FloorQuality
		}
	}
}
