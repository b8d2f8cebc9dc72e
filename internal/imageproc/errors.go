package imageproc

import "errors"

var (
	// ErrProbeFailed indicates the image header could not be read.
	ErrProbeFailed = errors.New("image probe failed")
	// ErrImageTooLarge indicates the pixel count exceeds the decode limit.
	ErrImageTooLarge = errors.New("image dimensions too large")
	// ErrCodecUnavailable is returned by codecs not compiled into this binary.
	ErrCodecUnavailable = errors.New("codec unavailable")
	// ErrDecodeFailed indicates the bitmap could not be decoded.
	ErrDecodeFailed = errors.New("image decode failed")
	// ErrEncodeFailed indicates neither the preferred nor the fallback codec produced output.
	ErrEncodeFailed = errors.New("image encode failed")
	// ErrInvalidPreset indicates a preset with an impossible quality ladder or size.
	ErrInvalidPreset = errors.New("invalid preset")
)
