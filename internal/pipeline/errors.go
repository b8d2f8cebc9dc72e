package pipeline

import "errors"

var (
	// ErrSourceMissing indicates the original file is absent from its disk.
	ErrSourceMissing = errors.New("original file is missing")
	// ErrUnsupportedImage indicates the original could not be decoded.
	ErrUnsupportedImage = errors.New("image format not supported")
)

// User-facing status messages.
const (
	msgSourceMissing = "Original file is missing"
	msgTooLarge      = "Image dimensions too large"
	msgUnsupported   = "Image format not supported on this server"
	msgNoDerivatives = "Could not generate image derivatives"
	MessageJobFailed = "Processing failed, please try again later"
)
