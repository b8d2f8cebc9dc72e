package media

import "errors"

var (
	// ErrMediaNotFound signals that the media item could not be located.
	ErrMediaNotFound = errors.New("media not found")
	// ErrFileTooLarge signals that the upload exceeds configured limits.
	ErrFileTooLarge = errors.New("file too large")
	// ErrEmptyFile signals a zero-byte upload.
	ErrEmptyFile = errors.New("empty file")
	// ErrUnsupportedType signals that the sniffed content type is not accepted.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrMissingFile signals that the request carried no file part.
	ErrMissingFile = errors.New("missing file payload")
)
