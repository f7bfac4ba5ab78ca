package archive

import "errors"

var (
	ErrInvalidPath        = errors.New("invalid archive object path")
	ErrInvalidConfig      = errors.New("invalid archive uploader configuration")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrBucketNotFound     = errors.New("archive bucket not found")
	ErrAccessDenied       = errors.New("archive access denied")
	ErrRequestTimeout     = errors.New("archive request timed out")
	ErrServiceUnavailable = errors.New("archive service temporarily unavailable")
	ErrOperationTimeout   = errors.New("archive operation timed out")
	ErrOperationCanceled  = errors.New("archive operation canceled")
)
