package models

import "errors"

// Sentinel errors for video operations.
var (
	// Validation errors
	ErrMissingVideoID = errors.New("videoId is required")
	ErrMissingS3Key   = errors.New("s3Key is required")
	ErrMissingBucket  = errors.New("bucket is required")

	// Pipeline errors
	ErrJobParseFailed  = errors.New("failed to parse job")
	ErrSubmitFailed    = errors.New("failed to submit processing job")
	ErrDownloadFailed  = errors.New("failed to download source video")
	ErrEncodeFailed    = errors.New("failed to encode resolution")
	ErrProbeFailed     = errors.New("failed to probe video duration")
	ErrContextCanceled = errors.New("context canceled")

	// Progress-gate errors
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrProgressRegression = errors.New("progress may not decrease")

	// Storage errors
	ErrVideoNotFound = errors.New("video not found")
	ErrInvalidStatus = errors.New("invalid video status")

	// Deletion errors
	ErrVideoProcessing = errors.New("video is still processing")

	// Validation errors for uploads
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrFilenameTooLong    = errors.New("filename too long")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidKeyFormat   = errors.New("invalid key format")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
)
