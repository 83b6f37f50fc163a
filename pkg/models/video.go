package models

// VideoStatus represents the processing status of a video.
type VideoStatus string

const (
	StatusPending    VideoStatus = "pending"
	StatusProcessing VideoStatus = "processing"
	StatusCompleted  VideoStatus = "completed"
	StatusFailed     VideoStatus = "failed"
)

// IsValid returns true if the status is a valid VideoStatus.
func (s VideoStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next. Transitions only run forward: pending -> processing -> completed|failed.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Video represents the full metadata record for a video.
type Video struct {
	// Keys
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty"`

	// Attributes
	VideoID          string      `dynamodbav:"video_id" json:"videoId"`
	Title            string      `dynamodbav:"title,omitempty" json:"title,omitempty"`
	Description      string      `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Category         string      `dynamodbav:"category,omitempty" json:"category,omitempty"`
	Filename         string      `dynamodbav:"filename" json:"filename"`
	S3RawKey         string      `dynamodbav:"s3_raw_key,omitempty" json:"s3RawKey,omitempty"`
	OriginalFilePath string      `dynamodbav:"original_file_path,omitempty" json:"originalFilePath,omitempty"`
	Status           VideoStatus `dynamodbav:"processing_status" json:"processingStatus"`
	Progress         int         `dynamodbav:"processing_progress" json:"processingProgress"`
	ProcessingError  string      `dynamodbav:"processing_error,omitempty" json:"processingError,omitempty"`
	HLSDirectory     string      `dynamodbav:"hls_directory,omitempty" json:"hlsDirectory,omitempty"`
	DurationSeconds  int64       `dynamodbav:"duration_seconds,omitempty" json:"durationSeconds,omitempty"`
	FileSizeMB       float64     `dynamodbav:"file_size_mb,omitempty" json:"fileSizeMb,omitempty"`
	ThumbnailPath    string      `dynamodbav:"thumbnail_path,omitempty" json:"thumbnailPath,omitempty"`
	CreatedAt        string      `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt        string      `dynamodbav:"updated_at" json:"updatedAt"`
	ProcessedAt      string      `dynamodbav:"processed_at,omitempty" json:"processedAt,omitempty"`
}

// HasSource reports whether the record has an attached source file to process.
func (v *Video) HasSource() bool {
	return v.S3RawKey != ""
}

// TranscodeJob represents a video processing job delivered through SQS.
type TranscodeJob struct {
	VideoID  string `json:"videoId"`
	S3Key    string `json:"s3Key"`
	Bucket   string `json:"bucket"`
	Filename string `json:"filename"`
}

// Validate checks if the transcode job has all required fields.
func (j *TranscodeJob) Validate() error {
	if j.VideoID == "" {
		return ErrMissingVideoID
	}
	if j.S3Key == "" {
		return ErrMissingS3Key
	}
	if j.Bucket == "" {
		return ErrMissingBucket
	}
	return nil
}
