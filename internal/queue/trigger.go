// Package queue submits transcoding jobs to SQS.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vodflow/vodflow/pkg/models"
)

var tracer = otel.Tracer("vodflow-queue")

// MessageSender is the slice of the SQS client the trigger uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// FailureRecorder marks a record failed when submission cannot succeed.
type FailureRecorder interface {
	UpdateProcessingState(ctx context.Context, videoID string, status models.VideoStatus, progress int, errorMessage string) error
}

// Trigger submits exactly one processing job for a newly created video. It
// is called explicitly by the ingestion write path, right after the record
// is created; there is no hidden save hook.
type Trigger struct {
	sender   MessageSender
	store    FailureRecorder
	queueURL string
	bucket   string
	log      *slog.Logger
}

// NewTrigger creates a Trigger.
func NewTrigger(sender MessageSender, store FailureRecorder, queueURL, bucket string, log *slog.Logger) *Trigger {
	return &Trigger{
		sender:   sender,
		store:    store,
		queueURL: queueURL,
		bucket:   bucket,
		log:      log,
	}
}

// Submit enqueues the processing job for the video. A record without an
// attached source is left untouched. A job that was never queued will never
// self-correct, so any submission failure immediately marks the record
// failed instead of leaving it silently stuck in pending; there is no retry.
func (t *Trigger) Submit(ctx context.Context, video *models.Video) error {
	if !video.HasSource() {
		t.log.InfoContext(ctx, "Video has no source file, skipping job submission",
			"videoId", video.VideoID,
		)
		return nil
	}

	ctx, span := tracer.Start(ctx, "submit-job")
	span.SetAttributes(attribute.String("video.id", video.VideoID))
	defer span.End()

	job := models.TranscodeJob{
		VideoID:  video.VideoID,
		S3Key:    video.S3RawKey,
		Bucket:   t.bucket,
		Filename: video.Filename,
	}

	body, err := json.Marshal(job)
	if err != nil {
		return t.failSubmission(ctx, video.VideoID, fmt.Errorf("%w: %v", models.ErrSubmitFailed, err))
	}

	_, err = t.sender.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return t.failSubmission(ctx, video.VideoID, fmt.Errorf("%w: %v", models.ErrSubmitFailed, err))
	}

	t.log.InfoContext(ctx, "Processing job queued", "videoId", video.VideoID)
	return nil
}

func (t *Trigger) failSubmission(ctx context.Context, videoID string, cause error) error {
	if err := t.store.UpdateProcessingState(ctx, videoID, models.StatusFailed, 0, cause.Error()); err != nil {
		t.log.ErrorContext(ctx, "Failed to mark video as failed after submission error",
			"videoId", videoID,
			"error", err,
		)
	}
	return cause
}
