// Package worker consumes transcoding jobs from SQS and runs the pipeline.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vodflow/vodflow/internal/config"
	"github.com/vodflow/vodflow/internal/metrics"
	"github.com/vodflow/vodflow/internal/pipeline"
	"github.com/vodflow/vodflow/pkg/models"
)

// SQS configuration constants. The visibility timeout doubles as the
// wall-clock budget for one job: a stalled run becomes visible again and is
// redelivered by the queue, not rescued by this process.
const (
	SQSMaxMessages       = 1
	SQSWaitTimeSeconds   = 20
	SQSVisibilityTimeout = 900 // 15 minutes
	RetryBackoffPeriod   = 5 * time.Second
)

var tracer = otel.Tracer("vodflow-worker")

// Worker handles video processing jobs from SQS.
type Worker struct {
	sqsClient *sqs.Client
	pipeline  *pipeline.Pipeline
	cfg       *config.Config
	log       *slog.Logger
}

// Config holds worker dependencies.
type Config struct {
	SQSClient *sqs.Client
	Pipeline  *pipeline.Pipeline
	AppConfig *config.Config
	Logger    *slog.Logger
}

// New creates a new Worker with the given configuration.
func New(cfg *Config) *Worker {
	return &Worker{
		sqsClient: cfg.SQSClient,
		pipeline:  cfg.Pipeline,
		cfg:       cfg.AppConfig,
		log:       cfg.Logger,
	}
}

// Run starts the worker and blocks until the context is cancelled. One job
// is handled end-to-end by one goroutine; distinct videos may run
// concurrently up to MaxConcurrentJobs.
func (w *Worker) Run(ctx context.Context) {
	w.log.InfoContext(ctx, "Starting queue polling",
		"queueURL", w.cfg.AWS.SQSQueueURL,
		"maxConcurrent", w.cfg.Worker.MaxConcurrentJobs,
	)

	sem := make(chan struct{}, w.cfg.Worker.MaxConcurrentJobs)
	var wg sync.WaitGroup

messageLoop:
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "Waiting for in-progress jobs to complete...")
			wg.Wait()
			w.log.InfoContext(ctx, "All jobs completed, shutting down")
			return
		default:
		}

		result, err := w.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.cfg.AWS.SQSQueueURL),
			MaxNumberOfMessages: SQSMaxMessages,
			WaitTimeSeconds:     SQSWaitTimeSeconds,
			VisibilityTimeout:   SQSVisibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue // Shutting down
			}
			w.log.ErrorContext(ctx, "Failed to receive messages", "error", err)
			time.Sleep(RetryBackoffPeriod)
			continue
		}

		for _, msg := range result.Messages {
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func(msg types.Message) {
					defer wg.Done()
					defer func() { <-sem }()

					metrics.ActiveJobs.Inc()
					defer metrics.ActiveJobs.Dec()

					if err := w.processMessage(ctx, msg); err != nil {
						// Leave the message in flight; the queue's
						// redelivery policy decides what happens next.
						w.log.ErrorContext(ctx, "Failed to process message",
							"error", err,
							"messageId", safeStringDeref(msg.MessageId),
						)
						metrics.RecordFailure()
					} else {
						_, delErr := w.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
							QueueUrl:      aws.String(w.cfg.AWS.SQSQueueURL),
							ReceiptHandle: msg.ReceiptHandle,
						})
						if delErr != nil {
							w.log.ErrorContext(ctx, "Failed to delete message", "error", delErr)
						}
						metrics.RecordSuccess()
					}
				}(msg)
			case <-ctx.Done():
				w.log.InfoContext(ctx, "Context cancelled, stopping message processing")
				break messageLoop
			}
		}
	}

	w.log.Info("Waiting for in-progress jobs to complete...")
	wg.Wait()
	w.log.Info("All jobs completed, shutting down")
}

func safeStringDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (w *Worker) processMessage(ctx context.Context, msg types.Message) error {
	ctx, span := tracer.Start(ctx, "process-message")
	defer span.End()

	if msg.Body == nil {
		return fmt.Errorf("%w: empty message body", models.ErrJobParseFailed)
	}

	var job models.TranscodeJob
	if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
		return fmt.Errorf("%w: %v", models.ErrJobParseFailed, err)
	}

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrJobParseFailed, err)
	}

	span.SetAttributes(
		attribute.String("video.id", job.VideoID),
		attribute.String("video.s3_key", job.S3Key),
		attribute.String("video.filename", job.Filename),
	)

	return w.pipeline.Run(ctx, &job)
}
