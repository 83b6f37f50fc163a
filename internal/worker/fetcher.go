package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vodflow/vodflow/pkg/models"
)

// ObjectGetter is the slice of the S3 client the fetcher uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher lands raw source objects from S3 onto the media volume.
type Fetcher struct {
	s3Client ObjectGetter
	log      *slog.Logger
}

// NewFetcher creates a new Fetcher.
func NewFetcher(s3Client ObjectGetter, log *slog.Logger) *Fetcher {
	return &Fetcher{
		s3Client: s3Client,
		log:      log,
	}
}

// Fetch downloads the job's raw object to destPath, creating parent
// directories as needed. The write goes to a temporary sibling first so a
// torn download never masquerades as a complete source file.
func (f *Fetcher) Fetch(ctx context.Context, job *models.TranscodeJob, destPath string) error {
	ctx, span := tracer.Start(ctx, "fetch-source")
	defer span.End()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create source directory: %w", err)
	}

	tmpPath := destPath + ".part"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	result, err := f.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(job.Bucket),
		Key:    aws.String(job.S3Key),
	})
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	written, err := io.Copy(tmpFile, result.Body)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write source file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move source into place: %w", err)
	}

	span.SetAttributes(attribute.Int64("video.size_bytes", written))
	f.log.InfoContext(ctx, "Downloaded source video",
		"videoId", job.VideoID,
		"sizeBytes", written,
	)

	return nil
}
