// Package cleanup removes a deleted video's on-disk and S3 artifacts.
package cleanup

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vodflow/vodflow/internal/metrics"
	"github.com/vodflow/vodflow/pkg/models"
)

// ObjectDeleter is the slice of the S3 client the handler uses.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Handler removes a video's artifacts best-effort. A metadata record
// orphaned from its files can be found by a sweep job; files orphaned from a
// deleted record cannot, so every removal is attempted and none is escalated.
type Handler struct {
	s3Client  ObjectDeleter
	rawBucket string
	log       *slog.Logger
}

// NewHandler creates a cleanup Handler. s3Client may be nil when there is no
// raw object to delete.
func NewHandler(s3Client ObjectDeleter, rawBucket string, log *slog.Logger) *Handler {
	return &Handler{
		s3Client:  s3Client,
		rawBucket: rawBucket,
		log:       log,
	}
}

// Remove attempts each removal independently and in order: local source
// file, HLS output tree, thumbnail, raw S3 object. Failures are logged with
// the resource and reason; a failure never stops the remaining removals, and
// the caller deletes the record regardless.
func (h *Handler) Remove(ctx context.Context, video *models.Video) {
	h.removeFile(ctx, video.VideoID, "source", video.OriginalFilePath)
	h.removeTree(ctx, video.VideoID, "hls_directory", video.HLSDirectory)
	h.removeFile(ctx, video.VideoID, "thumbnail", video.ThumbnailPath)
	h.removeRawObject(ctx, video)
}

func (h *Handler) removeFile(ctx context.Context, videoID, resource, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			h.log.InfoContext(ctx, "Cleanup target already absent",
				"videoId", videoID,
				"resource", resource,
				"path", path,
			)
			return
		}
		metrics.CleanupFailures.WithLabelValues(resource).Inc()
		h.log.ErrorContext(ctx, "Failed to remove file",
			"videoId", videoID,
			"resource", resource,
			"path", path,
			"error", err,
		)
	}
}

func (h *Handler) removeTree(ctx context.Context, videoID, resource, path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		metrics.CleanupFailures.WithLabelValues(resource).Inc()
		h.log.ErrorContext(ctx, "Failed to remove directory tree",
			"videoId", videoID,
			"resource", resource,
			"path", path,
			"error", err,
		)
	}
}

func (h *Handler) removeRawObject(ctx context.Context, video *models.Video) {
	if h.s3Client == nil || h.rawBucket == "" || video.S3RawKey == "" {
		return
	}
	_, err := h.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.rawBucket),
		Key:    aws.String(video.S3RawKey),
	})
	if err != nil {
		metrics.CleanupFailures.WithLabelValues("s3_raw_object").Inc()
		h.log.ErrorContext(ctx, "Failed to delete raw S3 object",
			"videoId", video.VideoID,
			"bucket", h.rawBucket,
			"key", video.S3RawKey,
			"error", err,
		)
	}
}
