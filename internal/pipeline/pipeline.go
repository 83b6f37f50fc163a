package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vodflow/vodflow/internal/metrics"
	"github.com/vodflow/vodflow/internal/transcoder"
	"github.com/vodflow/vodflow/pkg/models"
)

var tracer = otel.Tracer("vodflow-pipeline")

// Progress milestones. The resolution loop owns 0-80; the fixed later stages
// checkpoint at 85, 95, and 100.
const (
	ladderProgressCeiling = 80
	progressMetadata      = 85
	progressThumbnail     = 95
)

// VideoStore is what the pipeline needs from the metadata store.
type VideoStore interface {
	StatusStore
	GetVideo(ctx context.Context, videoID string) (*models.Video, error)
	SetHLSDirectory(ctx context.Context, videoID, hlsDir string) error
	SetMediaInfo(ctx context.Context, videoID string, durationSeconds int64, fileSizeMB float64) error
	SetThumbnail(ctx context.Context, videoID, thumbnailPath string) error
}

// SourceFetcher places the raw source object at the given local path.
type SourceFetcher interface {
	Fetch(ctx context.Context, job *models.TranscodeJob, destPath string) error
}

// ResolutionEncoder produces one rung of the HLS tree.
type ResolutionEncoder interface {
	Encode(ctx context.Context, inputPath, hlsDir string, rung transcoder.Rung) error
}

// DurationProber returns the source duration in whole seconds.
type DurationProber interface {
	Duration(ctx context.Context, inputPath string) (int64, error)
}

// ThumbnailExtractor writes a poster frame for the source.
type ThumbnailExtractor interface {
	Extract(ctx context.Context, inputPath, outputPath string) error
}

// Config is the explicit, immutable configuration of one pipeline instance.
// Behavior depends only on this value, never on ambient globals.
type Config struct {
	MediaRoot string
	Ladder    []transcoder.Rung
}

// Pipeline orchestrates one video's transcoding run: setup, the sequential
// resolution loop, metadata extraction, thumbnail generation, and finalize.
type Pipeline struct {
	cfg     Config
	store   VideoStore
	fetcher SourceFetcher
	encoder ResolutionEncoder
	prober  DurationProber
	thumbs  ThumbnailExtractor
	log     *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config, store VideoStore, fetcher SourceFetcher, encoder ResolutionEncoder, prober DurationProber, thumbs ThumbnailExtractor, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		encoder: encoder,
		prober:  prober,
		thumbs:  thumbs,
		log:     log,
	}
}

// HLSDir returns the output tree root for a video under the media root.
func (p *Pipeline) HLSDir(videoID string) string {
	return filepath.Join(p.cfg.MediaRoot, "hls", videoID)
}

// SourcePath returns the local landing path for a video's raw source.
func SourcePath(mediaRoot, videoID, s3Key string) string {
	return filepath.Join(mediaRoot, "sources", videoID+filepath.Ext(s3Key))
}

// ThumbnailPath returns the poster frame path for a video.
func ThumbnailPath(mediaRoot, videoID string) string {
	return filepath.Join(mediaRoot, "thumbnails", videoID+".jpg")
}

// Run executes the full pipeline for one job. Essential stage failures mark
// the record failed and are returned so the queue layer's redelivery policy
// can act; the pipeline itself never retries.
func (p *Pipeline) Run(ctx context.Context, job *models.TranscodeJob) error {
	ctx, span := tracer.Start(ctx, "pipeline-run")
	span.SetAttributes(attribute.String("video.id", job.VideoID))
	defer span.End()

	video, err := p.store.GetVideo(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video record: %w", err)
	}

	tr := NewTracker(p.store, job.VideoID)
	if err := tr.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin run: %w", err)
	}

	fail := func(cause error) error {
		span.RecordError(cause)
		if failErr := tr.Fail(ctx, cause); failErr != nil {
			p.log.ErrorContext(ctx, "Failed to mark video as failed",
				"videoId", job.VideoID,
				"error", failErr,
			)
		}
		return cause
	}

	// Stage 1: setup. Land the source, create a clean output tree, and
	// persist its location before any encoding starts.
	srcPath := video.OriginalFilePath
	if srcPath == "" {
		srcPath = SourcePath(p.cfg.MediaRoot, job.VideoID, job.S3Key)
	}

	downloadStart := time.Now()
	if err := p.fetcher.Fetch(ctx, job, srcPath); err != nil {
		return fail(fmt.Errorf("%w: %v", models.ErrDownloadFailed, err))
	}
	metrics.DownloadDuration.Observe(time.Since(downloadStart).Seconds())

	hlsDir := p.HLSDir(job.VideoID)
	if err := os.RemoveAll(hlsDir); err != nil {
		return fail(fmt.Errorf("failed to clear output directory: %w", err))
	}
	if err := os.MkdirAll(hlsDir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}
	if err := p.store.SetHLSDirectory(ctx, job.VideoID, hlsDir); err != nil {
		return fail(fmt.Errorf("failed to persist output directory: %w", err))
	}

	// Stage 2: the resolution loop. Strictly sequential; one encoder failure
	// aborts the run, leaving completed rungs in place and later rungs absent.
	encodeStart := time.Now()
	total := len(p.cfg.Ladder)
	for i, rung := range p.cfg.Ladder {
		if ctx.Err() != nil {
			return fail(fmt.Errorf("%w: before encoding %s", models.ErrContextCanceled, rung.Label))
		}
		if err := p.encoder.Encode(ctx, srcPath, hlsDir, rung); err != nil {
			return fail(err)
		}
		if err := tr.Advance(ctx, ladderProgress(i+1, total)); err != nil {
			return fail(err)
		}
	}
	metrics.StageDuration.WithLabelValues("encode").Observe(time.Since(encodeStart).Seconds())

	// Stage 3: metadata extraction. Duration is required by downstream
	// players, so failure here is essential.
	duration, err := p.prober.Duration(ctx, srcPath)
	if err != nil {
		return fail(err)
	}
	stat, err := os.Stat(srcPath)
	if err != nil {
		return fail(fmt.Errorf("failed to stat source file: %w", err))
	}
	sizeMB := float64(stat.Size()) / (1 << 20)
	if err := p.store.SetMediaInfo(ctx, job.VideoID, duration, sizeMB); err != nil {
		return fail(fmt.Errorf("failed to persist media info: %w", err))
	}
	if err := tr.Advance(ctx, progressMetadata); err != nil {
		return fail(err)
	}

	// Stage 4: thumbnail. Non-essential: log, count, and move on.
	thumbPath := ThumbnailPath(p.cfg.MediaRoot, job.VideoID)
	if err := p.thumbs.Extract(ctx, srcPath, thumbPath); err != nil {
		metrics.ThumbnailFailures.Inc()
		p.log.WarnContext(ctx, "Thumbnail extraction failed, continuing without one",
			"videoId", job.VideoID,
			"error", err,
		)
	} else if err := p.store.SetThumbnail(ctx, job.VideoID, thumbPath); err != nil {
		p.log.WarnContext(ctx, "Failed to persist thumbnail path",
			"videoId", job.VideoID,
			"error", err,
		)
	}
	if err := tr.Advance(ctx, progressThumbnail); err != nil {
		return fail(err)
	}

	// Stage 5: finalize.
	if err := transcoder.GenerateMasterPlaylist(hlsDir, p.cfg.Ladder); err != nil {
		return fail(fmt.Errorf("failed to generate master playlist: %w", err))
	}
	if err := tr.Complete(ctx); err != nil {
		return fail(err)
	}

	p.log.InfoContext(ctx, "Video processed",
		"videoId", job.VideoID,
		"resolutions", total,
		"durationSeconds", duration,
	)

	return nil
}

// ladderProgress maps completed rungs onto the 0-80 progress band,
// floor(completed/total * 80).
func ladderProgress(completed, total int) int {
	if total == 0 {
		return ladderProgressCeiling
	}
	return completed * ladderProgressCeiling / total
}
