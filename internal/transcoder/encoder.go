package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vodflow/vodflow/internal/metrics"
	"github.com/vodflow/vodflow/pkg/models"
)

const (
	// ManifestName is the per-resolution playlist filename.
	ManifestName = "index.m3u8"

	// SegmentPattern is the ffmpeg segment filename template. The streaming
	// server's segment-name validation must accept exactly this shape.
	SegmentPattern = "%03d.ts"

	// stderrTailLines is how many trailing ffmpeg stderr lines are kept for
	// the failure diagnostic.
	stderrTailLines = 20
)

var tracer = otel.Tracer("vodflow-transcoder")

// Encoder drives ffmpeg to produce one resolution's HLS output at a time.
type Encoder struct {
	segmentDuration int
	log             *slog.Logger
}

// NewEncoder creates an Encoder producing segments of the given duration.
func NewEncoder(segmentDuration int, log *slog.Logger) *Encoder {
	return &Encoder{
		segmentDuration: segmentDuration,
		log:             log,
	}
}

// Encode transcodes the source into hlsDir/<label>/ for a single rung,
// blocking until ffmpeg exits. The rung is written to a temporary sibling
// directory and renamed into place on success, so readers never observe a
// half-written resolution.
func (e *Encoder) Encode(ctx context.Context, inputPath, hlsDir string, rung Rung) error {
	ctx, span := tracer.Start(ctx, "encode-resolution")
	span.SetAttributes(attribute.String("resolution", rung.Label))
	defer span.End()

	start := time.Now()

	tmpDir := filepath.Join(hlsDir, "."+rung.Label+".tmp")
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrEncodeFailed, rung.Label, err)
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrEncodeFailed, rung.Label, err)
	}

	args := buildEncodeArgs(inputPath, tmpDir, rung, e.segmentDuration)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("%w: %s: failed to get stderr pipe: %v", models.ErrEncodeFailed, rung.Label, err)
	}

	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("%w: %s: failed to start ffmpeg: %v", models.ErrEncodeFailed, rung.Label, err)
	}

	tail := e.collectStderr(ctx, stderrPipe)

	if err := cmd.Wait(); err != nil {
		os.RemoveAll(tmpDir)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %v", models.ErrContextCanceled, rung.Label, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %v: %s", models.ErrEncodeFailed, rung.Label, err, tail)
	}

	// Publish the rung atomically.
	finalDir := filepath.Join(hlsDir, rung.Label)
	if err := os.RemoveAll(finalDir); err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("%w: %s: %v", models.ErrEncodeFailed, rung.Label, err)
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("%w: %s: %v", models.ErrEncodeFailed, rung.Label, err)
	}

	metrics.EncodeDuration.WithLabelValues(rung.Label).Observe(time.Since(start).Seconds())
	e.log.InfoContext(ctx, "Resolution encoded",
		"resolution", rung.Label,
		"durationSeconds", time.Since(start).Seconds(),
	)

	return nil
}

// buildEncodeArgs constructs the ffmpeg command arguments for one rung.
func buildEncodeArgs(inputPath, outDir string, rung Rung, segmentDuration int) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", rung.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "main",
		"-b:v", rung.Bitrate,
		"-maxrate", rung.MaxRate,
		"-bufsize", rung.BufSize,
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", rung.AudioBPS,
		"-hls_time", fmt.Sprintf("%d", segmentDuration),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outDir, SegmentPattern),
		filepath.Join(outDir, ManifestName),
	}
}

// collectStderr drains ffmpeg stderr, logging progress lines and returning
// the trailing lines for failure diagnostics.
func (e *Encoder) collectStderr(ctx context.Context, r io.Reader) string {
	tail := make([]string, 0, stderrTailLines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "frame=") || strings.Contains(line, "time=") {
			e.log.Debug("FFmpeg progress", "output", line)
			continue
		}
		if len(tail) == stderrTailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		e.log.Warn("FFmpeg output scanner error", "error", err)
	}
	return strings.Join(tail, " | ")
}
