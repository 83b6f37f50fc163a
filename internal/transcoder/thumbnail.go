package transcoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Thumbnailer extracts a single poster frame from a source video.
type Thumbnailer struct {
	offsetSeconds int
	log           *slog.Logger
}

// NewThumbnailer creates a Thumbnailer grabbing the frame at the given offset.
func NewThumbnailer(offsetSeconds int, log *slog.Logger) *Thumbnailer {
	return &Thumbnailer{
		offsetSeconds: offsetSeconds,
		log:           log,
	}
}

// Extract writes one scaled JPEG frame to outputPath. Callers treat failure
// as non-essential; a missing thumbnail degrades presentation, not playback.
func (t *Thumbnailer) Extract(ctx context.Context, inputPath, outputPath string) error {
	ctx, span := tracer.Start(ctx, "extract-thumbnail")
	defer span.End()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", fmt.Sprintf("%d", t.offsetSeconds),
		"-i", inputPath,
		"-vframes", "1",
		"-vf", "scale=640:-2",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		// Leave no zero-byte leftovers behind.
		os.Remove(outputPath)
		return fmt.Errorf("ffmpeg thumbnail extraction failed: %v: %s", err, lastLine(string(output)))
	}

	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
