package transcoder

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/vodflow/vodflow/pkg/models"
)

// Prober extracts media metadata via ffprobe.
type Prober struct {
	log *slog.Logger
}

// NewProber creates a new Prober.
func NewProber(log *slog.Logger) *Prober {
	return &Prober{log: log}
}

// Duration returns the source duration in whole seconds, truncated.
func (p *Prober) Duration(ctx context.Context, inputPath string) (int64, error) {
	ctx, span := tracer.Start(ctx, "probe-duration")
	defer span.End()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %v", models.ErrContextCanceled, ctx.Err())
		}
		return 0, fmt.Errorf("%w: %v: %s", models.ErrProbeFailed, err, strings.TrimSpace(string(output)))
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable duration %q", models.ErrProbeFailed, strings.TrimSpace(string(output)))
	}

	return int64(seconds), nil
}
