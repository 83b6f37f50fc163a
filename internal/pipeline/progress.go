package pipeline

import (
	"context"
	"fmt"

	"github.com/vodflow/vodflow/pkg/models"
)

// StatusStore is the single write path for status and progress changes.
type StatusStore interface {
	UpdateProcessingState(ctx context.Context, videoID string, status models.VideoStatus, progress int, errorMessage string) error
}

// Tracker funnels every status/progress transition of one pipeline run
// through one gate. It enforces the forward-only state machine and the
// monotonic-progress invariant, and persists each accepted transition
// before the next stage is allowed to proceed.
type Tracker struct {
	store    StatusStore
	videoID  string
	status   models.VideoStatus
	progress int
}

// NewTracker creates a Tracker for a fresh run, starting from pending.
func NewTracker(store StatusStore, videoID string) *Tracker {
	return &Tracker{
		store:   store,
		videoID: videoID,
		status:  models.StatusPending,
	}
}

// Status returns the last persisted status.
func (t *Tracker) Status() models.VideoStatus { return t.status }

// Progress returns the last persisted progress value.
func (t *Tracker) Progress() int { return t.progress }

// Begin moves pending -> processing and resets progress to zero. Progress is
// reset only here, at the start of a run; never on failure.
func (t *Tracker) Begin(ctx context.Context) error {
	return t.transition(ctx, models.StatusProcessing, 0, "")
}

// Advance raises progress within a processing run. Regressions are rejected;
// re-persisting the current value is a no-op.
func (t *Tracker) Advance(ctx context.Context, progress int) error {
	if t.status != models.StatusProcessing {
		return fmt.Errorf("%w: cannot advance progress in status %q", models.ErrInvalidTransition, t.status)
	}
	if progress < t.progress {
		return fmt.Errorf("%w: %d -> %d", models.ErrProgressRegression, t.progress, progress)
	}
	if progress == t.progress {
		return nil
	}
	if err := t.store.UpdateProcessingState(ctx, t.videoID, t.status, progress, ""); err != nil {
		return err
	}
	t.progress = progress
	return nil
}

// Complete moves processing -> completed with progress 100.
func (t *Tracker) Complete(ctx context.Context) error {
	return t.transition(ctx, models.StatusCompleted, 100, "")
}

// Fail moves the run to failed, recording the cause. Progress stays at
// whatever value the last successful stage left it at.
func (t *Tracker) Fail(ctx context.Context, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.transition(ctx, models.StatusFailed, t.progress, msg)
}

func (t *Tracker) transition(ctx context.Context, next models.VideoStatus, progress int, errorMessage string) error {
	if !t.status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %q -> %q", models.ErrInvalidTransition, t.status, next)
	}
	if err := t.store.UpdateProcessingState(ctx, t.videoID, next, progress, errorMessage); err != nil {
		return err
	}
	t.status = next
	t.progress = progress
	return nil
}
