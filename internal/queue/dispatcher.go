package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// JobStatus is what callers see when polling a handle.
type JobStatus struct {
	Handle    string        `json:"handle"`
	SessionID string        `json:"session_id"`
	Status    models.Status `json:"status"`
	Progress  float64       `json:"progress"`
}

// Dispatcher submits transfer requests and answers status and cancel calls by handle.
type Dispatcher struct {
	pub    Publisher
	store  progress.Store
	logger *log.Logger
}

func NewDispatcher(pub Publisher, store progress.Store, logger *log.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, store: store, logger: logger}
}

// Submit validates the request, claims the session for the new handle, marks
// it pending, and publishes a job. A session that already has a pending or
// running transfer is rejected with [shared.ErrConflict].
func (d *Dispatcher) Submit(ctx context.Context, sessionID string, playlistIDs []string, opts models.TransferOptions) (string, error) {
	job := Job{
		Handle:      shared.GenerateID(),
		SessionID:   sessionID,
		PlaylistIDs: playlistIDs,
		Options:     opts,
		EnqueuedAt:  time.Now().UTC(),
	}
	if err := job.Validate(); err != nil {
		return "", err
	}

	claimed, err := d.store.ClaimSession(ctx, sessionID, job.Handle)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if !claimed {
		return "", fmt.Errorf("%w: session %s", shared.ErrConflict, sessionID)
	}

	// A local run writes status without holding a claim.
	if st, err := d.store.Status(ctx, sessionID); err == nil && !st.Terminal() {
		d.release(job, models.StatusFailed)
		return "", fmt.Errorf("%w: session %s has a %s transfer", shared.ErrConflict, sessionID, st)
	}

	if err := d.prepare(ctx, job); err != nil {
		d.release(job, models.StatusFailed)
		return "", fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	if err := d.pub.Publish(ctx, job); err != nil {
		if serr := d.store.SetStatus(context.WithoutCancel(ctx), sessionID, models.StatusFailed); serr != nil {
			d.logger.Warn("failed to mark job failed", "handle", job.Handle, "error", serr)
		}
		d.release(job, models.StatusFailed)
		return "", err
	}

	d.logger.Info("transfer queued", "handle", job.Handle, "session", sessionID, "playlists", len(playlistIDs))
	return job.Handle, nil
}

func (d *Dispatcher) prepare(ctx context.Context, job Job) error {
	if err := d.store.ClearCancel(ctx, job.SessionID); err != nil {
		return err
	}
	if err := d.store.BindJob(ctx, job.Handle, job.SessionID); err != nil {
		return err
	}
	if err := d.store.SetStatus(ctx, job.SessionID, models.StatusPending); err != nil {
		return err
	}
	if err := d.store.SetProgress(ctx, job.SessionID, 0); err != nil {
		d.logger.Warn("failed to reset progress", "session", job.SessionID, "error", err)
	}
	return nil
}

// release gives up the claim of a job that was never queued.
func (d *Dispatcher) release(job Job, status models.Status) {
	if err := d.store.FinishJob(context.Background(), job.SessionID, job.Handle, status); err != nil {
		d.logger.Warn("failed to release session", "handle", job.Handle, "error", err)
	}
}

// Status reports on handle. A handle that no longer holds its session is
// finished: its recorded result is returned, and never the state of a newer
// job on the same session.
func (d *Dispatcher) Status(ctx context.Context, handle string) (JobStatus, error) {
	sessionID, err := d.store.SessionForJob(ctx, handle)
	if err != nil {
		return JobStatus{}, fmt.Errorf("%w: job %s", shared.ErrNotFound, handle)
	}
	js := JobStatus{Handle: handle, SessionID: sessionID, Status: models.StatusPending}

	result, err := d.store.JobResult(ctx, handle)
	switch {
	case err == nil:
		js.Status, js.Progress = result.Status, result.Progress
		return js, nil
	case !errors.Is(err, shared.ErrNotFound):
		return JobStatus{}, err
	}

	active, err := d.store.ActiveJob(ctx, sessionID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return JobStatus{}, err
	}
	if active != handle {
		// The claim lapsed without a recorded result.
		js.Status = models.StatusFailed
		return js, nil
	}

	snap, err := progress.Read(ctx, d.store, sessionID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return js, nil
	case err != nil:
		return JobStatus{}, err
	}
	js.Status, js.Progress = snap.Status, snap.Progress
	return js, nil
}

// Cancel requests cancellation of the job's session. Jobs that already
// finished are returned unchanged and never touch the session's flag.
func (d *Dispatcher) Cancel(ctx context.Context, handle string) (JobStatus, error) {
	js, err := d.Status(ctx, handle)
	if err != nil {
		return JobStatus{}, err
	}
	if js.Status.Terminal() {
		return js, nil
	}
	if err := d.store.RequestCancel(ctx, js.SessionID); err != nil {
		return JobStatus{}, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	d.logger.Info("cancel requested", "handle", handle, "session", js.SessionID)
	return js, nil
}
