// Package progress stores per-session transfer progress, status, and
// cancellation flags shared between a running transfer and status pollers.
package progress

import (
	"context"

	"github.com/desertthunder/songmigrate/internal/models"
)

// Store is the key-value contract between the orchestrator and observers.
//
// Lookups of unknown sessions or handles return an error wrapping [shared.ErrNotFound].
type Store interface {
	SetProgress(ctx context.Context, sessionID string, percent float64) error
	Progress(ctx context.Context, sessionID string) (float64, error)

	SetStatus(ctx context.Context, sessionID string, status models.Status) error
	Status(ctx context.Context, sessionID string) (models.Status, error)

	RequestCancel(ctx context.Context, sessionID string) error
	CancelRequested(ctx context.Context, sessionID string) (bool, error)
	ClearCancel(ctx context.Context, sessionID string) error

	BindJob(ctx context.Context, handle, sessionID string) error
	SessionForJob(ctx context.Context, handle string) (string, error)

	// ClaimSession atomically makes handle the active job of sessionID. It
	// reports false when another handle already holds the session.
	ClaimSession(ctx context.Context, sessionID, handle string) (bool, error)
	// ActiveJob returns the handle holding sessionID.
	ActiveJob(ctx context.Context, sessionID string) (string, error)
	// FinishJob records the final status of handle and releases sessionID
	// if handle still holds it. The recorded progress is the session's
	// progress when handle was active, 100 for completed jobs, 0 otherwise.
	FinishJob(ctx context.Context, sessionID, handle string, status models.Status) error
	// JobResult returns what FinishJob recorded for handle.
	JobResult(ctx context.Context, handle string) (JobResult, error)
}

// JobResult is the outcome of one finished job handle.
type JobResult struct {
	Status   models.Status `json:"status"`
	Progress float64       `json:"progress"`
}

// Snapshot is a point-in-time view of one session.
type Snapshot struct {
	SessionID string        `json:"session_id"`
	Status    models.Status `json:"status"`
	Progress  float64       `json:"progress"`
	Cancel    bool          `json:"cancel_requested"`
}

// Read collects status, progress, and the cancel flag for sessionID.
func Read(ctx context.Context, s Store, sessionID string) (Snapshot, error) {
	status, err := s.Status(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	pct, err := s.Progress(ctx, sessionID)
	if err != nil {
		pct = 0
	}
	cancel, _ := s.CancelRequested(ctx, sessionID)
	return Snapshot{SessionID: sessionID, Status: status, Progress: pct, Cancel: cancel}, nil
}
