package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/queue"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

// Status prints the status and progress of a job handle or a session.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore(ctx, true)
	if err != nil {
		return err
	}

	if handle := cmd.String("handle"); handle != "" {
		js, err := queue.NewDispatcher(nil, store, r.logger).Status(ctx, handle)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(js, false)
		}
		return r.writePlain("Job %s (session %s): %s %.2f%%\n", js.Handle, js.SessionID, js.Status, js.Progress)
	}

	sessionID, err := r.sessionFor(ctx, cmd, store)
	if err != nil {
		return err
	}
	snap, err := progress.Read(ctx, store, sessionID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(snap, false)
	}

	r.writePlain("Session %s: %s %.2f%%\n", snap.SessionID, snap.Status, snap.Progress)
	if snap.Cancel {
		r.writePlain("Cancel requested\n")
	}
	return nil
}

// Cancel asks the transfer of a job handle or session to stop after its current track.
func (r *Runner) Cancel(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore(ctx, true)
	if err != nil {
		return err
	}

	if handle := cmd.String("handle"); handle != "" {
		js, err := queue.NewDispatcher(nil, store, r.logger).Cancel(ctx, handle)
		if err != nil {
			return err
		}
		if js.Status.Terminal() {
			return r.writePlain("Job %s already %s\n", handle, js.Status)
		}
		return r.writePlain("✓ Cancel requested for job %s\n", handle)
	}

	sessionID, err := r.sessionFor(ctx, cmd, store)
	if err != nil {
		return err
	}
	snap, err := progress.Read(ctx, store, sessionID)
	if err != nil {
		return err
	}
	if snap.Status.Terminal() {
		return r.writePlain("Session %s already %s\n", sessionID, snap.Status)
	}
	if err := store.RequestCancel(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	r.logger.Info("cancel requested", "session", sessionID)
	return r.writePlain("✓ Cancel requested for session %s\n", sessionID)
}

// sessionFor resolves --session, or the session bound to --handle.
func (r *Runner) sessionFor(ctx context.Context, cmd *cli.Command, store progress.Store) (string, error) {
	if id := cmd.String("session"); id != "" {
		return id, nil
	}
	handle := cmd.String("handle")
	if handle == "" {
		return "", fmt.Errorf("%w: --session or --handle is required", shared.ErrMissingArgument)
	}
	id, err := store.SessionForJob(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("%w: job %s", shared.ErrNotFound, handle)
	}
	return id, nil
}
