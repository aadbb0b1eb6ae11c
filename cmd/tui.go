package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/desertthunder/songmigrate/internal/tasks"
	"github.com/desertthunder/songmigrate/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/songmigrate-tui.log"

// TUI launches the interactive terminal UI for picking and transferring playlists.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.transferOptions(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	store, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	sink, err := r.reportSink(ctx)
	if err != nil {
		return err
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	engine, err := r.newEngine(ctx, cmd.String("session"), store, sink, updates)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, engine, ui.ModelOpts{Store: store, Updates: updates, Transfer: opts})
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil && !errors.Is(err, shared.ErrCancelled) {
		return err
	}
	return nil
}

// Watch follows a session in the progress store until its transfer finishes.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore(ctx, true)
	if err != nil {
		return err
	}

	sessionID, err := r.sessionFor(ctx, cmd, store)
	if err != nil {
		return err
	}

	watcher := ui.NewWatcher(ctx, store, sessionID, cmd.Duration("interval"))
	if _, err := tea.NewProgram(watcher, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running watcher: %w", err)
	}
	if err := watcher.Err(); err != nil {
		return err
	}

	snap := watcher.Snapshot()
	r.writePlain("Session %s: %s (%.2f%%)\n", snap.SessionID, snap.Status, snap.Progress)
	return nil
}
