package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songmigrate/internal/formatter"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/queue"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/desertthunder/songmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Playlists authenticates the session and lists its source playlists.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")

	engine, err := r.newEngine(ctx, sessionID, progress.NewMemoryStore(), nil, nil)
	if err != nil {
		return err
	}

	playlists, err := engine.ListPlaylists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for _, pl := range playlists {
		r.writePlain("  %-24s %5d tracks  %s\n", pl.ID, pl.TrackCount, pl.Name)
	}
	r.writePlain("\nEstimated transfer time for all: %s\n", shared.EstimateTransferTime(totalTracks(playlists)))
	return nil
}

// Transfer runs a transfer in this process, or queues it for a worker with --enqueue.
func (r *Runner) Transfer(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")
	ids := cmd.StringSlice("playlist")
	all := cmd.Bool("all")

	switch {
	case len(ids) == 0 && !all:
		return fmt.Errorf("%w: --playlist or --all is required", shared.ErrMissingArgument)
	case len(ids) > 0 && all:
		return fmt.Errorf("%w: --playlist and --all are mutually exclusive", shared.ErrInvalidArgument)
	}

	opts, err := r.transferOptions(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("enqueue") {
		return r.enqueue(ctx, sessionID, ids, all, opts)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	report, err := r.runLocal(ctx, sessionID, ids, all, opts)
	if report == nil {
		return err
	}
	if werr := r.writeReport(report, format, cmd.String("output")); werr != nil {
		return werr
	}
	return err
}

// runLocal runs the transfer in this process and prints progress as it goes.
func (r *Runner) runLocal(ctx context.Context, sessionID string, ids []string, all bool, opts models.TransferOptions) (*models.TransferReport, error) {
	store, err := r.openStore(ctx, false)
	if err != nil {
		return nil, err
	}
	sink, err := r.reportSink(ctx)
	if err != nil {
		return nil, err
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	engine, err := r.newEngine(ctx, sessionID, store, sink, updates)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			r.printUpdate(update)
		}
	}()

	r.logger.Info("starting transfer", "session", sessionID, "playlists", len(ids), "all", all)

	var report *models.TransferReport
	if all {
		var playlists []models.Playlist
		if playlists, err = engine.ListPlaylists(ctx); err == nil {
			report, err = engine.Run(ctx, playlists, opts)
		}
	} else {
		report, err = engine.RunSelected(ctx, ids, opts)
	}

	close(updates)
	<-done
	return report, err
}

func (r *Runner) printUpdate(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.Authenticate, tasks.FetchPlaylists:
		r.writePlain("🔑 %s\n", u.Message)
	case tasks.FetchTracks:
		r.writePlain("\n📥 %s\n", u.Message)
	case tasks.ResolvePlaylist:
		r.writePlain("📝 %s\n", u.Message)
	case tasks.TransferTrack, tasks.LikeTrack:
		r.writePlain("   [%6.2f%%] %s\n", u.Percent, u.Message)
	case tasks.Complete, tasks.Cancelled:
		r.writePlainln("%s", u.Message)
	}
}

func (r *Runner) writeReport(report *models.TransferReport, format formatter.Format, path string) error {
	r.writePlainHeader("Transfer Report")
	if err := formatter.Write(r.output, report, format); err != nil {
		return err
	}

	if path == "" {
		return nil
	}
	written, err := formatter.WriteReportFile(report, format, path)
	if err != nil {
		return err
	}
	r.writePlain("\n✓ Report saved to %s\n", written)
	return nil
}

// enqueue publishes the transfer to RabbitMQ and prints the job handle.
func (r *Runner) enqueue(ctx context.Context, sessionID string, ids []string, all bool, opts models.TransferOptions) error {
	store, err := r.openStore(ctx, true)
	if err != nil {
		return err
	}

	if all {
		engine, err := r.newEngine(ctx, sessionID, progress.NewMemoryStore(), nil, nil)
		if err != nil {
			return err
		}
		playlists, err := engine.ListPlaylists(ctx)
		if err != nil {
			return err
		}
		for _, pl := range playlists {
			ids = append(ids, pl.ID)
		}
	}

	broker, err := queue.DialAMQP(r.config.AMQP, r.logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	handle, err := queue.NewDispatcher(broker, store, r.logger).Submit(ctx, sessionID, ids, opts)
	if err != nil {
		return err
	}

	r.writePlain("✓ Transfer queued\n")
	r.writePlain("Handle: %s\n", handle)
	r.writePlain("Follow it with 'songmigrate watch --handle %s'\n", handle)
	return nil
}

func totalTracks(playlists []models.Playlist) int {
	n := 0
	for _, pl := range playlists {
		n += pl.TrackCount
	}
	return n
}
