package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songmigrate/internal/formatter"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

// ReportsList lists persisted runs, newest first.
func (r *Runner) ReportsList(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.openRuns()
	if err != nil {
		return err
	}

	criteria := map[string]any{
		"session_id": cmd.String("session"),
		"limit":      cmd.Int("limit"),
	}
	if s := cmd.String("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		criteria["status"] = string(status)
	}

	list, err := runs.List(ctx, criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(list, true)
	}
	return formatter.WriteRuns(r.output, list)
}

// ReportsShow renders the stored report of a run.
func (r *Runner) ReportsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	runs, err := r.openRuns()
	if err != nil {
		return err
	}
	report, err := runs.Report(ctx, id)
	if err != nil {
		return err
	}

	if err := formatter.Write(r.output, report, format); err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteReportFile(report, format, path)
		if err != nil {
			return err
		}
		r.writePlain("\n✓ Report saved to %s\n", written)
	}
	return nil
}

// ReportsDelete removes a run and its events.
func (r *Runner) ReportsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	runs, err := r.openRuns()
	if err != nil {
		return err
	}
	if err := runs.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted run %s\n", id)
}
