package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/repositories"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// Runner is the part of [tasks.TransferEngine] a worker drives.
type Runner interface {
	RunSelected(ctx context.Context, ids []string, opts models.TransferOptions) (*models.TransferReport, error)
}

// EngineFactory builds a per-session engine for a job.
type EngineFactory interface {
	NewEngine(ctx context.Context, sessionID string) (Runner, error)
}

// EngineFactoryFunc adapts a function to [EngineFactory].
type EngineFactoryFunc func(ctx context.Context, sessionID string) (Runner, error)

func (f EngineFactoryFunc) NewEngine(ctx context.Context, sessionID string) (Runner, error) {
	return f(ctx, sessionID)
}

// RunRecorder records run rows. It is satisfied by [repositories.TransferRepository].
type RunRecorder interface {
	CreateRun(ctx context.Context, sessionID, handle string) (*repositories.TransferRun, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, message string) error
}

// WorkerOpts configures a [Worker]. Runs may be nil.
type WorkerOpts struct {
	Workers int
	Store   progress.Store
	Runs    RunRecorder
	Logger  *log.Logger
}

// Worker consumes jobs with a fixed pool of goroutines.
type Worker struct {
	consumer Consumer
	factory  EngineFactory
	store    progress.Store
	runs     RunRecorder
	workers  int
	logger   *log.Logger
}

func NewWorker(consumer Consumer, factory EngineFactory, opts WorkerOpts) *Worker {
	return &Worker{
		consumer: consumer,
		factory:  factory,
		store:    opts.Store,
		runs:     opts.Runs,
		workers:  max(opts.Workers, 1),
		logger:   opts.Logger,
	}
}

// Run blocks until ctx is done or the consumer closes its delivery channel.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("worker started", "workers", w.workers)

	var wg sync.WaitGroup
	for i := range w.workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for d := range deliveries {
				w.handle(ctx, id, d)
			}
		}(i)
	}
	wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, id int, d Delivery) {
	job := d.Job
	logger := shared.WithLogger(w.logger, "worker", id, "handle", job.Handle, "session", job.SessionID)

	if err := job.Validate(); err != nil {
		logger.Error("rejecting invalid job", "error", err)
		w.nack(logger, d, false)
		return
	}

	runID := w.startRun(ctx, logger, job)
	status, message := w.execute(ctx, logger, job)

	// Shutdown interrupted the run; hand the job back to the broker.
	if ctx.Err() != nil && status != models.StatusCompleted {
		logger.Warn("worker stopping, requeueing job")
		w.setStatus(logger, job.SessionID, models.StatusPending)
		w.finishRun(logger, runID, models.StatusCancelled, "interrupted by shutdown, requeued")
		w.nack(logger, d, true)
		return
	}

	w.finishRun(logger, runID, status, message)
	w.finishJob(logger, job, status)
	if err := d.Ack(); err != nil {
		logger.Warn("ack failed", "error", err)
	}
}

// execute runs the job and maps the outcome to a terminal status.
func (w *Worker) execute(ctx context.Context, logger *log.Logger, job Job) (status models.Status, message string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("transfer panicked", "panic", r)
			w.setStatus(logger, job.SessionID, models.StatusFailed)
			status, message = models.StatusFailed, fmt.Sprint(r)
		}
	}()

	engine, err := w.factory.NewEngine(ctx, job.SessionID)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		w.setStatus(logger, job.SessionID, models.StatusFailed)
		return models.StatusFailed, err.Error()
	}

	report, err := engine.RunSelected(ctx, job.PlaylistIDs, job.Options)
	switch {
	case errors.Is(err, shared.ErrCancelled):
		logger.Warn("transfer cancelled")
		return models.StatusCancelled, ""
	case err != nil:
		logger.Error("transfer failed", "error", err)
		w.setStatus(logger, job.SessionID, models.StatusFailed)
		return models.StatusFailed, err.Error()
	}

	logger.Info("transfer finished", "successful", report.Summary.SuccessfulTransfers,
		"failed", report.Summary.FailedTransfers, "rate", report.Summary.SuccessRate)
	return models.StatusCompleted, ""
}

func (w *Worker) startRun(ctx context.Context, logger *log.Logger, job Job) string {
	if w.runs == nil {
		return ""
	}
	run, err := w.runs.CreateRun(ctx, job.SessionID, job.Handle)
	if err != nil {
		logger.Warn("failed to record run", "error", err)
		return ""
	}
	if err := w.runs.UpdateStatus(ctx, run.ID, models.StatusRunning, ""); err != nil {
		logger.Warn("failed to update run", "error", err)
	}
	return run.ID
}

func (w *Worker) finishRun(logger *log.Logger, runID string, status models.Status, message string) {
	if w.runs == nil || runID == "" {
		return
	}
	if err := w.runs.UpdateStatus(context.Background(), runID, status, message); err != nil {
		logger.Warn("failed to update run", "status", status, "error", err)
	}
}

// finishJob records the handle's result and frees its session for the next job.
func (w *Worker) finishJob(logger *log.Logger, job Job, status models.Status) {
	if w.store == nil {
		return
	}
	if err := w.store.FinishJob(context.Background(), job.SessionID, job.Handle, status); err != nil {
		logger.Warn("failed to record job result", "status", status, "error", err)
	}
}

func (w *Worker) setStatus(logger *log.Logger, sessionID string, status models.Status) {
	if w.store == nil {
		return
	}
	if err := w.store.SetStatus(context.Background(), sessionID, status); err != nil {
		logger.Warn("failed to write status", "status", status, "error", err)
	}
}

func (w *Worker) nack(logger *log.Logger, d Delivery, requeue bool) {
	if err := d.Nack(requeue); err != nil {
		logger.Warn("nack failed", "requeue", requeue, "error", err)
	}
}
