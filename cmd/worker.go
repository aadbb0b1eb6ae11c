package main

import (
	"context"
	"errors"

	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/queue"
	"github.com/desertthunder/songmigrate/internal/server"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// localQueueSize bounds the in-process queue used by serve --local-worker.
const localQueueSize = 64

// engineFactory builds engines for queued jobs. The report sink and client
// factory are resolved up front because workers call it concurrently.
func (r *Runner) engineFactory(ctx context.Context, store progress.Store) (queue.EngineFactoryFunc, error) {
	sink, err := r.reportSink(ctx)
	if err != nil {
		return nil, err
	}
	r.factory()

	return func(ctx context.Context, sessionID string) (queue.Runner, error) {
		engine, err := r.newEngine(ctx, sessionID, store, sink, nil)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}, nil
}

// Worker consumes transfer jobs from RabbitMQ until interrupted.
func (r *Runner) Worker(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore(ctx, true)
	if err != nil {
		return err
	}
	runs, err := r.openRuns()
	if err != nil {
		return err
	}
	factory, err := r.engineFactory(ctx, store)
	if err != nil {
		return err
	}

	broker, err := queue.DialAMQP(r.config.AMQP, r.logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	workers := r.config.AMQP.Workers
	if cmd.IsSet("workers") {
		workers = cmd.Int("workers")
	}

	w := queue.NewWorker(broker, factory, queue.WorkerOpts{
		Workers: workers,
		Store:   store,
		Runs:    runs,
		Logger:  r.logger,
	})
	return w.Run(ctx)
}

// Serve runs the HTTP API. Transfers are published to RabbitMQ, or with
// --local-worker handed to a worker pool in this process.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore(ctx, true)
	if err != nil {
		return err
	}
	runs, err := r.openRuns()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	engines := func(ctx context.Context, sessionID string) (server.SessionEngine, error) {
		engine, err := r.newEngine(ctx, sessionID, store, nil, nil)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}

	g, ctx := errgroup.WithContext(ctx)

	var publisher queue.Publisher
	if cmd.Bool("local-worker") {
		factory, err := r.engineFactory(ctx, store)
		if err != nil {
			return err
		}
		local := queue.NewLocalBroker(localQueueSize)
		defer local.Close()

		w := queue.NewWorker(local, factory, queue.WorkerOpts{
			Workers: r.config.AMQP.Workers,
			Store:   store,
			Runs:    runs,
			Logger:  r.logger,
		})
		g.Go(func() error { return w.Run(ctx) })
		publisher = local
	} else {
		broker, err := queue.DialAMQP(r.config.AMQP, r.logger)
		if err != nil {
			return err
		}
		defer broker.Close()
		publisher = broker
	}

	srv := server.New(server.Options{
		Engines:  engines,
		Jobs:     queue.NewDispatcher(publisher, store, r.logger),
		Runs:     runs,
		Logger:   r.logger,
		Defaults: r.defaultOptions(),
	})

	r.logger.Info("starting server", "addr", addr, "local_worker", cmd.Bool("local-worker"))
	g.Go(func() error { return srv.Run(ctx, addr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
