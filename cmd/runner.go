package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/matching"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/reports"
	"github.com/desertthunder/songmigrate/internal/repositories"
	"github.com/desertthunder/songmigrate/internal/resolver"
	"github.com/desertthunder/songmigrate/internal/services"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/desertthunder/songmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Clients builds the per-session catalog pair. [services.ClientFactory] is the production implementation.
type Clients interface {
	Source(ctx context.Context, sessionID string) (services.SourceCatalog, error)
	Destination(ctx context.Context, sessionID string) (services.DestinationCatalog, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The progress store, database and report sinks are opened on first use so
// commands that do not need them run without Redis or SQLite.
type Runner struct {
	config     *shared.Config
	configPath string
	clients    Clients
	store      progress.Store
	runs       *repositories.TransferRepository
	sink       reports.Sink
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	closers    []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Clients    Clients
	Store      progress.Store
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: "config.toml",
		clients:    opts.Clients,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if opts.DB != nil {
		r.runs = repositories.NewTransferRepository(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playlistsCommand, transferCommand, tuiCommand, statusCommand, cancelCommand,
		watchCommand, workerCommand, serveCommand, reportsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration file, applies environment overrides and validates the result.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	config, err := r.loadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}

	if err := config.ApplyEnv(cmd.String("env-file")); err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}

	r.config = config
	return ctx, nil
}

func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return shared.DefaultConfig(), nil
	}
	return shared.LoadConfig(path)
}

// SetLogger replaces the logger used by the runner and everything it creates afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the connections opened by the runner, newest first.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runner) factory() Clients {
	if r.clients == nil {
		r.clients = services.NewClientFactory(r.config, r.httpClient, r.logger)
	}
	return r.clients
}

// openStore returns the shared progress store.
//
// Commands that coordinate with other processes pass required=true and fail
// when Redis is unreachable. Local runs fall back to an in-memory store.
func (r *Runner) openStore(ctx context.Context, required bool) (progress.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	url := r.config.Redis.URL
	if url == "" {
		if required {
			return nil, fmt.Errorf("%w: redis.url is required for this command", shared.ErrMissingConfig)
		}
		r.store = progress.NewMemoryStore()
		return r.store, nil
	}

	client, err := progress.NewRedisClient(url)
	if err != nil {
		return nil, err
	}

	store := progress.NewRedisStore(client, r.config.Redis.KeyPrefix, r.config.Redis.TTL.Duration)
	if err := store.Ping(ctx); err != nil {
		client.Close()
		if required {
			return nil, fmt.Errorf("%w: redis at %s: %v", shared.ErrServiceUnavailable, url, err)
		}
		r.logger.Warn("redis unavailable, progress is visible to this process only", "error", err)
		r.store = progress.NewMemoryStore()
		return r.store, nil
	}

	r.closers = append(r.closers, client)
	r.store = store
	return store, nil
}

// openRuns opens and migrates the run database.
func (r *Runner) openRuns() (*repositories.TransferRepository, error) {
	if r.runs != nil {
		return r.runs, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.closers = append(r.closers, db)
	r.runs = repositories.NewTransferRepository(db)
	return r.runs, nil
}

// reportSink fans reports out to the reports directory, the run database and,
// when enabled and reachable, the MinIO bucket.
func (r *Runner) reportSink(ctx context.Context) (reports.Sink, error) {
	if r.sink != nil {
		return r.sink, nil
	}

	files, err := reports.NewFileSink(r.config.Reports.Dir)
	if err != nil {
		return nil, err
	}
	runs, err := r.openRuns()
	if err != nil {
		return nil, err
	}
	sinks := []reports.Sink{files, runs}

	if cfg := r.config.Minio; cfg.Enabled {
		if bucket, err := r.minioSink(ctx, cfg); err != nil {
			r.logger.Warn("minio disabled for this run", "endpoint", cfg.Endpoint, "error", err)
		} else {
			sinks = append(sinks, bucket)
		}
	}

	r.sink = reports.Multi(sinks...)
	return r.sink, nil
}

func (r *Runner) minioSink(ctx context.Context, cfg shared.MinioConfig) (*reports.MinioSink, error) {
	client, err := reports.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	sink := reports.NewMinioSink(client, cfg.Bucket)
	if err := sink.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func (r *Runner) titleResolver() resolver.Resolver {
	cfg := r.config.Resolver
	if !cfg.Enabled || cfg.OllamaURL == "" {
		return resolver.Disabled{}
	}
	return resolver.NewOllamaResolver(cfg.OllamaURL, cfg.Model, cfg.Timeout.Duration)
}

func (r *Runner) matchingOptions() matching.Options {
	m := r.config.Matching
	return matching.Options{
		PrimaryThreshold: m.PrimaryThreshold,
		AIThreshold:      m.AIThreshold,
		ResultLimit:      m.ResultLimit,
		CallTimeout:      r.config.Transfer.CallTimeout.Duration,
	}
}

// newEngine builds a transfer engine for sessionID. updates may be nil.
func (r *Runner) newEngine(ctx context.Context, sessionID string, store progress.Store, sink reports.Sink, updates chan<- tasks.ProgressUpdate) (*tasks.TransferEngine, error) {
	clients := r.factory()

	source, err := clients.Source(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dest, err := clients.Destination(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return tasks.NewTransferEngine(sessionID, tasks.EngineOpts{
		Source:      source,
		Destination: dest,
		Resolver:    r.titleResolver(),
		Store:       store,
		Sink:        sink,
		Logger:      r.logger,
		Matching:    r.matchingOptions(),
		TrackDelay:  r.config.Transfer.TrackDelay.Duration,
		CallTimeout: r.config.Transfer.CallTimeout.Duration,
		Progress:    updates,
	})
}

// defaultOptions returns the transfer options configured under [transfer].
func (r *Runner) defaultOptions() models.TransferOptions {
	t := r.config.Transfer
	return models.TransferOptions{
		CreateNewPlaylists: t.CreateNewPlaylists,
		OverwriteExisting:  t.OverwriteExisting,
		Privacy:            models.Privacy(t.Privacy),
	}
}

// transferOptions applies --create, --overwrite and --privacy on top of [Runner.defaultOptions].
func (r *Runner) transferOptions(cmd *cli.Command) (models.TransferOptions, error) {
	opts := r.defaultOptions()
	if cmd.IsSet("create") {
		opts.CreateNewPlaylists = cmd.Bool("create")
	}
	if cmd.IsSet("overwrite") {
		opts.OverwriteExisting = cmd.Bool("overwrite")
	}
	if cmd.IsSet("privacy") {
		opts.Privacy = models.Privacy(cmd.String("privacy"))
	}

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return opts, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
