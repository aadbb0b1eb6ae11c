package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/matching"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/reports"
	"github.com/desertthunder/songmigrate/internal/resolver"
	"github.com/desertthunder/songmigrate/internal/services"
	"github.com/desertthunder/songmigrate/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultTrackDelay  = 100 * time.Millisecond
	DefaultCallTimeout = 30 * time.Second

	authSuccessMessage = "Successfully authenticated with both services"
)

// EngineOpts holds the collaborators of a [TransferEngine].
//
// Source and Destination are required. A nil Store falls back to an in-memory
// store, a nil Resolver disables the AI fallback, and a nil Sink keeps reports
// in memory only.
type EngineOpts struct {
	Source      services.SourceCatalog
	Destination services.DestinationCatalog
	Resolver    resolver.Resolver
	Store       progress.Store
	Sink        reports.Sink
	Logger      *log.Logger
	Matching    matching.Options
	TrackDelay  time.Duration
	CallTimeout time.Duration
	Progress    chan<- ProgressUpdate
}

// TransferEngine migrates the playlists of one session from the source to the destination catalog.
type TransferEngine struct {
	sessionID   string
	source      services.SourceCatalog
	dest        services.DestinationCatalog
	resolver    resolver.Resolver
	store       progress.Store
	sink        reports.Sink
	matcher     *matching.Matcher
	logger      *log.Logger
	limiter     *rate.Limiter
	callTimeout time.Duration
	progress    chan<- ProgressUpdate
}

// NewTransferEngine creates an engine bound to sessionID and the given client pair.
func NewTransferEngine(sessionID string, opts EngineOpts) (*TransferEngine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: source catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Destination == nil {
		return nil, fmt.Errorf("%w: destination catalog not initialized", shared.ErrServiceUnavailable)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	logger = shared.WithLogger(logger, "session", sessionID)

	if opts.Resolver == nil {
		opts.Resolver = resolver.Disabled{}
	}
	if opts.Store == nil {
		opts.Store = progress.NewMemoryStore()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Matching.CallTimeout <= 0 {
		opts.Matching.CallTimeout = opts.CallTimeout
	}

	limit := rate.Inf
	if opts.TrackDelay > 0 {
		limit = rate.Every(opts.TrackDelay)
	}

	return &TransferEngine{
		sessionID:   sessionID,
		source:      opts.Source,
		dest:        opts.Destination,
		resolver:    opts.Resolver,
		store:       opts.Store,
		sink:        opts.Sink,
		matcher:     matching.NewMatcher(opts.Destination, opts.Matching, logger),
		logger:      logger,
		limiter:     rate.NewLimiter(limit, 1),
		callTimeout: opts.CallTimeout,
		progress:    opts.Progress,
	}, nil
}

// SessionID returns the session the engine is bound to.
func (e *TransferEngine) SessionID() string {
	return e.sessionID
}

// sendProgress sends a progress update through the channel without blocking.
func (e *TransferEngine) sendProgress(update ProgressUpdate) {
	if e.progress == nil {
		return
	}
	select {
	case e.progress <- update:
	default:
	}
}

// Authenticate checks the source credentials first and the destination second.
//
// Failures wrap [shared.ErrAuthFailed] and name the failing service.
func (e *TransferEngine) Authenticate(ctx context.Context) (string, error) {
	if err := e.authenticate(ctx, e.source.Authenticate); err != nil {
		return "", fmt.Errorf("%s: %w: %w", e.source.Name(), shared.ErrAuthFailed, err)
	}
	if err := e.authenticate(ctx, e.dest.Authenticate); err != nil {
		return "", fmt.Errorf("%s: %w: %w", e.dest.Name(), shared.ErrAuthFailed, err)
	}
	e.sendProgress(authenticateUpdate(authSuccessMessage))
	return authSuccessMessage, nil
}

func (e *TransferEngine) authenticate(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return fn(ctx)
}

// ListPlaylists authenticates and returns the source playlists, liked songs first.
func (e *TransferEngine) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if _, err := e.Authenticate(ctx); err != nil {
		return nil, err
	}
	return e.listPlaylists(ctx)
}

func (e *TransferEngine) listPlaylists(ctx context.Context) ([]models.Playlist, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	playlists, err := e.source.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s playlists: %w", e.source.Name(), err)
	}
	e.sendProgress(fetchPlaylistsUpdate(len(playlists)))
	return playlists, nil
}

// Run transfers playlists in the given order and returns the final report.
//
// A cancelled run returns the partial report together with an error wrapping
// [shared.ErrCancelled].
func (e *TransferEngine) Run(ctx context.Context, playlists []models.Playlist, opts models.TransferOptions) (*models.TransferReport, error) {
	if err := e.begin(ctx, &opts); err != nil {
		return nil, err
	}
	return e.run(ctx, playlists, opts)
}

// RunSelected resolves ids against the source listing, keeping the caller's order,
// and runs the transfer. Unknown ids are logged and skipped.
func (e *TransferEngine) RunSelected(ctx context.Context, ids []string, opts models.TransferOptions) (*models.TransferReport, error) {
	if err := e.begin(ctx, &opts); err != nil {
		return nil, err
	}

	all, err := e.listPlaylists(ctx)
	if err != nil {
		e.setStatus(ctx, models.StatusFailed)
		return nil, err
	}

	byID := make(map[string]models.Playlist, len(all))
	for _, pl := range all {
		byID[pl.ID] = pl
	}

	seen := make(map[string]bool, len(ids))
	selected := make([]models.Playlist, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		pl, ok := byID[id]
		if !ok {
			e.logger.Warn("unknown playlist id, skipping", "playlist", id)
			continue
		}
		selected = append(selected, pl)
	}
	return e.run(ctx, selected, opts)
}

// begin validates options and authenticates both services.
func (e *TransferEngine) begin(ctx context.Context, opts *models.TransferOptions) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	e.sendProgress(authenticateUpdate("Authenticating..."))
	if _, err := e.Authenticate(ctx); err != nil {
		e.logger.Error("authentication failed", "error", err)
		e.setStatus(ctx, models.StatusFailed)
		return err
	}

	// A flag set while the job was still queued belongs to this run.
	if st, err := e.store.Status(ctx, e.sessionID); err != nil || st != models.StatusPending {
		e.clearCancel(ctx)
	}
	return nil
}

func (e *TransferEngine) run(ctx context.Context, playlists []models.Playlist, opts models.TransferOptions) (*models.TransferReport, error) {
	sess := newTransferSession(e.sessionID, e.logger, playlists)
	e.setStatus(ctx, models.StatusRunning)
	e.setProgress(ctx, 0)

	e.logger.Info("starting transfer", "playlists", len(playlists), "estimate", shared.EstimateTransferTime(sess.expected))

	for _, pl := range playlists {
		if e.cancelled(ctx) {
			return e.abort(ctx, sess)
		}
		if err := e.transferPlaylist(ctx, sess, pl, opts); err != nil {
			return e.abort(ctx, sess)
		}
	}
	return e.finish(ctx, sess)
}

// errStop signals that a cancellation was observed inside a playlist.
var errStop = fmt.Errorf("%w: stop requested", shared.ErrCancelled)

func (e *TransferEngine) transferPlaylist(ctx context.Context, sess *transferSession, pl models.Playlist, opts models.TransferOptions) error {
	e.sendProgress(fetchTracksUpdate(pl))

	outcome := models.PlaylistOutcome{PlaylistID: pl.ID, Name: pl.Name}

	tracks, err := e.listTracks(ctx, pl.ID)
	if err != nil {
		sess.fetched(pl, 0)
		sess.errorf("Error transferring playlist %s: %v", pl.Name, err)
		outcome.State, outcome.Error = models.OutcomeFailed, err.Error()
		sess.outcomes = append(sess.outcomes, outcome)
		return nil
	}
	sess.fetched(pl, len(tracks))
	outcome.Tracks = len(tracks)

	if len(tracks) == 0 {
		sess.warnf("No tracks found in playlist: %s", pl.Name)
		outcome.State = models.OutcomeEmpty
		sess.outcomes = append(sess.outcomes, outcome)
		return nil
	}

	if pl.IsLikedSongs() {
		return e.transferTracks(ctx, sess, &outcome, tracks, likeAction(e.dest))
	}

	destID, state, err := e.resolvePlaylist(ctx, sess, pl, opts)
	if state != models.OutcomeTransferred {
		outcome.State = state
		if err != nil {
			outcome.Error = err.Error()
		}
		if state == models.OutcomeSkipped {
			sess.skipped += len(tracks)
		}
		sess.processed += len(tracks)
		sess.outcomes = append(sess.outcomes, outcome)
		e.sendProgress(resolvePlaylistUpdate(outcome, fmt.Sprintf("%s: %s", pl.Name, state)))
		e.setProgress(ctx, sess.percent())
		return nil
	}

	outcome.DestinationID = destID
	e.sendProgress(resolvePlaylistUpdate(outcome, fmt.Sprintf("Transferring %s (%d tracks)", pl.Name, len(tracks))))
	return e.transferTracks(ctx, sess, &outcome, tracks, addAction(e.dest, destID))
}

func (e *TransferEngine) listTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.source.ListTracks(ctx, playlistID)
}

// resolvePlaylist finds, reuses, or creates the destination playlist for pl.
// Ids resolved earlier in the run are reused without another lookup.
func (e *TransferEngine) resolvePlaylist(ctx context.Context, sess *transferSession, pl models.Playlist, opts models.TransferOptions) (string, models.OutcomeState, error) {
	if id, ok := sess.cachedPlaylist(pl.Name); ok {
		sess.infof("Using existing playlist: %s", pl.Name)
		return id, models.OutcomeTransferred, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	id, found, err := e.dest.FindPlaylistByName(lookupCtx, pl.Name)
	cancel()
	if err != nil {
		err = fmt.Errorf("%w: lookup %q: %w", shared.ErrPlaylistOperation, pl.Name, err)
		sess.errorf("Failed to look up playlist '%s': %v", pl.Name, err)
		return "", models.OutcomeFailed, err
	}

	switch {
	case found && !opts.OverwriteExisting:
		sess.warnf("Playlist '%s' already exists. Skipping.", pl.Name)
		return "", models.OutcomeSkipped, nil
	case found:
		sess.infof("Using existing playlist: %s", pl.Name)
	case !opts.CreateNewPlaylists:
		sess.warnf("Playlist '%s' does not exist and playlist creation is disabled. Skipping.", pl.Name)
		return "", models.OutcomeSkipped, nil
	default:
		id, err = e.createPlaylist(ctx, pl, opts.Privacy)
		if err != nil {
			sess.errorf("Failed to create playlist '%s': %v", pl.Name, err)
			return "", models.OutcomeFailed, err
		}
		sess.infof("Created playlist: %s", pl.Name)
	}

	sess.cachePlaylist(pl.Name, id)
	return id, models.OutcomeTransferred, nil
}

func (e *TransferEngine) createPlaylist(ctx context.Context, pl models.Playlist, privacy models.Privacy) (string, error) {
	if err := shared.ValidatePlaylistName(pl.Name); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrPlaylistOperation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	id, err := e.dest.CreatePlaylist(ctx, pl.Name, pl.Description, privacy)
	if err != nil {
		return "", fmt.Errorf("%w: create %q: %w", shared.ErrPlaylistOperation, pl.Name, err)
	}
	return id, nil
}

// trackAction describes what happens to a matched track: added to a playlist or liked.
type trackAction struct {
	phase    Phase
	fallback bool
	apply    func(ctx context.Context, trackID string) error
	verb     string
	failVerb string
	summary  func(name string, ok, failed int) string
}

func addAction(dest services.DestinationCatalog, playlistID string) trackAction {
	return trackAction{
		phase:    TransferTrack,
		fallback: true,
		apply: func(ctx context.Context, trackID string) error {
			return dest.AddTrack(ctx, playlistID, trackID)
		},
		verb:     "Added",
		failVerb: "Failed to add",
		summary: func(name string, ok, failed int) string {
			return fmt.Sprintf("Playlist '%s' transfer complete: %d successful, %d failed", name, ok, failed)
		},
	}
}

// likeAction searches liked songs with the primary pass only.
func likeAction(dest services.DestinationCatalog) trackAction {
	return trackAction{
		phase:    LikeTrack,
		apply:    dest.LikeTrack,
		verb:     "Liked",
		failVerb: "Failed to like",
		summary: func(_ string, ok, failed int) string {
			return fmt.Sprintf("Liked Songs transfer complete: %d successful, %d failed", ok, failed)
		},
	}
}

func (e *TransferEngine) transferTracks(ctx context.Context, sess *transferSession, outcome *models.PlaylistOutcome, tracks []models.Track, act trackAction) error {
	outcome.State = models.OutcomeTransferred
	defer func() { sess.outcomes = append(sess.outcomes, *outcome) }()

	for i, tr := range tracks {
		if e.cancelled(ctx) {
			return errStop
		}

		if e.transferTrack(ctx, sess, tr, act) {
			outcome.Added++
			sess.success++
		} else {
			outcome.Failed++
			sess.failed++
		}
		sess.processed++

		pct := sess.percent()
		e.setProgress(ctx, pct)
		e.sendProgress(trackUpdate(act.phase, sess.processed, sess.expected, pct,
			fmt.Sprintf("Processing track %d/%d: %s", i+1, len(tracks), tr.Title)))

		if err := e.limiter.Wait(ctx); err != nil {
			e.logger.Debug("throttle interrupted", "error", err)
		}
	}

	sess.infof("%s", act.summary(outcome.Name, outcome.Added, outcome.Failed))
	return nil
}

// transferTrack resolves and applies one track. Errors and panics count as a failure.
func (e *TransferEngine) transferTrack(ctx context.Context, sess *transferSession, tr models.Track, act trackAction) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			sess.errorf("Error processing %s: %v", tr.Title, r)
			ok = false
		}
	}()

	candidate, err := e.match(ctx, sess, tr, act.fallback)
	if err != nil {
		sess.warnf("Not found: %s by %s", tr.Title, tr.ArtistLine())
		e.logger.Debug("track unresolved", "error", err)
		return false
	}

	applyCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	if err := act.apply(applyCtx, candidate.DestinationID); err != nil {
		sess.errorf("%s: %s", act.failVerb, tr.Title)
		e.logger.Debug("destination write failed", "track", tr.Title, "destination_id", candidate.DestinationID, "error", err)
		return false
	}

	sess.infof("%s: %s by %s", act.verb, tr.Title, tr.ArtistLine())
	return true
}

// match runs the primary pass and, when allowed, the AI-assisted pass with a
// suggested title. A miss is returned as [shared.ErrTrackNotFound].
func (e *TransferEngine) match(ctx context.Context, sess *transferSession, tr models.Track, fallback bool) (*models.MatchCandidate, error) {
	if c, _ := e.matcher.Resolve(ctx, matching.Primary, tr); c != nil {
		return c, nil
	}
	if !fallback {
		return nil, fmt.Errorf("%w: %s (primary search)", shared.ErrTrackNotFound, tr.Title)
	}

	sess.infof("Initial search failed, trying AI fallback for: %s", tr.Title)

	suggestCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	title, err := e.resolver.SuggestCanonicalTitle(suggestCtx, tr.Title, tr.ArtistLine())
	cancel()
	if err != nil {
		e.logger.Warn("ai fallback failed", "track", tr.Title, "error", err)
		return nil, fmt.Errorf("%w: %s (ai fallback: %v)", shared.ErrTrackNotFound, tr.Title, err)
	}
	title = strings.TrimSpace(title)
	if title == "" || title == resolver.NoResult {
		return nil, fmt.Errorf("%w: %s (no suggestion)", shared.ErrTrackNotFound, tr.Title)
	}

	if c, _ := e.matcher.ResolveAs(ctx, matching.AIAssisted, tr, title); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s (suggested %q)", shared.ErrTrackNotFound, tr.Title, title)
}

func (e *TransferEngine) finish(ctx context.Context, sess *transferSession) (*models.TransferReport, error) {
	report := sess.report(models.StatusCompleted)
	bg := context.WithoutCancel(ctx)

	if e.sink != nil {
		if err := e.sink.Save(bg, report); err != nil {
			e.logger.Error("failed to save report", "report", report.ID, "error", err)
		}
	}

	e.setProgress(bg, 100)
	e.setStatus(bg, models.StatusCompleted)
	e.clearCancel(bg)

	s := report.Summary
	e.logger.Info("transfer complete", "total", s.TotalTracks, "successful", s.SuccessfulTransfers,
		"failed", s.FailedTransfers, "skipped", s.SkippedTracks, "rate", s.SuccessRate)
	e.sendProgress(completeUpdate(report))
	return report, nil
}

// abort records the cancellation and returns the partial report. Nothing is persisted.
func (e *TransferEngine) abort(ctx context.Context, sess *transferSession) (*models.TransferReport, error) {
	sess.warnf("Transfer cancelled by user")
	bg := context.WithoutCancel(ctx)

	e.setStatus(bg, models.StatusCancelled)
	e.setProgress(bg, 0)
	e.clearCancel(bg)
	e.sendProgress(cancelledUpdate(sess.processed, sess.expected))

	return sess.report(models.StatusCancelled), fmt.Errorf("%w: session %s", shared.ErrCancelled, e.sessionID)
}

// cancelled reports whether the context is done or a cancel was requested through the store.
// Store read failures count as not cancelled.
func (e *TransferEngine) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	requested, err := e.store.CancelRequested(ctx, e.sessionID)
	if err != nil {
		e.logger.Warn("failed to read cancel flag", "error", err)
		return false
	}
	return requested
}

func (e *TransferEngine) setStatus(ctx context.Context, status models.Status) {
	if err := e.store.SetStatus(ctx, e.sessionID, status); err != nil {
		e.logger.Warn("failed to write status", "status", status, "error", err)
	}
}

func (e *TransferEngine) setProgress(ctx context.Context, pct float64) {
	if err := e.store.SetProgress(ctx, e.sessionID, pct); err != nil {
		e.logger.Warn("failed to write progress", "progress", pct, "error", err)
	}
}

func (e *TransferEngine) clearCancel(ctx context.Context) {
	if err := e.store.ClearCancel(ctx, e.sessionID); err != nil {
		e.logger.Warn("failed to clear cancel flag", "error", err)
	}
}
