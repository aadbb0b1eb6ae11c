package matching

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/models"
)

// Mode selects the acceptance threshold for a resolution attempt.
type Mode int

const (
	// Primary queries with the source title and requires a close match.
	Primary Mode = iota
	// AIAssisted queries with a suggested title and accepts a looser match.
	AIAssisted
)

func (m Mode) String() string {
	switch m {
	case Primary:
		return "primary"
	case AIAssisted:
		return "ai_assisted"
	default:
		return "unknown"
	}
}

// Searcher is the part of the destination catalog the matcher needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error)
}

// Options configures thresholds, the result limit, and the per-search timeout.
type Options struct {
	PrimaryThreshold float64
	AIThreshold      float64
	ResultLimit      int
	CallTimeout      time.Duration
}

// DefaultOptions returns 0.8 / 0.4 thresholds, five results, and a 30s search timeout.
func DefaultOptions() Options {
	return Options{PrimaryThreshold: 0.8, AIThreshold: 0.4, ResultLimit: 5, CallTimeout: 30 * time.Second}
}

// Matcher resolves source tracks against a destination [Searcher].
type Matcher struct {
	searcher Searcher
	opts     Options
	logger   *log.Logger
}

// NewMatcher fills zero-valued options from [DefaultOptions].
func NewMatcher(searcher Searcher, opts Options, logger *log.Logger) *Matcher {
	def := DefaultOptions()
	if opts.PrimaryThreshold <= 0 {
		opts.PrimaryThreshold = def.PrimaryThreshold
	}
	if opts.AIThreshold <= 0 {
		opts.AIThreshold = def.AIThreshold
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = def.ResultLimit
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = def.CallTimeout
	}
	return &Matcher{searcher: searcher, opts: opts, logger: logger}
}

// Threshold returns the minimum accepted score for mode.
func (m *Matcher) Threshold(mode Mode) float64 {
	if mode == AIAssisted {
		return m.opts.AIThreshold
	}
	return m.opts.PrimaryThreshold
}

// Resolve searches with the track's own title.
func (m *Matcher) Resolve(ctx context.Context, mode Mode, track models.Track) (*models.MatchCandidate, float64) {
	return m.ResolveAs(ctx, mode, track, track.Title)
}

// ResolveAs searches with queryTitle in place of the track title but always scores
// against the original track. It returns (nil, 0) when nothing clears the threshold
// or the search fails.
func (m *Matcher) ResolveAs(ctx context.Context, mode Mode, track models.Track, queryTitle string) (*models.MatchCandidate, float64) {
	query := BuildQuery(queryTitle, track)

	ctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	candidates, err := m.searcher.Search(ctx, query, m.opts.ResultLimit)
	if err != nil {
		m.logger.Warn("search failed", "query", query, "mode", mode, "error", err)
		return nil, 0
	}

	artist := track.ArtistLine()
	var best *models.MatchCandidate
	bestScore := 0.0
	for i := range candidates {
		c := candidates[i]
		if c.DestinationID == "" {
			continue
		}
		if s := Score(track.Title, artist, c.Title, c.PrimaryArtist); best == nil || s > bestScore {
			best, bestScore = &c, s
		}
	}

	if best == nil || bestScore < m.Threshold(mode) {
		m.logger.Debug("no acceptable candidate", "query", query, "mode", mode, "best", bestScore)
		return nil, 0
	}
	return best, bestScore
}

// BuildQuery joins title, the artist line, and the album (when present).
func BuildQuery(title string, track models.Track) string {
	parts := []string{strings.TrimSpace(title)}
	if a := track.ArtistLine(); a != "" {
		parts = append(parts, a)
	}
	if track.Album != "" {
		parts = append(parts, track.Album)
	}
	return strings.Join(parts, " ")
}
