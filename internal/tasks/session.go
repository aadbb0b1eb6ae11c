package tasks

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// maxRunningPercent keeps progress below 100 until the run is finalized.
const maxRunningPercent = 99.99

// transferSession holds the mutable state of a single run. It is owned by one
// goroutine and discarded when the run ends.
type transferSession struct {
	id        string
	logger    *log.Logger
	total     int
	success   int
	failed    int
	skipped   int
	processed int
	expected  int
	details   []string
	outcomes  []models.PlaylistOutcome
	playlists map[string]string
}

func newTransferSession(id string, logger *log.Logger, selected []models.Playlist) *transferSession {
	expected := 0
	for _, pl := range selected {
		expected += max(pl.TrackCount, 0)
	}
	return &transferSession{
		id:        id,
		logger:    logger,
		expected:  expected,
		playlists: make(map[string]string),
	}
}

// fetched replaces the snapshot count of pl with the number of tracks actually returned.
func (s *transferSession) fetched(pl models.Playlist, n int) {
	s.expected += n - max(pl.TrackCount, 0)
	s.total += n
}

func (s *transferSession) percent() float64 {
	if s.expected <= 0 {
		return 0
	}
	return min(float64(s.processed)/float64(s.expected)*100, maxRunningPercent)
}

func (s *transferSession) cachedPlaylist(name string) (string, bool) {
	id, ok := s.playlists[shared.NormalizeName(name)]
	return id, ok
}

func (s *transferSession) cachePlaylist(name, id string) {
	s.playlists[shared.NormalizeName(name)] = id
}

func (s *transferSession) infof(format string, args ...any) {
	msg := s.record(format, args...)
	s.logger.Info(msg)
}

func (s *transferSession) warnf(format string, args ...any) {
	msg := s.record(format, args...)
	s.logger.Warn(msg)
}

func (s *transferSession) errorf(format string, args ...any) {
	msg := s.record(format, args...)
	s.logger.Error(msg)
}

func (s *transferSession) record(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	s.details = append(s.details, msg)
	return msg
}

func (s *transferSession) report(status models.Status) *models.TransferReport {
	return &models.TransferReport{
		ID:        shared.GenerateID(),
		SessionID: s.id,
		Timestamp: time.Now().UTC(),
		Status:    status,
		Summary:   models.NewSummary(s.total, s.success, s.failed, s.skipped),
		Playlists: append([]models.PlaylistOutcome(nil), s.outcomes...),
		Details:   append([]string(nil), s.details...),
	}
}
