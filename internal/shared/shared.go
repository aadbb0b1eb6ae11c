// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// MaxPlaylistNameLength is the longest playlist title the destination accepts.
const MaxPlaylistNameLength = 150

// secondsPerTrack is the observed average cost of matching and adding one track.
const secondsPerTrack = 2.5

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] that appends to the file at path, creating parent directories.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// NormalizeTrackKey builds a case- and whitespace-insensitive "title|artist" key.
func NormalizeTrackKey(title, artist string) string {
	return normalize(title) + "|" + normalize(artist)
}

// NormalizeName lower-cases s and collapses runs of whitespace.
func NormalizeName(s string) string {
	return normalize(s)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ValidatePlaylistName reports whether name can be used as a destination playlist title.
func ValidatePlaylistName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: playlist name is empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(name); n > MaxPlaylistNameLength {
		return fmt.Errorf("%w: playlist name is %d characters, max %d", ErrInvalidInput, n, MaxPlaylistNameLength)
	}
	return nil
}

// EstimateTransferTime returns a rough wall-clock estimate for transferring n tracks.
func EstimateTransferTime(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(float64(n) * secondsPerTrack * float64(time.Second))
}
