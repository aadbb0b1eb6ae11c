// package services defines the catalog clients the transfer pipeline talks to
//
// Spotify (source), YouTube Music via proxy or the YouTube Data API (destination)
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// SourceCatalog lists a user's playlists and their tracks.
type SourceCatalog interface {
	// Name returns the display name of the service (e.g. "Spotify").
	Name() string

	// Authenticate verifies the session's credentials against the service.
	Authenticate(ctx context.Context) error

	// ListPlaylists returns the user's playlists with the liked songs pseudo-playlist first.
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)

	// ListTracks returns every track of a playlist in order, hiding pagination.
	ListTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// DestinationCatalog searches for tracks and writes playlists and likes.
type DestinationCatalog interface {
	// Name returns the display name of the service (e.g. "YouTube Music").
	Name() string

	// Authenticate verifies the session's credentials against the service.
	Authenticate(ctx context.Context) error

	// Search returns at most limit candidates for query, best ranked first.
	Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error)

	// CreatePlaylist creates a playlist and returns its id.
	CreatePlaylist(ctx context.Context, name, description string, privacy models.Privacy) (string, error)

	// FindPlaylistByName looks up a library playlist by case-insensitive title.
	FindPlaylistByName(ctx context.Context, name string) (id string, found bool, err error)

	// AddTrack appends a track to a playlist.
	AddTrack(ctx context.Context, playlistID, trackID string) error

	// LikeTrack marks a track as liked.
	LikeTrack(ctx context.Context, trackID string) error
}

// wrapTransport classifies err as a timeout or a generic request failure.
func wrapTransport(service, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrTimeout, service, op, err)
	}
	return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, service, op, err)
}
