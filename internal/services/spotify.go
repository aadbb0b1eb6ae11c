// Spotify [SourceCatalog] implementation backed by github.com/zmb3/spotify/v2
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

const (
	spotifyPlaylistPageSize = 50
	spotifyTrackPageSize    = 100
)

var spotifyScopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeUserLibraryRead,
}

// NewSpotifyAuthenticator builds the OAuth2 authenticator with the scopes needed to read a library.
func NewSpotifyAuthenticator(cfg shared.SpotifyConfig) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(spotifyScopes...),
	)
}

// SpotifySource reads one user's library. The http.Client carries the session's OAuth token.
type SpotifySource struct {
	client *spotify.Client
	userID string
}

// NewSpotifySource wraps an authorized client; opts are passed to [spotify.New].
func NewSpotifySource(httpClient *http.Client, opts ...spotify.ClientOption) *SpotifySource {
	return &SpotifySource{client: spotify.New(httpClient, opts...)}
}

// Name returns the service name.
func (s *SpotifySource) Name() string {
	return "Spotify"
}

// Authenticate fetches the current user profile, which fails for missing or revoked tokens.
func (s *SpotifySource) Authenticate(ctx context.Context) error {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return wrapTransport("spotify", "current user", err)
	}
	if user.ID == "" {
		return fmt.Errorf("%w: spotify returned an empty user id", shared.ErrNotAuthenticated)
	}
	s.userID = user.ID
	return nil
}

// ListPlaylists returns the liked songs pseudo-playlist followed by playlists the user owns.
func (s *SpotifySource) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if s.userID == "" {
		if err := s.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	saved, err := s.client.CurrentUsersTracks(ctx, spotify.Limit(1))
	if err != nil {
		return nil, wrapTransport("spotify", "saved tracks", err)
	}
	playlists := []models.Playlist{models.LikedSongsPlaylist(int(saved.Total))}

	page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(spotifyPlaylistPageSize))
	if err != nil {
		return nil, wrapTransport("spotify", "playlists", err)
	}

	for {
		for _, p := range page.Playlists {
			if p.Owner.ID != s.userID {
				continue
			}
			playlists = append(playlists, models.Playlist{
				ID:          string(p.ID),
				Name:        p.Name,
				Description: p.Description,
				TrackCount:  int(p.Tracks.Total),
				Public:      p.IsPublic,
				Owner:       p.Owner.DisplayName,
			})
		}

		err := s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrapTransport("spotify", "playlists", err)
		}
	}
	return playlists, nil
}

// ListTracks returns the tracks of a playlist, or the saved tracks for [models.LikedSongsID].
//
// Local files, podcast episodes, and tracks without a name are skipped.
func (s *SpotifySource) ListTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if playlistID == models.LikedSongsID {
		return s.savedTracks(ctx)
	}

	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(spotifyTrackPageSize))
	if err != nil {
		return nil, wrapTransport("spotify", "playlist items", err)
	}

	var tracks []models.Track
	for {
		for _, item := range page.Items {
			if item.Track.Track == nil {
				continue
			}
			if t, ok := convertSpotifyTrack(item.Track.Track); ok {
				tracks = append(tracks, t)
			}
		}

		err := s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrapTransport("spotify", "playlist items", err)
		}
	}
	return tracks, nil
}

func (s *SpotifySource) savedTracks(ctx context.Context) ([]models.Track, error) {
	page, err := s.client.CurrentUsersTracks(ctx, spotify.Limit(spotifyPlaylistPageSize))
	if err != nil {
		return nil, wrapTransport("spotify", "saved tracks", err)
	}

	var tracks []models.Track
	for {
		for i := range page.Tracks {
			if t, ok := convertSpotifyTrack(&page.Tracks[i].FullTrack); ok {
				tracks = append(tracks, t)
			}
		}

		err := s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrapTransport("spotify", "saved tracks", err)
		}
	}
	return tracks, nil
}

func convertSpotifyTrack(ft *spotify.FullTrack) (models.Track, bool) {
	if strings.TrimSpace(ft.Name) == "" {
		return models.Track{}, false
	}

	artists := make([]string, 0, len(ft.Artists))
	for _, a := range ft.Artists {
		artists = append(artists, a.Name)
	}

	refs := make(map[string]string, len(ft.ExternalURLs)+1)
	for k, v := range ft.ExternalURLs {
		refs[k] = v
	}
	if ft.PreviewURL != "" {
		refs["preview_url"] = ft.PreviewURL
	}

	return models.Track{
		Title:        ft.Name,
		Artists:      artists,
		Album:        ft.Album.Name,
		SourceID:     string(ft.ID),
		DurationMs:   int(ft.Duration),
		ExternalRefs: refs,
	}, true
}
