// YouTube Data API [DestinationCatalog] implementation
//
// Used when no ytmusicapi proxy is available. Searches are restricted to the
// Music video category and likes map to video ratings.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubeMusicCategory = "10"
	youtubePageSize      = 50
	topicSuffix          = " - Topic"
)

var errStopPaging = errors.New("stop paging")

// YouTubeDestination writes to a channel's library through the YouTube Data API.
type YouTubeDestination struct {
	svc *youtube.Service
}

// NewYouTubeDestination builds the API client; opts carry credentials (token source or API key).
func NewYouTubeDestination(ctx context.Context, opts ...option.ClientOption) (*YouTubeDestination, error) {
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: youtube: %v", shared.ErrServiceUnavailable, err)
	}
	return &YouTubeDestination{svc: svc}, nil
}

// Name returns the service name.
func (y *YouTubeDestination) Name() string {
	return "YouTube"
}

// Authenticate requires a token that can see the user's own channel.
func (y *YouTubeDestination) Authenticate(ctx context.Context) error {
	resp, err := y.svc.Channels.List([]string{"id"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return wrapTransport("youtube", "channels", err)
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("%w: youtube account has no channel", shared.ErrNotAuthenticated)
	}
	return nil
}

// Search lists music-category videos for query.
func (y *YouTubeDestination) Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	resp, err := y.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoCategoryId(youtubeMusicCategory).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapTransport("youtube", "search", err)
	}

	candidates := make([]models.MatchCandidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		c := models.MatchCandidate{}
		if item.Id != nil {
			c.DestinationID = item.Id.VideoId
		}
		if item.Snippet != nil {
			c.Title = item.Snippet.Title
			c.PrimaryArtist = strings.TrimSuffix(item.Snippet.ChannelTitle, topicSuffix)
		}
		candidates = append(candidates, c)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// FindPlaylistByName pages through the user's playlists for a case-insensitive title match.
func (y *YouTubeDestination) FindPlaylistByName(ctx context.Context, name string) (string, bool, error) {
	want := shared.NormalizeName(name)
	call := y.svc.Playlists.List([]string{"snippet"}).Mine(true).MaxResults(youtubePageSize)

	var found string
	err := call.Pages(ctx, func(resp *youtube.PlaylistListResponse) error {
		for _, p := range resp.Items {
			if p.Snippet != nil && shared.NormalizeName(p.Snippet.Title) == want {
				found = p.Id
				return errStopPaging
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return "", false, wrapTransport("youtube", "playlists", err)
	}
	return found, found != "", nil
}

// CreatePlaylist inserts a playlist with the given privacy status.
func (y *YouTubeDestination) CreatePlaylist(ctx context.Context, name, description string, privacy models.Privacy) (string, error) {
	p := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: name, Description: description},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: strings.ToLower(string(privacy))},
	}
	created, err := y.svc.Playlists.Insert([]string{"snippet", "status"}, p).Context(ctx).Do()
	if err != nil {
		return "", wrapTransport("youtube", "create playlist", err)
	}
	return created.Id, nil
}

// AddTrack inserts a playlist item for the video.
func (y *YouTubeDestination) AddTrack(ctx context.Context, playlistID, trackID string) error {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: trackID},
		},
	}
	if _, err := y.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
		return wrapTransport("youtube", "add playlist item", err)
	}
	return nil
}

// LikeTrack rates the video "like".
func (y *YouTubeDestination) LikeTrack(ctx context.Context, trackID string) error {
	if err := y.svc.Videos.Rate(trackID, "like").Context(ctx).Do(); err != nil {
		return wrapTransport("youtube", "rate video", err)
	}
	return nil
}
