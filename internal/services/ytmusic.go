// YouTube Music [DestinationCatalog] implementation
//
// Communicates with a FastAPI proxy wrapping the ytmusicapi Python library.
// The session's browser headers file is forwarded via the X-Auth-File header.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeSearchResult is one song returned by the proxy's search endpoint.
type YouTubeSearchResult struct {
	VideoID string          `json:"videoId"`
	Title   string          `json:"title"`
	Artists []YouTubeArtist `json:"artists"`
}

// YouTubeLibraryPlaylist is one entry of the user's playlist library.
type YouTubeLibraryPlaylist struct {
	PlaylistID string `json:"playlistId"`
	Title      string `json:"title"`
	Count      int    `json:"count"`
}

// YTMusicDestination talks to the ytmusicapi proxy on behalf of one session.
type YTMusicDestination struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYTMusicDestination creates a client bound to the headers file at authFile.
func NewYTMusicDestination(baseURL, authFile string, httpClient *http.Client) *YTMusicDestination {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YTMusicDestination{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authFile:   authFile,
		httpClient: httpClient,
	}
}

// Name returns the service name.
func (y *YTMusicDestination) Name() string {
	return "YouTube Music"
}

// Authenticate checks that the session's headers file exists and that the proxy accepts it.
func (y *YTMusicDestination) Authenticate(ctx context.Context) error {
	if y.authFile == "" {
		return fmt.Errorf("%w: no headers file configured", shared.ErrMissingCredentials)
	}
	if _, err := os.Stat(y.authFile); err != nil {
		return fmt.Errorf("%w: headers file %s: %v", shared.ErrMissingCredentials, y.authFile, err)
	}

	var sample []YouTubeLibraryPlaylist
	if err := y.doRequest(ctx, http.MethodGet, "/api/library/playlists?limit=1", nil, &sample); err != nil {
		return err
	}
	return nil
}

func (y *YTMusicDestination) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return wrapTransport("youtube music", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		kind := shared.ErrAPIRequest
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = shared.ErrNotAuthenticated
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube music (status %d): %s", kind, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube music: status %d", kind, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Search calls GET /api/search?q={query}&filter=songs&limit={limit}.
func (y *YTMusicDestination) Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", "songs")
	params.Set("limit", strconv.Itoa(limit))

	var results []YouTubeSearchResult
	if err := y.doRequest(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &results); err != nil {
		return nil, err
	}

	if len(results) > limit {
		results = results[:limit]
	}

	candidates := make([]models.MatchCandidate, 0, len(results))
	for _, r := range results {
		c := models.MatchCandidate{DestinationID: r.VideoID, Title: r.Title}
		if len(r.Artists) > 0 {
			c.PrimaryArtist = r.Artists[0].Name
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// FindPlaylistByName scans GET /api/library/playlists for a title match, ignoring case.
func (y *YTMusicDestination) FindPlaylistByName(ctx context.Context, name string) (string, bool, error) {
	var playlists []YouTubeLibraryPlaylist
	if err := y.doRequest(ctx, http.MethodGet, "/api/library/playlists", nil, &playlists); err != nil {
		return "", false, err
	}

	want := shared.NormalizeName(name)
	for _, p := range playlists {
		if shared.NormalizeName(p.Title) == want {
			return p.PlaylistID, true, nil
		}
	}
	return "", false, nil
}

// CreatePlaylist calls POST /api/playlists.
func (y *YTMusicDestination) CreatePlaylist(ctx context.Context, name, description string, privacy models.Privacy) (string, error) {
	req := struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		PrivacyStatus string `json:"privacy_status"`
	}{name, description, string(privacy)}

	var resp struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/api/playlists", req, &resp); err != nil {
		return "", err
	}
	if resp.PlaylistID == "" {
		return "", fmt.Errorf("%w: youtube music returned no playlist id", shared.ErrAPIRequest)
	}
	return resp.PlaylistID, nil
}

// AddTrack calls POST /api/playlists/{id}/items with a single video id.
func (y *YTMusicDestination) AddTrack(ctx context.Context, playlistID, trackID string) error {
	req := struct {
		VideoIDs []string `json:"video_ids"`
	}{[]string{trackID}}

	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistID))
	return y.doRequest(ctx, http.MethodPost, endpoint, req, nil)
}

// LikeTrack calls POST /api/songs/{id}/rating with a LIKE rating.
func (y *YTMusicDestination) LikeTrack(ctx context.Context, trackID string) error {
	req := struct {
		Rating string `json:"rating"`
	}{"LIKE"}

	endpoint := fmt.Sprintf("/api/songs/%s/rating", url.PathEscape(trackID))
	return y.doRequest(ctx, http.MethodPost, endpoint, req, nil)
}
