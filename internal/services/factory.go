package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/shared"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateSessionID rejects ids that cannot safely name a credentials file.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: session id %q", shared.ErrInvalidArgument, id)
	}
	return nil
}

// ClientFactory builds a fresh source/destination pair for each session.
//
// Spotify tokens are read from <tokens_dir>/<session>.json. YouTube Music uses
// <headers_dir>/headers<session>.json; the Data API uses <tokens_dir>/youtube-<session>.json
// or, lacking it, the configured API key (search only).
type ClientFactory struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
}

// NewClientFactory creates a factory; httpClient is used for the YouTube Music proxy.
func NewClientFactory(config *shared.Config, httpClient *http.Client, logger *log.Logger) *ClientFactory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ClientFactory{config: config, httpClient: httpClient, logger: logger}
}

// Source returns a Spotify client authorized with the session's token.
func (f *ClientFactory) Source(ctx context.Context, sessionID string) (SourceCatalog, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	tok, err := readToken(filepath.Join(f.config.Credentials.Spotify.TokensDir, sessionID+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: spotify token for session %s: %v", shared.ErrMissingCredentials, sessionID, err)
	}

	auth := NewSpotifyAuthenticator(f.config.Credentials.Spotify)
	return NewSpotifySource(auth.Client(ctx, tok)), nil
}

// Destination returns the configured destination client for the session.
func (f *ClientFactory) Destination(ctx context.Context, sessionID string) (DestinationCatalog, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	yt := f.config.Credentials.YouTube
	switch strings.ToLower(f.config.Destination.Kind) {
	case shared.DestinationYouTube:
		var opts []option.ClientOption
		path := filepath.Join(f.config.Credentials.Spotify.TokensDir, "youtube-"+sessionID+".json")
		if tok, err := readToken(path); err == nil {
			opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
		} else if yt.APIKey != "" {
			f.logger.Warn("no youtube token for session, falling back to API key", "session", sessionID)
			opts = append(opts, option.WithAPIKey(yt.APIKey))
		} else {
			return nil, fmt.Errorf("%w: youtube token for session %s: %v", shared.ErrMissingCredentials, sessionID, err)
		}
		return NewYouTubeDestination(ctx, opts...)
	default:
		headers := filepath.Join(yt.HeadersDir, "headers"+sessionID+".json")
		return NewYTMusicDestination(yt.ProxyURL, headers, f.httpClient), nil
	}
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s has no tokens", path)
	}
	return &tok, nil
}
