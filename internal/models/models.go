package models

import "strings"

// LikedSongsID is the reserved playlist id for a user's liked songs.
const LikedSongsID = "liked_songs"

// Track is a song as listed by the source catalog.
type Track struct {
	Title        string            `json:"title"`
	Artists      []string          `json:"artists"`
	Album        string            `json:"album,omitempty"`
	SourceID     string            `json:"source_id,omitempty"`
	DurationMs   int               `json:"duration_ms,omitempty"`
	ExternalRefs map[string]string `json:"external_refs,omitempty"`
}

// ArtistLine joins the artists in display order.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// PrimaryArtist returns the first listed artist, if any.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Playlist is a snapshot of a source playlist's metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	Owner       string `json:"owner,omitempty"`
}

// IsLikedSongs reports whether p is the liked songs pseudo-playlist.
func (p Playlist) IsLikedSongs() bool {
	return p.ID == LikedSongsID
}

// LikedSongsPlaylist builds the pseudo-playlist listed ahead of regular playlists.
func LikedSongsPlaylist(count int) Playlist {
	return Playlist{
		ID:          LikedSongsID,
		Name:        "Liked Songs",
		Description: "Your liked songs from Spotify",
		TrackCount:  count,
		Public:      false,
		Owner:       "Spotify",
	}
}

// MatchCandidate is a destination catalog search result.
type MatchCandidate struct {
	DestinationID string `json:"destination_id"`
	Title         string `json:"title"`
	PrimaryArtist string `json:"primary_artist"`
}
