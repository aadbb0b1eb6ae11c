package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack(t *testing.T) {
	track := Track{Title: "Song", Artists: []string{"A", "B"}}
	assert.Equal(t, "A, B", track.ArtistLine())
	assert.Equal(t, "A", track.PrimaryArtist())
	assert.Equal(t, "", Track{}.PrimaryArtist())
}

func TestLikedSongsPlaylist(t *testing.T) {
	p := LikedSongsPlaylist(12)
	assert.True(t, p.IsLikedSongs())
	assert.Equal(t, "Liked Songs", p.Name)
	assert.Equal(t, 12, p.TrackCount)
	assert.False(t, Playlist{ID: "abc"}.IsLikedSongs())
}

func TestTransferOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o := DefaultTransferOptions()
		assert.True(t, o.CreateNewPlaylists)
		assert.False(t, o.OverwriteExisting)
		assert.Equal(t, PrivacyPrivate, o.Privacy)
	})

	t.Run("validate normalizes", func(t *testing.T) {
		o := TransferOptions{Privacy: "unlisted"}
		require.NoError(t, o.Validate())
		assert.Equal(t, PrivacyUnlisted, o.Privacy)

		empty := TransferOptions{}
		require.NoError(t, empty.Validate())
		assert.Equal(t, PrivacyPrivate, empty.Privacy)
	})

	t.Run("validate rejects unknown", func(t *testing.T) {
		o := TransferOptions{Privacy: "friends"}
		assert.Error(t, o.Validate())
	})

	t.Run("json accepts lower case privacy", func(t *testing.T) {
		var o TransferOptions
		require.NoError(t, json.Unmarshal([]byte(`{"overwrite_existing":true,"privacy_status":"public"}`), &o))
		assert.Equal(t, PrivacyPublic, o.Privacy)
		assert.True(t, o.OverwriteExisting)
	})
}

func TestStatus(t *testing.T) {
	tc := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tc {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
			parsed, err := ParseStatus(string(tt.status))
			require.NoError(t, err)
			assert.Equal(t, tt.status, parsed)
		})
	}

	_, err := ParseStatus("paused")
	assert.Error(t, err)
}

func TestNewSummary(t *testing.T) {
	tc := []struct {
		name                       string
		total, ok, failed, skipped int
		want                       float64
	}{
		{"two of three", 3, 2, 1, 0, 66.67},
		{"all", 4, 4, 0, 0, 100},
		{"empty run", 0, 0, 0, 0, 0},
		{"with skipped", 10, 5, 1, 4, 50},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummary(tt.total, tt.ok, tt.failed, tt.skipped)
			assert.Equal(t, tt.want, s.SuccessRate)
			assert.GreaterOrEqual(t, s.SuccessRate, 0.0)
			assert.LessOrEqual(t, s.SuccessRate, 100.0)
		})
	}
}
