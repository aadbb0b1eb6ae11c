package tasks

import (
	"fmt"

	"github.com/desertthunder/songmigrate/internal/models"
)

// ProgressUpdate represents a progress event during a transfer run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase   // Operation phase
	Step    int     // Tracks processed so far
	Total   int     // Tracks expected for the run
	Percent float64 // Same value written to the progress store
	Message string  // Human-readable message for display
	Data    any     // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Authenticate Phase = iota
	FetchPlaylists
	FetchTracks
	ResolvePlaylist
	TransferTrack
	LikeTrack
	Complete
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Authenticate:
		return "authenticate"
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case ResolvePlaylist:
		return "resolve_playlist"
	case TransferTrack:
		return "transfer_track"
	case LikeTrack:
		return "like_track"
	case Complete:
		return "complete"
	case Cancelled:
		return "cancelled"
	default:
		return ""
	}
}

func authenticateUpdate(message string) ProgressUpdate {
	return ProgressUpdate{Phase: Authenticate, Message: message}
}

func fetchPlaylistsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Total:   total,
		Message: fmt.Sprintf("Found %d playlists on Spotify", total),
	}
}

func fetchTracksUpdate(pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Message: fmt.Sprintf("Fetching tracks for %s...", pl.Name),
		Data:    pl,
	}
}

func resolvePlaylistUpdate(outcome models.PlaylistOutcome, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Message: message,
		Data:    outcome,
	}
}

func trackUpdate(phase Phase, step, total int, pct float64, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Percent: pct,
		Message: message,
	}
}

func completeUpdate(report *models.TransferReport) ProgressUpdate {
	s := report.Summary
	return ProgressUpdate{
		Phase:   Complete,
		Step:    s.TotalTracks,
		Total:   s.TotalTracks,
		Percent: 100,
		Message: fmt.Sprintf("Transfer complete: %d/%d tracks (%.2f%%)", s.SuccessfulTransfers, s.TotalTracks, s.SuccessRate),
		Data:    report,
	}
}

func cancelledUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Cancelled,
		Step:    step,
		Total:   total,
		Message: "Transfer cancelled",
	}
}
