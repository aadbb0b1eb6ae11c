package models

import (
	"math"
	"time"
)

// OutcomeState describes what happened to one source playlist during a run.
type OutcomeState string

const (
	OutcomeTransferred OutcomeState = "transferred"
	OutcomeSkipped     OutcomeState = "skipped"
	OutcomeEmpty       OutcomeState = "empty"
	OutcomeFailed      OutcomeState = "failed"
)

// PlaylistOutcome is the per-playlist part of a [TransferReport].
type PlaylistOutcome struct {
	PlaylistID    string       `json:"playlist_id"`
	Name          string       `json:"name"`
	DestinationID string       `json:"destination_id,omitempty"`
	State         OutcomeState `json:"state"`
	Tracks        int          `json:"tracks"`
	Added         int          `json:"added"`
	Failed        int          `json:"failed"`
	Error         string       `json:"error,omitempty"`
}

// Summary holds the run-level counters of a [TransferReport].
type Summary struct {
	TotalTracks         int     `json:"total_tracks"`
	SuccessfulTransfers int     `json:"successful_transfers"`
	FailedTransfers     int     `json:"failed_transfers"`
	SkippedTracks       int     `json:"skipped_tracks"`
	SuccessRate         float64 `json:"success_rate"`
}

// NewSummary computes the success rate as a percentage rounded to two decimals.
func NewSummary(total, successful, failed, skipped int) Summary {
	rate := float64(successful) / float64(max(total, 1)) * 100
	return Summary{
		TotalTracks:         total,
		SuccessfulTransfers: successful,
		FailedTransfers:     failed,
		SkippedTracks:       skipped,
		SuccessRate:         math.Round(rate*100) / 100,
	}
}

// TransferReport is the final record of a run. It is not modified once built.
type TransferReport struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Status    Status            `json:"status"`
	Summary   Summary           `json:"summary"`
	Playlists []PlaylistOutcome `json:"playlists"`
	Details   []string          `json:"details"`
}
