package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgTransferComplete
	MsgSnapshot
	MsgPollTick
	MsgCancelRequested
)

type playlistsResult struct {
	playlists []models.Playlist
	err       error
}

type transferResult struct {
	report *models.TransferReport
	err    error
}

type snapshotResult struct {
	snapshot progress.Snapshot
	err      error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsResult{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// transferCompleteMsg is the constructor for [MsgTransferComplete]
func transferCompleteMsg(report *models.TransferReport, err error) Msg {
	return Msg{kind: MsgTransferComplete, data: transferResult{report, err}}
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(s progress.Snapshot, err error) Msg {
	return Msg{kind: MsgSnapshot, data: snapshotResult{s, err}}
}

// pollTickMsg is the constructor for [MsgPollTick]
func pollTickMsg() Msg {
	return Msg{kind: MsgPollTick}
}

// cancelRequestedMsg is the constructor for [MsgCancelRequested]
func cancelRequestedMsg(err error) Msg {
	return Msg{kind: MsgCancelRequested, data: err}
}
