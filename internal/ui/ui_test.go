package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/desertthunder/songmigrate/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu        sync.Mutex
	playlists []models.Playlist
	listErr   error
	report    *models.TransferReport
	runErr    error
	updates   chan tasks.ProgressUpdate
	block     chan struct{}
	gotIDs    []string
	gotOpts   models.TransferOptions
}

func (e *fakeEngine) SessionID() string { return "s1" }

func (e *fakeEngine) ListPlaylists(context.Context) ([]models.Playlist, error) {
	return e.playlists, e.listErr
}

func (e *fakeEngine) RunSelected(_ context.Context, ids []string, opts models.TransferOptions) (*models.TransferReport, error) {
	e.mu.Lock()
	e.gotIDs = ids
	e.gotOpts = opts
	e.mu.Unlock()

	if e.block != nil {
		<-e.block
	}
	e.updates <- tasks.ProgressUpdate{Phase: tasks.TransferTrack, Step: 1, Total: 2, Percent: 50, Message: "Added: Song by Artist"}
	return e.report, e.runErr
}

func (e *fakeEngine) ids() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gotIDs
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func testPlaylists() []models.Playlist {
	return []models.Playlist{
		models.LikedSongsPlaylist(4),
		{ID: "p1", Name: "Road Trip", TrackCount: 3},
		{ID: "p2", Name: "Favorites", TrackCount: 10},
	}
}

func newTestModel(t *testing.T, eng *fakeEngine, store progress.Store) *Model {
	t.Helper()
	m := NewModel(context.Background(), eng, ModelOpts{
		Store:    store,
		Updates:  eng.updates,
		Transfer: models.DefaultTransferOptions(),
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(playlistsFetchedMsg(eng.playlists, nil))
	return m
}

func isQuit(t *testing.T, cmd tea.Cmd) bool {
	t.Helper()
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModelTransferFlow(t *testing.T) {
	report := &models.TransferReport{
		Status:  models.StatusCompleted,
		Summary: models.NewSummary(13, 12, 1, 0),
		Playlists: []models.PlaylistOutcome{
			{PlaylistID: "p1", Name: "Road Trip", State: models.OutcomeTransferred, Tracks: 3, Added: 2, Failed: 1},
			{PlaylistID: "p2", Name: "Favorites", State: models.OutcomeTransferred, Tracks: 10, Added: 10},
		},
	}
	eng := &fakeEngine{playlists: testPlaylists(), report: report, updates: make(chan tasks.ProgressUpdate, 8)}
	m := newTestModel(t, eng, progress.NewMemoryStore())

	assert.Equal(t, PlaylistListView, m.view)
	assert.Contains(t, m.View(), "Road Trip")

	m.Update(keyMsg("a"))
	assert.Len(t, m.selected, 3)

	m.Update(keyMsg(" "))
	assert.Len(t, m.selected, 2)
	assert.False(t, m.selected[models.LikedSongsID])

	m.Update(keyMsg("enter"))
	require.Equal(t, ConfirmView, m.view)
	view := m.View()
	assert.Contains(t, view, "Transfer 2 playlist(s)?")
	assert.Contains(t, view, "Tracks: 13")
	assert.Contains(t, view, shared.EstimateTransferTime(13).String())

	_, cmd := m.Update(keyMsg("y"))
	require.Equal(t, TransferView, m.view)
	require.NotNil(t, cmd)

	for i := 0; m.view != ResultView; i++ {
		require.Less(t, i, 10, "transfer never completed")
		_, cmd = m.Update(cmd())
	}

	assert.Equal(t, []string{"p1", "p2"}, eng.ids())
	assert.Equal(t, models.DefaultTransferOptions(), eng.gotOpts)
	assert.Same(t, report, m.Report())
	assert.NoError(t, m.Err())

	view = m.View()
	assert.Contains(t, view, "Transfer Complete")
	assert.Contains(t, view, "Successful: 12/13 (92.31%)")
	assert.Contains(t, view, "Road Trip: transferred (2/3)")

	m.Update(keyMsg("esc"))
	assert.Equal(t, PlaylistListView, m.view)
	assert.Empty(t, m.selected)
	assert.Nil(t, m.Report())
}

func TestModelEnterSelectsCurrent(t *testing.T) {
	eng := &fakeEngine{playlists: testPlaylists(), updates: make(chan tasks.ProgressUpdate, 1)}
	m := newTestModel(t, eng, nil)

	m.Update(keyMsg("enter"))
	assert.Equal(t, ConfirmView, m.view)
	assert.True(t, m.selected[models.LikedSongsID])

	m.Update(keyMsg("n"))
	assert.Equal(t, PlaylistListView, m.view)
	assert.True(t, m.selected[models.LikedSongsID], "selection survives going back")
}

func TestModelPlaylistFetchError(t *testing.T) {
	eng := &fakeEngine{listErr: errors.New("token revoked")}
	m := NewModel(context.Background(), eng, ModelOpts{})

	msg := m.fetchPlaylists()()
	_, cmd := m.Update(msg)

	assert.True(t, isQuit(t, cmd))
	assert.EqualError(t, m.Err(), "token revoked")
	assert.Contains(t, m.View(), "Error: token revoked")
}

func TestModelCancel(t *testing.T) {
	store := progress.NewMemoryStore()
	eng := &fakeEngine{
		playlists: testPlaylists(),
		report:    &models.TransferReport{Status: models.StatusCancelled},
		runErr:    shared.ErrCancelled,
		updates:   make(chan tasks.ProgressUpdate, 8),
		block:     make(chan struct{}),
	}
	m := newTestModel(t, eng, store)

	m.Update(keyMsg("enter"))
	_, wait := m.Update(keyMsg("y"))
	require.Equal(t, TransferView, m.view)

	_, cmd := m.Update(keyMsg("c"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Contains(t, m.View(), "Cancelling after the current track")

	requested, err := store.CancelRequested(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, requested)

	_, again := m.Update(keyMsg("c"))
	assert.Nil(t, again, "second cancel is a no-op")

	close(eng.block)
	for i := 0; m.view != ResultView; i++ {
		require.Less(t, i, 10, "transfer never completed")
		_, wait = m.Update(wait())
	}
	assert.ErrorIs(t, m.Err(), shared.ErrCancelled)
	assert.Contains(t, m.View(), "Transfer cancelled")
}

func TestWatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("polls until terminal", func(t *testing.T) {
		store := progress.NewMemoryStore()
		require.NoError(t, store.SetStatus(ctx, "s1", models.StatusRunning))
		require.NoError(t, store.SetProgress(ctx, "s1", 40))

		w := NewWatcher(ctx, store, "s1", time.Millisecond)
		assert.Contains(t, w.View(), "Waiting for status")

		_, cmd := w.Update(w.poll()())
		require.NotNil(t, cmd)
		assert.Equal(t, models.StatusRunning, w.Snapshot().Status)
		assert.Contains(t, w.View(), "running")
		assert.Contains(t, w.View(), "40.00%")

		_, cmd = w.Update(cmd())
		require.NotNil(t, cmd, "tick schedules another poll")

		require.NoError(t, store.SetProgress(ctx, "s1", 100))
		require.NoError(t, store.SetStatus(ctx, "s1", models.StatusCompleted))
		_, cmd = w.Update(cmd())

		assert.True(t, isQuit(t, cmd))
		assert.Equal(t, models.StatusCompleted, w.Snapshot().Status)
		assert.Equal(t, 100.0, w.Snapshot().Progress)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := NewWatcher(ctx, progress.NewMemoryStore(), "missing", 0)
		_, cmd := w.Update(w.poll()())

		assert.True(t, isQuit(t, cmd))
		assert.ErrorIs(t, w.Err(), shared.ErrNotFound)
		assert.Contains(t, w.View(), "Error:")
	})

	t.Run("cancel key writes the flag", func(t *testing.T) {
		store := progress.NewMemoryStore()
		require.NoError(t, store.SetStatus(ctx, "s1", models.StatusRunning))

		w := NewWatcher(ctx, store, "s1", 0)
		w.Update(w.poll()())

		_, cmd := w.Update(keyMsg("c"))
		require.NotNil(t, cmd)
		w.Update(cmd())

		requested, err := store.CancelRequested(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, requested)
		assert.Contains(t, w.View(), "cancel requested")
	})
}
