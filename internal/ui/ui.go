package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/desertthunder/songmigrate/internal/tasks"
)

const maxBarWidth = 60

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	TransferView
	ResultView
)

// Engine is the slice of [tasks.TransferEngine] the TUI drives.
type Engine interface {
	SessionID() string
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)
	RunSelected(ctx context.Context, ids []string, opts models.TransferOptions) (*models.TransferReport, error)
}

// ModelOpts carries the collaborators of [Model] besides the engine.
//
// Updates must be the channel the engine was built with. Store is used to
// request cancellation and may be nil, which disables the cancel key.
type ModelOpts struct {
	Store    progress.Store
	Updates  <-chan tasks.ProgressUpdate
	Transfer models.TransferOptions
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       Engine
	store        progress.Store
	transfer     models.TransferOptions
	updates      <-chan tasks.ProgressUpdate
	done         chan transferResult
	width        int
	height       int
	playlistList list.Model
	playlists    []models.Playlist
	selected     map[string]bool
	progress     tasks.ProgressUpdate
	bar          bar.Model
	spinner      spinner.Model
	report       *models.TransferReport
	cancelling   bool
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine Engine, opts ModelOpts) *Model {
	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		engine:       engine,
		store:        opts.Store,
		transfer:     opts.Transfer,
		updates:      opts.Updates,
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		selected:     make(map[string]bool),
		bar:          bar.New(bar.WithDefaultGradient(), bar.WithWidth(maxBarWidth)),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Err returns the error that ended the session, if any.
func (m *Model) Err() error { return m.err }

// Report returns the report of the last finished transfer.
func (m *Model) Report() *models.TransferReport { return m.report }

// Init initializes the TUI by fetching the source playlists.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = min(msg.Width-8, maxBarWidth)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case TransferView:
			return m.handleTransferKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		res := msg.data.(playlistsResult)
		if res.err != nil {
			m.err = res.err
			return m, tea.Quit
		}
		m.playlists = res.playlists
		cmd := m.playlistList.SetItems(playlistItems(res.playlists))
		m.playlistList.Title = "Source Playlists"
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgTransferComplete:
		res := msg.data.(transferResult)
		m.report = res.report
		m.err = res.err
		m.done = nil
		m.cancelling = false
		m.drainUpdates()
		m.view = ResultView
		return m, nil

	case MsgCancelRequested:
		if err, ok := msg.data.(error); ok && err != nil {
			m.cancelling = false
			m.progress.Message = fmt.Sprintf("Cancel request failed: %v", err)
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		return m, m.toggleCurrent()
	case key.Matches(msg, m.keys.all):
		return m, m.toggleAll()
	case key.Matches(msg, m.keys.enter):
		var cmd tea.Cmd
		if len(m.selected) == 0 {
			cmd = m.toggleCurrent()
		}
		if len(m.selected) == 0 {
			return m, cmd
		}
		m.view = ConfirmView
		return m, cmd
	}

	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = TransferView
		m.progress = tasks.ProgressUpdate{Message: "Starting transfer..."}
		return m, m.startTransfer()
	}
	return m, nil
}

func (m *Model) handleTransferKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) || msg.String() == "ctrl+c" {
		return m, m.requestCancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.report = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		m.clearSelection()
		return m, nil
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != PlaylistListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) toggleCurrent() tea.Cmd {
	item, ok := m.playlistList.SelectedItem().(playlistItem)
	if !ok {
		return nil
	}
	item.selected = !item.selected
	if item.selected {
		m.selected[item.playlist.ID] = true
	} else {
		delete(m.selected, item.playlist.ID)
	}
	return m.playlistList.SetItem(m.playlistList.Index(), item)
}

func (m *Model) toggleAll() tea.Cmd {
	selectAll := len(m.selected) < len(m.playlists)
	m.selected = make(map[string]bool)
	items := make([]list.Item, len(m.playlists))
	for i, pl := range m.playlists {
		if selectAll {
			m.selected[pl.ID] = true
		}
		items[i] = playlistItem{playlist: pl, selected: selectAll}
	}
	return m.playlistList.SetItems(items)
}

func (m *Model) clearSelection() {
	m.selected = make(map[string]bool)
	m.playlistList.SetItems(playlistItems(m.playlists))
}

// selection returns the selected playlists in source order.
func (m *Model) selection() []models.Playlist {
	var out []models.Playlist
	for _, pl := range m.playlists {
		if m.selected[pl.ID] {
			out = append(out, pl)
		}
	}
	return out
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.engine.ListPlaylists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) startTransfer() tea.Cmd {
	selection := m.selection()
	ids := make([]string, len(selection))
	for i, pl := range selection {
		ids[i] = pl.ID
	}

	m.drainUpdates()
	done := make(chan transferResult, 1)
	m.done = done
	ctx, engine, opts := m.ctx, m.engine, m.transfer

	go func() {
		report, err := engine.RunSelected(ctx, ids, opts)
		done <- transferResult{report: report, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	return func() tea.Msg {
		select {
		case update := <-updates:
			return progressUpdateMsg(update)
		case res := <-done:
			return transferCompleteMsg(res.report, res.err)
		}
	}
}

// drainUpdates discards buffered updates left over from a finished run.
func (m *Model) drainUpdates() {
	for {
		select {
		case <-m.updates:
		default:
			return
		}
	}
}

func (m *Model) requestCancel() tea.Cmd {
	if m.store == nil || m.cancelling {
		return nil
	}
	m.cancelling = true
	store, ctx, sessionID := m.store, m.ctx, m.engine.SessionID()
	return func() tea.Msg {
		return cancelRequestedMsg(store.RequestCancel(ctx, sessionID))
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	count := styles.help.Render(fmt.Sprintf("%d selected", len(m.selected)))
	return fmt.Sprintf("%s\n%s\n\n%s", m.playlistList.View(), count, helpView)
}

func (m *Model) renderConfirm() string {
	selection := m.selection()
	tracks := 0
	var b strings.Builder
	for _, pl := range selection {
		tracks += pl.TrackCount
		fmt.Fprintf(&b, "  • %s (%d tracks)\n", pl.Name, pl.TrackCount)
	}

	title := styles.title.Render(fmt.Sprintf("Transfer %d playlist(s)?", len(selection)))
	info := fmt.Sprintf("\n%s\nTracks: %d\nEstimated time: %s\nCreate missing playlists: %t\nOverwrite existing: %t\n",
		b.String(), tracks, shared.EstimateTransferTime(tracks), m.transfer.CreateNewPlaylists, m.transfer.OverwriteExisting)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render("Transferring Playlists")

	var phase string
	switch m.progress.Phase {
	case tasks.Authenticate:
		phase = "Authenticating..."
	case tasks.FetchPlaylists, tasks.FetchTracks:
		phase = "Fetching source tracks..."
	case tasks.ResolvePlaylist:
		phase = "Resolving destination playlist..."
	case tasks.TransferTrack, tasks.LikeTrack:
		phase = fmt.Sprintf("Matching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Cancelled:
		phase = "Cancelled"
	default:
		phase = "Processing..."
	}
	if m.cancelling {
		phase = styles.warn.Render("Cancelling after the current track...")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n\n%s %s\n%s\n%s\n\n%s",
		title, m.spinner.View(), phase, m.bar.ViewAs(m.progress.Percent/100), m.progress.Message, helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	if m.report == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Transfer failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	var title string
	switch m.report.Status {
	case models.StatusCancelled:
		title = styles.warn.Render("Transfer cancelled")
	case models.StatusFailed:
		title = styles.err.Render("Transfer failed")
	default:
		title = styles.ok.Render("✓ Transfer Complete!")
	}

	s := m.report.Summary
	info := fmt.Sprintf("\nSuccessful: %d/%d (%.2f%%)\nFailed: %d\nSkipped: %d\n",
		s.SuccessfulTransfers, s.TotalTracks, s.SuccessRate, s.FailedTransfers, s.SkippedTracks)

	var outcomes strings.Builder
	for _, o := range m.report.Playlists {
		line := fmt.Sprintf("  • %s: %s (%d/%d)", o.Name, o.State, o.Added, o.Tracks)
		if style, ok := styles.outcome(o.State); ok {
			line = style.Render(line)
		}
		outcomes.WriteString(line + "\n")
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", title, info, outcomes.String(), helpView)
}
