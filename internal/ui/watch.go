package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songmigrate/internal/progress"
)

// DefaultPollInterval is how often [Watcher] reads the progress store.
const DefaultPollInterval = 500 * time.Millisecond

// Watcher follows a session through the progress store until it reaches a
// terminal status. It is used for transfers running in a worker process.
type Watcher struct {
	ctx       context.Context
	store     progress.Store
	sessionID string
	interval  time.Duration
	snapshot  progress.Snapshot
	seen      bool
	requested bool
	err       error
	bar       bar.Model
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
}

// NewWatcher creates a watcher for sessionID. A non-positive interval uses [DefaultPollInterval].
func NewWatcher(ctx context.Context, store progress.Store, sessionID string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		ctx:       ctx,
		store:     store,
		sessionID: sessionID,
		interval:  interval,
		bar:       bar.New(bar.WithDefaultGradient(), bar.WithWidth(maxBarWidth)),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Snapshot returns the last snapshot read from the store.
func (w *Watcher) Snapshot() progress.Snapshot { return w.snapshot }

// Err returns the store error that ended the watch, if any.
func (w *Watcher) Err() error { return w.err }

func (w *Watcher) Init() tea.Cmd {
	return tea.Batch(w.poll(), w.spinner.Tick)
}

func (w *Watcher) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.bar.Width = min(msg.Width-8, maxBarWidth)
		return w, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, w.keys.quit):
			return w, tea.Quit
		case key.Matches(msg, w.keys.cancel):
			if w.requested {
				return w, nil
			}
			w.requested = true
			store, ctx, id := w.store, w.ctx, w.sessionID
			return w, func() tea.Msg { return cancelRequestedMsg(store.RequestCancel(ctx, id)) }
		}

	case Msg:
		switch msg.kind {
		case MsgSnapshot:
			res := msg.data.(snapshotResult)
			if res.err != nil {
				w.err = res.err
				return w, tea.Quit
			}
			w.snapshot = res.snapshot
			w.seen = true
			if w.snapshot.Status.Terminal() {
				return w, tea.Quit
			}
			return w, w.tick()

		case MsgPollTick:
			return w, w.poll()

		case MsgCancelRequested:
			if err, ok := msg.data.(error); ok && err != nil {
				w.err = err
				return w, tea.Quit
			}
		}
	}
	return w, nil
}

func (w *Watcher) View() string {
	if w.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", w.err)) + "\n"
	}

	title := styles.title.Render(fmt.Sprintf("Session %s", w.sessionID))
	if !w.seen {
		return fmt.Sprintf("%s\n%s Waiting for status...\n", title, w.spinner.View())
	}

	s := w.snapshot
	status := styles.status(s.Status).Render(string(s.Status))
	line := fmt.Sprintf("%s %s %.2f%%", w.spinner.View(), status, s.Progress)
	if s.Status.Terminal() {
		line = fmt.Sprintf("%s %.2f%%", status, s.Progress)
	}
	if w.requested || s.Cancel {
		line += styles.warn.Render("  (cancel requested)")
	}

	helpView := w.help.ShortHelpView([]key.Binding{w.keys.cancel, w.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s\n\n%s\n", title, line, w.bar.ViewAs(s.Progress/100), helpView)
}

func (w *Watcher) poll() tea.Cmd {
	store, ctx, id := w.store, w.ctx, w.sessionID
	return func() tea.Msg {
		s, err := progress.Read(ctx, store, id)
		return snapshotMsg(s, err)
	}
}

func (w *Watcher) tick() tea.Cmd {
	return tea.Tick(w.interval, func(time.Time) tea.Msg { return pollTickMsg() })
}
