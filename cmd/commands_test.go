package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/services"
	"github.com/desertthunder/songmigrate/internal/shared"
	tu "github.com/desertthunder/songmigrate/internal/testing"
	"github.com/urfave/cli/v3"
)

type mockClients struct {
	source *tu.MockSource
	dest   *tu.MockDestination
	err    error
}

func (m *mockClients) Source(context.Context, string) (services.SourceCatalog, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.source, nil
}

func (m *mockClients) Destination(context.Context, string) (services.DestinationCatalog, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dest, nil
}

type cliFixture struct {
	runner  *Runner
	clients *mockClients
	store   *progress.MemoryStore
	output  *bytes.Buffer
	reports string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	a := models.Track{Title: "Highway Song", Artists: []string{"The Drivers"}, SourceID: "a"}
	b := models.Track{Title: "Open Road", Artists: []string{"Asphalt"}, SourceID: "b"}
	c := models.Track{Title: "Unknown Demo", Artists: []string{"Nobody"}, SourceID: "c"}

	clients := &mockClients{
		source: &tu.MockSource{
			Playlists: []models.Playlist{{ID: "p1", Name: "Road Trip", TrackCount: 3}},
			Tracks:    map[string][]models.Track{"p1": {a, b, c}},
		},
		dest: &tu.MockDestination{Results: map[string][]models.MatchCandidate{
			a.Title: {{DestinationID: "yt-a", Title: a.Title, PrimaryArtist: a.ArtistLine()}},
			b.Title: {{DestinationID: "yt-b", Title: b.Title, PrimaryArtist: b.ArtistLine()}},
		}},
	}

	config := shared.DefaultConfig()
	config.Redis.URL = ""
	config.Resolver.Enabled = false
	config.Transfer.TrackDelay = shared.Duration{}
	config.Reports.Dir = t.TempDir()
	config.Database.Path = ":memory:"

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := progress.NewMemoryStore()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Clients: clients,
		Store:   store,
		DB:      db,
		Logger:  shared.NewLogger(&bytes.Buffer{}),
		Output:  output,
	})

	return &cliFixture{runner: runner, clients: clients, store: store, output: output, reports: config.Reports.Dir}
}

func (f *cliFixture) run(t *testing.T, build func(*Runner) *cli.Command, args ...string) error {
	t.Helper()
	cmd := build(f.runner)
	return cmd.Run(context.Background(), append([]string{cmd.Name}, args...))
}

func TestTransferCommand(t *testing.T) {
	t.Run("runs locally and prints the report", func(t *testing.T) {
		f := newCLIFixture(t)

		if err := f.run(t, transferCommand, "--session", "s1", "--playlist", "p1"); err != nil {
			t.Fatalf("transfer failed: %v", err)
		}

		output := f.output.String()
		for _, want := range []string{
			"Transfer Report",
			"Transfer completed (s1)",
			"Tracks: 2/3 transferred (66.67%), 1 failed, 0 skipped",
			"Road Trip: transferred (2/3)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got:\n%s", want, output)
			}
		}

		if len(f.clients.dest.Created) != 1 || f.clients.dest.Created[0] != "Road Trip" {
			t.Errorf("expected Road Trip to be created, got %v", f.clients.dest.Created)
		}

		runs, err := f.runner.runs.List(context.Background(), map[string]any{"session_id": "s1"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(runs) != 1 || runs[0].Status != models.StatusCompleted {
			t.Fatalf("expected one completed run, got %+v", runs)
		}

		entries, err := os.ReadDir(f.reports)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected one report file, got %d", len(entries))
		}

		snap, err := progress.Read(context.Background(), f.store, "s1")
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if snap.Status != models.StatusCompleted || snap.Progress != 100 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("writes the report file", func(t *testing.T) {
		f := newCLIFixture(t)
		path := filepath.Join(t.TempDir(), "report.md")

		err := f.run(t, transferCommand, "--session", "s1", "--all", "--privacy", "public", "--format", "md", "--output", path)
		if err != nil {
			t.Fatalf("transfer failed: %v", err)
		}

		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "# Transfer Report") {
			t.Errorf("unexpected report file: %s", content)
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want error
		}{
			{"no playlists", []string{"--session", "s1"}, shared.ErrMissingArgument},
			{"playlist and all", []string{"--session", "s1", "--playlist", "p1", "--all"}, shared.ErrInvalidArgument},
			{"bad privacy", []string{"--session", "s1", "--all", "--privacy", "secret"}, shared.ErrInvalidArgument},
			{"bad format", []string{"--session", "s1", "--all", "--format", "xml"}, shared.ErrInvalidArgument},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newCLIFixture(t)
				if err := f.run(t, transferCommand, tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if len(f.clients.source.TrackCalls) != 0 {
					t.Error("expected no transfer to start")
				}
			})
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newCLIFixture(t)
		f.clients.err = shared.ErrMissingCredentials

		err := f.run(t, transferCommand, "--session", "s1", "--all")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestTransferOptions(t *testing.T) {
	f := newCLIFixture(t)

	var got models.TransferOptions
	cmd := &cli.Command{
		Name:  "opts",
		Flags: transferOptionFlags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			var err error
			got, err = f.runner.transferOptions(cmd)
			return err
		},
	}

	if err := cmd.Run(context.Background(), []string{"opts"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != models.DefaultTransferOptions() {
		t.Errorf("expected config defaults, got %+v", got)
	}

	if err := cmd.Run(context.Background(), []string{"opts", "--create=false", "--overwrite", "--privacy", "unlisted"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := models.TransferOptions{CreateNewPlaylists: false, OverwriteExisting: true, Privacy: models.PrivacyUnlisted}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestPlaylistsCommand(t *testing.T) {
	f := newCLIFixture(t)

	if err := f.run(t, playlistsCommand, "--session", "s1", "--json"); err != nil {
		t.Fatalf("playlists failed: %v", err)
	}

	var playlists []models.Playlist
	if err := json.Unmarshal(f.output.Bytes(), &playlists); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, f.output.String())
	}
	if len(playlists) != 1 || playlists[0].Name != "Road Trip" {
		t.Errorf("unexpected playlists %+v", playlists)
	}

	f.clients.dest.AuthErr = errors.New("headers expired")
	err := f.run(t, playlistsCommand, "--session", "s1")
	if !errors.Is(err, shared.ErrAuthFailed) || !strings.Contains(err.Error(), "YouTube Music") {
		t.Errorf("expected YouTube Music auth failure, got %v", err)
	}
}

func TestStatusAndCancelCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("session status and cancel", func(t *testing.T) {
		f := newCLIFixture(t)
		f.store.SetStatus(ctx, "s1", models.StatusRunning)
		f.store.SetProgress(ctx, "s1", 42.5)

		if err := f.run(t, statusCommand, "--session", "s1"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "Session s1: running 42.50%") {
			t.Errorf("unexpected status output %q", f.output.String())
		}

		if err := f.run(t, cancelCommand, "--session", "s1"); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		requested, _ := f.store.CancelRequested(ctx, "s1")
		if !requested {
			t.Error("expected cancel flag to be set")
		}
	})

	t.Run("job handle", func(t *testing.T) {
		f := newCLIFixture(t)
		f.store.BindJob(ctx, "h1", "s1")
		f.store.ClaimSession(ctx, "s1", "h1")
		f.store.SetStatus(ctx, "s1", models.StatusCompleted)
		f.store.FinishJob(ctx, "s1", "h1", models.StatusCompleted)

		if err := f.run(t, statusCommand, "--handle", "h1", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(f.output.String(), `"status":"completed"`) {
			t.Errorf("unexpected status output %q", f.output.String())
		}

		f.output.Reset()
		if err := f.run(t, cancelCommand, "--handle", "h1"); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "already completed") {
			t.Errorf("unexpected cancel output %q", f.output.String())
		}
	})

	t.Run("unknown targets", func(t *testing.T) {
		f := newCLIFixture(t)

		if err := f.run(t, statusCommand, "--handle", "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := f.run(t, cancelCommand, "--session", "nobody"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := f.run(t, statusCommand); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestReportsCommand(t *testing.T) {
	ctx := context.Background()
	f := newCLIFixture(t)

	if err := f.run(t, transferCommand, "--session", "s1", "--playlist", "p1"); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	runs, err := f.runner.runs.ListBySession(ctx, "s1", 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected a run, got %v (%v)", runs, err)
	}
	id := runs[0].ID

	t.Run("list", func(t *testing.T) {
		f.output.Reset()
		if err := f.run(t, reportsCommand, "list", "--session", "s1"); err != nil {
			t.Fatalf("reports list failed: %v", err)
		}
		if !strings.Contains(f.output.String(), id) || !strings.Contains(f.output.String(), "completed") {
			t.Errorf("unexpected table:\n%s", f.output.String())
		}

		if err := f.run(t, reportsCommand, "list", "--status", "done"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("show", func(t *testing.T) {
		f.output.Reset()
		if err := f.run(t, reportsCommand, "show", "--format", "csv", id); err != nil {
			t.Fatalf("reports show failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "p1,Road Trip,transferred,3,2,1") {
			t.Errorf("unexpected CSV:\n%s", f.output.String())
		}

		if err := f.run(t, reportsCommand, "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := f.run(t, reportsCommand, "delete", id); err != nil {
			t.Fatalf("reports delete failed: %v", err)
		}
		if _, err := f.runner.runs.Get(ctx, id); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected run to be gone, got %v", err)
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})
	t.Cleanup(func() { runner.Close() })

	if err := setupCommand(runner).Run(context.Background(), []string{"setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, "config.toml")
	tu.AssertFileExists(t, "tokens")
	tu.AssertFileExists(t, "headers")
	tu.AssertFileExists(t, "reports")
	tu.AssertFileExists(t, "songmigrate.db")

	if !strings.Contains(output.String(), "✓ Created config.toml") {
		t.Errorf("unexpected output:\n%s", output.String())
	}
}
