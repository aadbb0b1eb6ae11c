package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(session string, details ...string) *models.TransferReport {
	return &models.TransferReport{
		ID:        shared.GenerateID(),
		SessionID: session,
		Timestamp: time.Now().UTC(),
		Status:    models.StatusCompleted,
		Summary:   models.NewSummary(3, 2, 1, 0),
		Playlists: []models.PlaylistOutcome{{PlaylistID: "p1", Name: "Road Trip", State: models.OutcomeTransferred, Tracks: 3, Added: 2, Failed: 1}},
		Details:   details,
	}
}

func TestTransferRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateRun", func(t *testing.T) {
		repo := NewTransferRepository(setupTestDB(t))

		run, err := repo.CreateRun(ctx, "s1", "h1")
		if err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID == "" {
			t.Error("run ID should be set after creation")
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.StatusPending {
			t.Errorf("expected status pending, got %s", got.Status)
		}
		if got.Handle != "h1" {
			t.Errorf("expected handle h1, got %q", got.Handle)
		}
		if got.CompletedAt != nil {
			t.Error("pending run should not have completed_at")
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		repo := NewTransferRepository(setupTestDB(t))
		run, _ := repo.CreateRun(ctx, "s1", "")

		if err := repo.UpdateStatus(ctx, run.ID, models.StatusRunning, ""); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		if err := repo.UpdateStatus(ctx, run.ID, models.StatusFailed, "Spotify: authentication failed"); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.StatusFailed {
			t.Errorf("expected failed, got %s", got.Status)
		}
		if got.Error != "Spotify: authentication failed" {
			t.Errorf("unexpected error message %q", got.Error)
		}
		if got.CompletedAt == nil {
			t.Error("terminal run should have completed_at")
		}
	})

	t.Run("SaveAttachesToOpenRun", func(t *testing.T) {
		repo := NewTransferRepository(setupTestDB(t))
		run, _ := repo.CreateRun(ctx, "s1", "h1")
		_ = repo.UpdateStatus(ctx, run.ID, models.StatusRunning, "")

		report := testReport("s1", "Created playlist: Road Trip", "Added: A by B")
		if err := repo.Save(ctx, report); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}

		got, err := repo.GetByHandle(ctx, "h1")
		if err != nil {
			t.Fatalf("failed to get run by handle: %v", err)
		}
		if got.ID != run.ID {
			t.Errorf("report should attach to run %s, got %s", run.ID, got.ID)
		}
		if got.Status != models.StatusCompleted || got.Summary != report.Summary {
			t.Errorf("unexpected run after save: %+v", got)
		}

		stored, err := repo.Report(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to load report: %v", err)
		}
		if stored.ID != report.ID || len(stored.Playlists) != 1 {
			t.Errorf("unexpected stored report: %+v", stored)
		}

		events, err := repo.Events(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to load events: %v", err)
		}
		if len(events) != 2 || events[0] != "Created playlist: Road Trip" || events[1] != "Added: A by B" {
			t.Errorf("unexpected events: %v", events)
		}
	})

	t.Run("SaveWithoutRunInserts", func(t *testing.T) {
		repo := NewTransferRepository(setupTestDB(t))
		report := testReport("local")

		if err := repo.Save(ctx, report); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		got, err := repo.Get(ctx, report.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.SessionID != "local" || got.Status != models.StatusCompleted {
			t.Errorf("unexpected run: %+v", got)
		}
	})

	t.Run("ListBySession", func(t *testing.T) {
		repo := NewTransferRepository(setupTestDB(t))
		first, _ := repo.CreateRun(ctx, "s1", "")
		second, _ := repo.CreateRun(ctx, "s1", "")
		_, _ = repo.CreateRun(ctx, "s2", "")

		runs, err := repo.ListBySession(ctx, "s1", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[0].ID != second.ID || runs[1].ID != first.ID {
			t.Error("runs should be ordered newest first")
		}

		limited, _ := repo.ListBySession(ctx, "s1", 1)
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}

		pending, _ := repo.List(ctx, map[string]any{"status": "pending"})
		if len(pending) != 3 {
			t.Errorf("expected 3 pending runs, got %d", len(pending))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewTransferRepository(setupTestDB(t))
		report := testReport("s1", "one")
		_ = repo.Save(ctx, report)

		if err := repo.Delete(ctx, report.ID); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(ctx, report.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		events, _ := repo.Events(ctx, report.ID)
		if len(events) != 0 {
			t.Errorf("events should be deleted with the run, got %v", events)
		}
	})
}

func TestTransferRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateRun", func(t *testing.T) {
		t.Run("MissingSession", func(t *testing.T) {
			repo := NewTransferRepository(setupTestDB(t))
			if _, err := repo.CreateRun(ctx, "", "h"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Fatalf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewTransferRepository(setupTestDB(t))
			if _, err := repo.Get(ctx, "nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewTransferRepository(setupTestDB(t))
			err := repo.UpdateStatus(ctx, "nonexistent-id", models.StatusRunning, "")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Report", func(t *testing.T) {
		t.Run("NoReportYet", func(t *testing.T) {
			repo := NewTransferRepository(setupTestDB(t))
			run, _ := repo.CreateRun(ctx, "s1", "")
			if _, err := repo.Report(ctx, run.ID); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTransferRepository(db)
		db.Close()

		if _, err := repo.CreateRun(ctx, "s1", ""); err == nil {
			t.Error("expected error on closed database")
		}
		if err := repo.Save(ctx, testReport("s1")); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.ListBySession(ctx, "s1", 0); err == nil {
			t.Error("expected error on closed database")
		}
	})
}
