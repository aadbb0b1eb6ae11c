package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// TransferRun is one row of transfer_runs.
type TransferRun struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Handle      string         `json:"handle,omitempty"`
	Status      models.Status  `json:"status"`
	Summary     models.Summary `json:"summary"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TransferRepository persists transfer runs, their reports, and their log lines.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository with the given database connection
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// DB returns the underlying connection.
func (r *TransferRepository) DB() *sql.DB {
	return r.db
}

const runColumns = `
	id, session_id, handle, status, total_tracks, successful_transfers,
	failed_transfers, skipped_tracks, success_rate, error_message,
	created_at, completed_at
`

// CreateRun inserts a pending run for sessionID. handle may be empty for local runs.
func (r *TransferRepository) CreateRun(ctx context.Context, sessionID, handle string) (*TransferRun, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", shared.ErrMissingArgument)
	}

	run := &TransferRun{
		ID:        shared.GenerateID(),
		SessionID: sessionID,
		Handle:    handle,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transfer_runs (id, session_id, handle, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.SessionID, nullString(handle), run.Status, run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transfer run: %w", err)
	}
	return run, nil
}

// UpdateStatus moves a run to status. Terminal statuses also set completed_at.
func (r *TransferRepository) UpdateStatus(ctx context.Context, id string, status models.Status, message string) error {
	var completedAt any
	if status.Terminal() {
		completedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE transfer_runs
		SET status = ?, error_message = COALESCE(?, error_message), completed_at = COALESCE(?, completed_at)
		WHERE id = ?
	`, status, nullString(message), completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update transfer run: %w", err)
	}
	return expectRow(result, id)
}

// Save stores a finished report. It attaches the report to the session's open
// (pending or running) run when there is one and inserts a new run otherwise.
func (r *TransferRepository) Save(ctx context.Context, report *models.TransferReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var runID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM transfer_runs
		WHERE session_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, report.SessionID, models.StatusPending, models.StatusRunning).Scan(&runID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		runID = report.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transfer_runs (id, session_id, status, created_at)
			VALUES (?, ?, ?, ?)
		`, runID, report.SessionID, report.Status, report.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert transfer run: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to find open transfer run: %w", err)
	}

	s := report.Summary
	_, err = tx.ExecContext(ctx, `
		UPDATE transfer_runs
		SET status = ?, total_tracks = ?, successful_transfers = ?, failed_transfers = ?,
			skipped_tracks = ?, success_rate = ?, report = ?, completed_at = ?
		WHERE id = ?
	`, report.Status, s.TotalTracks, s.SuccessfulTransfers, s.FailedTransfers,
		s.SkippedTracks, s.SuccessRate, string(data), report.Timestamp, runID)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transfer_events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear transfer events: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transfer_events (run_id, seq, message) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for i, line := range report.Details {
		if _, err := stmt.ExecContext(ctx, runID, i, line); err != nil {
			return fmt.Errorf("failed to insert transfer event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// Get retrieves a run by id.
func (r *TransferRepository) Get(ctx context.Context, id string) (*TransferRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM transfer_runs WHERE id = ?`, id)
	return r.scan(row)
}

// GetByHandle retrieves the most recent run created for a queue handle.
func (r *TransferRepository) GetByHandle(ctx context.Context, handle string) (*TransferRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM transfer_runs
		WHERE handle = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, handle)
	return r.scan(row)
}

// List retrieves runs matching the given criteria, newest first.
//
// Supported keys: session_id, handle, status (strings) and limit (int).
func (r *TransferRepository) List(ctx context.Context, criteria map[string]any) ([]*TransferRun, error) {
	query := `SELECT ` + runColumns + ` FROM transfer_runs WHERE 1 = 1`
	args := []any{}

	for _, key := range []string{"session_id", "handle", "status"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY created_at DESC, rowid DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer runs: %w", err)
	}
	defer rows.Close()

	var runs []*TransferRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// ListBySession is List filtered to one session.
func (r *TransferRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*TransferRun, error) {
	return r.List(ctx, map[string]any{"session_id": sessionID, "limit": limit})
}

// Report decodes the stored report of a run.
func (r *TransferRepository) Report(ctx context.Context, id string) (*models.TransferReport, error) {
	var data sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT report FROM transfer_runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !data.Valid) {
		return nil, fmt.Errorf("%w: report for run %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var report models.TransferReport
	if err := json.Unmarshal([]byte(data.String), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &report, nil
}

// Events returns the transfer log of a run in order.
func (r *TransferRepository) Events(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT message FROM transfer_events WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer events: %w", err)
	}
	defer rows.Close()

	var events []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("failed to scan transfer event: %w", err)
		}
		events = append(events, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// Delete removes a run and its events.
func (r *TransferRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transfer_events WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transfer events: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM transfer_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer run: %w", err)
	}
	if err := expectRow(result, id); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one run from a [sql.Row] or [sql.Rows].
func (r *TransferRepository) scan(row scanner) (*TransferRun, error) {
	var (
		run          TransferRun
		handle       sql.NullString
		status       string
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.SessionID, &handle, &status,
		&run.Summary.TotalTracks, &run.Summary.SuccessfulTransfers,
		&run.Summary.FailedTransfers, &run.Summary.SkippedTracks,
		&run.Summary.SuccessRate, &errorMessage, &run.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transfer run", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer run: %w", err)
	}

	if run.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	run.Handle = handle.String
	run.Error = errorMessage.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transfer run %s", shared.ErrNotFound, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
