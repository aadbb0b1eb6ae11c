// Package repositories implements SQLite persistence for transfer runs.
//
// [TransferRepository] records one row per run in transfer_runs, stores the
// final report as JSON, and keeps the ordered transfer log in transfer_events.
// It also satisfies [reports.Sink] so a finished run can be saved alongside
// the file and object storage sinks.
package repositories
