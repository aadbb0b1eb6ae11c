// package formatter renders transfer reports and run listings as text, Markdown, CSV, JSON, or terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/repositories"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// Format names an output representation of a report.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension used when writing f to disk.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// Render converts report to the requested format.
func Render(report *models.TransferReport, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return ReportToText(report)
	case FormatMarkdown:
		return ReportToMarkdown(report)
	case FormatCSV:
		return ReportToCSV(report)
	case FormatJSON:
		return ReportToJSON(report)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// Write renders report in format f to w.
func Write(w io.Writer, report *models.TransferReport, f Format) error {
	data, err := Render(report, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportToCSV converts the per-playlist outcomes of a report to CSV with columns:
// Playlist ID, Name, State, Tracks, Added, Failed, Destination ID, Error
func ReportToCSV(report *models.TransferReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Playlist ID", "Name", "State", "Tracks", "Added", "Failed", "Destination ID", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range report.Playlists {
		record := []string{
			o.PlaylistID,
			o.Name,
			string(o.State),
			strconv.Itoa(o.Tracks),
			strconv.Itoa(o.Added),
			strconv.Itoa(o.Failed),
			o.DestinationID,
			o.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown converts a report to a Markdown document with a summary, an
// outcome table, and the full transfer log.
func ReportToMarkdown(report *models.TransferReport) ([]byte, error) {
	var buf bytes.Buffer
	s := report.Summary

	buf.WriteString("# Transfer Report\n\n")
	fmt.Fprintf(&buf, "**Session**: %s\n", report.SessionID)
	fmt.Fprintf(&buf, "**Status**: %s\n", statusString(report.Status))
	fmt.Fprintf(&buf, "**Date**: %s\n\n", report.Timestamp.Format(time.RFC3339))

	buf.WriteString("## Summary\n\n")
	fmt.Fprintf(&buf, "- Total tracks: %d\n", s.TotalTracks)
	fmt.Fprintf(&buf, "- Successful: %d\n", s.SuccessfulTransfers)
	fmt.Fprintf(&buf, "- Failed: %d\n", s.FailedTransfers)
	fmt.Fprintf(&buf, "- Skipped: %d\n", s.SkippedTracks)
	fmt.Fprintf(&buf, "- Success rate: %.2f%%\n\n", s.SuccessRate)

	if len(report.Playlists) > 0 {
		buf.WriteString("## Playlists\n\n")
		buf.WriteString("| Playlist | State | Added | Failed | Tracks |\n")
		buf.WriteString("|---|---|---|---|---|\n")
		for _, o := range report.Playlists {
			fmt.Fprintf(&buf, "| %s | %s | %d | %d | %d |\n", escapeCell(o.Name), o.State, o.Added, o.Failed, o.Tracks)
		}
		buf.WriteString("\n")
	}

	if len(report.Details) > 0 {
		buf.WriteString("## Log\n\n")
		for _, line := range report.Details {
			fmt.Fprintf(&buf, "- %s\n", line)
		}
	}

	return buf.Bytes(), nil
}

// ReportToText converts a report to a plain text summary.
func ReportToText(report *models.TransferReport) ([]byte, error) {
	var buf bytes.Buffer
	s := report.Summary

	fmt.Fprintf(&buf, "Transfer %s (%s)\n", statusString(report.Status), report.SessionID)
	fmt.Fprintf(&buf, "Tracks: %d/%d transferred (%.2f%%), %d failed, %d skipped\n",
		s.SuccessfulTransfers, s.TotalTracks, s.SuccessRate, s.FailedTransfers, s.SkippedTracks)

	for _, o := range report.Playlists {
		fmt.Fprintf(&buf, "  %s: %s (%d/%d)", o.Name, o.State, o.Added, o.Tracks)
		if o.Error != "" {
			fmt.Fprintf(&buf, " - %s", o.Error)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ReportToJSON converts a report to indented JSON.
func ReportToJSON(report *models.TransferReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteReportFile writes report to path in format f.
//
// An empty path defaults to transfer_report_<id>{ext} in the working directory.
func WriteReportFile(report *models.TransferReport, f Format, path string) (string, error) {
	if path == "" {
		path = "transfer_report_" + report.ID + f.Ext()
	}

	data, err := Render(report, f)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// RunsTable renders persisted runs as a bordered terminal table, newest first as given.
func RunsTable(runs []*repositories.TransferRun) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			r.ID,
			r.SessionID,
			statusString(r.Status),
			fmt.Sprintf("%d/%d", r.Summary.SuccessfulTransfers, r.Summary.TotalTracks),
			fmt.Sprintf("%.2f%%", r.Summary.SuccessRate),
			r.CreatedAt.Local().Format(time.DateTime),
			completed,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Session", "Status", "Tracks", "Rate", "Created", "Completed").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// WriteRuns writes [RunsTable] followed by a newline to w.
func WriteRuns(w io.Writer, runs []*repositories.TransferRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No transfer runs found")
		return err
	}
	_, err := fmt.Fprintln(w, RunsTable(runs))
	return err
}

func statusString(s models.Status) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
