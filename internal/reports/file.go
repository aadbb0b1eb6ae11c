package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/songmigrate/internal/models"
)

const fileTimeLayout = "20060102_150405"

// FileSink writes reports as indented JSON files named transfer_report_YYYYMMDD_HHMMSS.json.
type FileSink struct {
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// FileName returns the base name used for report.
func FileName(report *models.TransferReport) string {
	return fmt.Sprintf("transfer_report_%s.json", report.Timestamp.Local().Format(fileTimeLayout))
}

// Save writes the report. When a file with the same second already exists the
// report id is appended to the name instead of overwriting it.
func (s *FileSink) Save(_ context.Context, report *models.TransferReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(s.dir, FileName(report))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		base := FileName(report)
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", base[:len(base)-len(".json")], shortID(report.ID)))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	}
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Load reads a report previously written by [FileSink.Save].
func Load(path string) (*models.TransferReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report models.TransferReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &report, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
