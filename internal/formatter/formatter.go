// package formatter provides functions to export import-run reports to various formats (CSV, JSON, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
)

// Format names accepted by [WriteReport].
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ValidFormat reports whether name is a report format WriteReport can write.
func ValidFormat(name string) bool {
	switch name {
	case FormatCSV, FormatJSON, FormatMarkdown:
		return true
	}
	return false
}

// ExportToCSV converts an ImportReport to CSV format with columns: Kind, Line, Value, Reason.
// One record per rejected row; an import with no rejections yields only the header.
func ExportToCSV(report *models.ImportReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Kind", "Line", "Value", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range report.Rejected {
		record := []string{
			row.Kind,
			strconv.Itoa(row.Line),
			row.Value,
			row.Reason,
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

// ExportToMarkdown converts an ImportReport to Markdown format with a per-kind
// summary table followed by one line per rejected row
func ExportToMarkdown(report *models.ImportReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Import Report\n\n")
	buf.WriteString(fmt.Sprintf("**Source**: %s\n", report.Source))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", report.Started.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Finished**: %s\n\n", report.Finished.Format(time.RFC3339)))

	buf.WriteString("## Summary\n\n")
	buf.WriteString("| Kind | Total | Admitted | Rejected |\n")
	buf.WriteString("|------|-------|----------|----------|\n")
	writeCountRow(&buf, "users", report.Users)
	writeCountRow(&buf, "tasks", report.Tasks)
	writeCountRow(&buf, "log entries", report.Logs)

	buf.WriteString("\n## Rejected Rows\n\n")
	if len(report.Rejected) == 0 {
		buf.WriteString("None.\n")
		return buf.Bytes(), nil
	}

	for i, row := range report.Rejected {
		buf.WriteString(fmt.Sprintf("%d. %s line %d (%s): %s\n", i+1, row.Kind, row.Line, row.Value, row.Reason))
	}

	return buf.Bytes(), nil
}

func writeCountRow(buf *bytes.Buffer, kind string, counts models.KindCount) {
	buf.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", kind, counts.Total, counts.Admitted, counts.Rejected))
}

// ExportToJSON converts an ImportReport to indented JSON
func ExportToJSON(report *models.ImportReport) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// ReportFilename returns the timestamped file name a report written at ts
// gets: import_report_{timestamp}.{ext}
func ReportFilename(ts time.Time, format string) string {
	ext := "csv"
	switch format {
	case FormatJSON:
		ext = "json"
	case FormatMarkdown:
		ext = "md"
	}
	return fmt.Sprintf("import_report_%s.%s", ts.UTC().Format("20060102T150405"), ext)
}

// WriteReport writes the report into dir in the given format and returns the
// path of the file it created.
//
// The directory is created if missing. Format defaults to CSV when empty;
// an unknown format is an error so a typo in config does not silently
// change the report artifact.
func WriteReport(report *models.ImportReport, dir string, format string) (string, error) {
	if format == "" {
		format = FormatCSV
	}
	if !ValidFormat(format) {
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidConfig, format)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = ExportToJSON(report)
	case FormatMarkdown:
		data, err = ExportToMarkdown(report)
	default:
		data, err = ExportToCSV(report)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, ReportFilename(report.Finished, format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}
