// package sources provides access to the legacy tracker's CSV export files.
//
// A [RecordSource] hands the engine raw rows for one record kind at a time.
// The CSV implementation validates each file's header against the layout the
// export contract declares before yielding any rows; a header that drifts
// from the contract is a source failure, not a per-row failure.
package sources

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/tavs/internal/decoder"
	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
)

// Row is one data line from an export file.
type Row struct {
	Line   int      // 1-based line in the file; the header is line 1
	Fields []string // column values in layout order, whitespace-trimmed
}

// RowSet carries every data row of one export file.
type RowSet struct {
	Kind models.Kind
	Name string // file name, used in reports and log output
	Rows []Row
}

// RecordSource yields raw rows for each record kind the import consumes.
type RecordSource interface {
	// Open reads and returns all rows of the given kind.
	// The header is validated against the layout before any row is returned.
	Open(kind models.Kind) (*RowSet, error)

	// Name identifies the source in logs and reports.
	Name() string
}

// CSVSource reads the legacy export files from disk.
type CSVSource struct {
	paths map[models.Kind]string
}

// NewCSVSource creates a CSVSource over the three export files.
func NewCSVSource(usersPath, tasksPath, logsPath string) *CSVSource {
	return &CSVSource{paths: map[models.Kind]string{
		models.KindUser:     usersPath,
		models.KindTask:     tasksPath,
		models.KindLogEntry: logsPath,
	}}
}

// Name identifies the source in logs and reports.
func (s *CSVSource) Name() string {
	return "csv export"
}

// Open reads all rows of the given kind from its export file.
func (s *CSVSource) Open(kind models.Kind) (*RowSet, error) {
	path, ok := s.paths[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no export file for kind %d", shared.ErrUnknownKind, int(kind))
	}

	layout, err := decoder.Layout(kind)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s export: %w", kind, err)
	}
	defer f.Close()

	set, err := readRows(kind, filepath.Base(path), layout, f)
	if err != nil {
		return nil, err
	}

	return set, nil
}

// readRows parses CSV content into a RowSet. Column-count mismatches are
// left for the decoder to report per row, so the reader's own field count
// check is disabled.
func readRows(kind models.Kind, name string, layout []string, r io.Reader) (*RowSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s export is empty, expected header %s",
			shared.ErrHeaderMismatch, kind, strings.Join(layout, ","))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s export header: %w", kind, err)
	}

	if err := validateHeader(kind, header, layout); err != nil {
		return nil, err
	}

	set := &RowSet{Kind: kind, Name: name}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s export after line %d: %w", kind, line, err)
		}

		line++
		fields := make([]string, len(record))
		for i, field := range record {
			fields[i] = strings.TrimSpace(field)
		}
		set.Rows = append(set.Rows, Row{Line: line, Fields: fields})
	}

	return set, nil
}

// validateHeader checks the export header against the contract layout:
// same columns, same order, compared case-insensitively after trimming.
func validateHeader(kind models.Kind, header, layout []string) error {
	if len(header) != len(layout) {
		return fmt.Errorf("%w: %s export header has %d columns, want %d (%s)",
			shared.ErrHeaderMismatch, kind, len(header), len(layout), strings.Join(layout, ","))
	}

	for i, want := range layout {
		got := strings.ToLower(strings.TrimSpace(header[i]))
		if got != want {
			return fmt.Errorf("%w: %s export column %d is %q, want %q",
				shared.ErrHeaderMismatch, kind, i+1, strings.TrimSpace(header[i]), want)
		}
	}

	return nil
}
