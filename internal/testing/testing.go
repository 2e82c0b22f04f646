// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/sources"
)

// MockSource is a test double for [sources.RecordSource] serving canned
// rows per kind. Kinds with no entry yield an empty set, and kinds listed
// in FailKinds fail to open.
type MockSource struct {
	Sets      map[models.Kind]*sources.RowSet
	FailKinds map[models.Kind]error
}

func (m *MockSource) Open(kind models.Kind) (*sources.RowSet, error) {
	if err, ok := m.FailKinds[kind]; ok {
		return nil, err
	}
	if set, ok := m.Sets[kind]; ok {
		return set, nil
	}
	return &sources.RowSet{Kind: kind, Name: "empty.csv"}, nil
}

func (m *MockSource) Name() string { return "mock" }

// Rows builds a RowSet from field tuples, numbering lines from 2 the way
// the CSV reader does (the header is line 1).
func Rows(kind models.Kind, name string, rows ...[]string) *sources.RowSet {
	set := &sources.RowSet{Kind: kind, Name: name}
	for i, fields := range rows {
		set.Rows = append(set.Rows, sources.Row{Line: i + 2, Fields: fields})
	}
	return set
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
