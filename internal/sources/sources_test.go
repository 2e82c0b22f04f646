package sources

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
)

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write export file: %v", err)
	}
	return path
}

func newTestSource(t *testing.T, users, tasks, logs string) *CSVSource {
	t.Helper()
	dir := t.TempDir()
	return NewCSVSource(
		writeExport(t, dir, "users.csv", users),
		writeExport(t, dir, "tasks.csv", tasks),
		writeExport(t, dir, "logs.csv", logs),
	)
}

func TestCSVSourceOpen(t *testing.T) {
	t.Run("reads rows with line numbers", func(t *testing.T) {
		src := newTestSource(t,
			"username,created_at\nmargaret,2023-04-01T10:30:00Z\nbeth,2023-04-02T11:00:00Z\n",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		set, err := src.Open(models.KindUser)
		if err != nil {
			t.Fatalf("failed to open users export: %v", err)
		}

		if len(set.Rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(set.Rows))
		}
		if set.Rows[0].Line != 2 || set.Rows[1].Line != 3 {
			t.Errorf("line numbers should follow the header: got %d and %d",
				set.Rows[0].Line, set.Rows[1].Line)
		}
		if set.Rows[0].Fields[0] != "margaret" {
			t.Errorf("expected first username margaret, got %q", set.Rows[0].Fields[0])
		}
		if set.Name != "users.csv" {
			t.Errorf("expected set name users.csv, got %q", set.Name)
		}
	})

	t.Run("trims field whitespace", func(t *testing.T) {
		src := newTestSource(t,
			"username,created_at\n  margaret  , 2023-04-01T10:30:00Z \n",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		set, err := src.Open(models.KindUser)
		if err != nil {
			t.Fatalf("failed to open users export: %v", err)
		}
		if set.Rows[0].Fields[0] != "margaret" {
			t.Errorf("fields should be trimmed, got %q", set.Rows[0].Fields[0])
		}
		if set.Rows[0].Fields[1] != "2023-04-01T10:30:00Z" {
			t.Errorf("fields should be trimmed, got %q", set.Rows[0].Fields[1])
		}
	})

	t.Run("header only file yields empty set", func(t *testing.T) {
		src := newTestSource(t,
			"username,created_at\n",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		set, err := src.Open(models.KindUser)
		if err != nil {
			t.Fatalf("header-only export should open cleanly: %v", err)
		}
		if len(set.Rows) != 0 {
			t.Errorf("expected no rows, got %d", len(set.Rows))
		}
	})

	t.Run("header is compared case-insensitively", func(t *testing.T) {
		src := newTestSource(t,
			"Username, Created_At\nmargaret,2023-04-01T10:30:00Z\n",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		if _, err := src.Open(models.KindUser); err != nil {
			t.Errorf("case and padding in the header should be tolerated: %v", err)
		}
	})

	t.Run("wrong column order fails", func(t *testing.T) {
		src := newTestSource(t,
			"created_at,username\n2023-04-01T10:30:00Z,margaret\n",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		_, err := src.Open(models.KindUser)
		if !errors.Is(err, shared.ErrHeaderMismatch) {
			t.Errorf("expected ErrHeaderMismatch, got %v", err)
		}
	})

	t.Run("missing column in header fails", func(t *testing.T) {
		src := newTestSource(t,
			"username\nmargaret\n",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		_, err := src.Open(models.KindUser)
		if !errors.Is(err, shared.ErrHeaderMismatch) {
			t.Errorf("expected ErrHeaderMismatch, got %v", err)
		}
	})

	t.Run("empty file fails with expected header in message", func(t *testing.T) {
		src := newTestSource(t,
			"",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		_, err := src.Open(models.KindUser)
		if !errors.Is(err, shared.ErrHeaderMismatch) {
			t.Errorf("expected ErrHeaderMismatch, got %v", err)
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		src := NewCSVSource(
			filepath.Join(t.TempDir(), "absent.csv"),
			filepath.Join(t.TempDir(), "absent.csv"),
			filepath.Join(t.TempDir(), "absent.csv"),
		)

		if _, err := src.Open(models.KindUser); err == nil {
			t.Error("opening a missing export file should fail")
		}
	})

	t.Run("short rows are delivered for the decoder to report", func(t *testing.T) {
		src := newTestSource(t,
			"username,created_at\nmargaret\n",
			"id,username,description,status,created_at,updated_at\n",
			"id,task_id,username,note,logged_at\n",
		)

		set, err := src.Open(models.KindUser)
		if err != nil {
			t.Fatalf("short rows should not fail the source: %v", err)
		}
		if len(set.Rows) != 1 || len(set.Rows[0].Fields) != 1 {
			t.Errorf("expected one single-field row, got %+v", set.Rows)
		}
	})
}
