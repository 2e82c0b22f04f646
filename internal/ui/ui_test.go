package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/desertthunder/tavs/internal/engine"
	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/registry"
	"github.com/desertthunder/tavs/internal/repositories"
)

func TestListItems(t *testing.T) {
	t.Run("step item", func(t *testing.T) {
		item := stepItem{step: registry.MigrationStep{
			Version:     1,
			Description: "create users",
			Apply:       "CREATE TABLE users (id TEXT); CREATE INDEX idx ON users(id);",
		}}

		if got := item.Title(); got != "0001 create users" {
			t.Errorf("Title() = %q", got)
		}
		if got := item.Description(); got != "2 statements" {
			t.Errorf("Description() = %q", got)
		}
		if got := item.FilterValue(); got != "create users" {
			t.Errorf("FilterValue() = %q", got)
		}
	})

	t.Run("history item", func(t *testing.T) {
		item := historyItem{step: repositories.AppliedStep{
			Version:     2,
			Description: "create tasks",
			AppliedAt:   time.Date(2025, 1, 7, 15, 4, 5, 0, time.UTC),
		}}

		if got := item.Title(); got != "0002 create tasks" {
			t.Errorf("Title() = %q", got)
		}
		if !strings.Contains(item.Description(), "2025-01-07") {
			t.Errorf("Description() = %q, want applied date", item.Description())
		}
	})
}

func TestCountStatements(t *testing.T) {
	tests := []struct {
		script string
		want   int
	}{
		{"", 0},
		{"CREATE TABLE t (id TEXT);", 1},
		{"CREATE TABLE t (id TEXT); CREATE INDEX i ON t(id);", 2},
		{"CREATE TABLE t (id TEXT);\n\n", 1},
	}

	for _, tt := range tests {
		if got := countStatements(tt.script); got != tt.want {
			t.Errorf("countStatements(%q) = %d, want %d", tt.script, got, tt.want)
		}
	}
}

func TestRunSummary(t *testing.T) {
	steps := []registry.MigrationStep{{Version: 1, Description: "create users", Apply: "SELECT 1"}}

	tests := []struct {
		name    string
		status  *engine.Status
		pending []registry.MigrationStep
		want    string
	}{
		{"steps and import", &engine.Status{}, steps, "1 migration steps and the flat-file import"},
		{"steps only", &engine.Status{Imported: true}, steps, "1 migration steps"},
		{"import only", &engine.Status{}, nil, "the flat-file import"},
		{"nothing", &engine.Status{Imported: true}, nil, "nothing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Model{status: tt.status, pending: tt.pending}
			if got := m.runSummary(); got != tt.want {
				t.Errorf("runSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkOutstanding(t *testing.T) {
	m := &Model{}
	if m.workOutstanding() {
		t.Error("workOutstanding() should be false before status is fetched")
	}

	m.status = &engine.Status{Imported: true}
	if m.workOutstanding() {
		t.Error("workOutstanding() should be false with no steps and import done")
	}

	m.status = &engine.Status{}
	if !m.workOutstanding() {
		t.Error("workOutstanding() should be true while the import is pending")
	}
}

func TestRenderResult(t *testing.T) {
	report := &models.ImportReport{
		Users: models.KindCount{Total: 3, Admitted: 2},
		Tasks: models.KindCount{Total: 1, Admitted: 1},
		Logs:  models.KindCount{Total: 1, Admitted: 1},
	}
	report.Reject(models.KindUser, 4, "Alice", `"Alice" differs only by case from existing username "alice"`)

	m := &Model{
		help: help.New(),
		keys: newKeyMap(),
		result: &engine.RunResult{
			StartVersion: 0,
			EndVersion:   2,
			Applied: []registry.MigrationStep{
				{Version: 1, Description: "create users", Apply: "SELECT 1"},
				{Version: 2, Description: "create tasks", Apply: "SELECT 1"},
			},
			ImportRan: true,
			Report:    report,
		},
	}

	output := m.renderResult()

	if !strings.Contains(output, "Migration Complete") {
		t.Errorf("renderResult() missing title, got: %s", output)
	}
	if !strings.Contains(output, "2 steps applied") {
		t.Errorf("renderResult() missing step count")
	}
	if !strings.Contains(output, "2 users, 1 tasks, 1 log entries") {
		t.Errorf("renderResult() missing import counts, got: %s", output)
	}
	if !strings.Contains(output, "Rejected 1 rows") {
		t.Errorf("renderResult() missing rejection header")
	}
	if !strings.Contains(output, "user line 4") {
		t.Errorf("renderResult() missing rejected row")
	}
}
