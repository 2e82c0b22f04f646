package engine

import (
	"fmt"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/registry"
)

// ProgressUpdate represents a progress event during an engine run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Run phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Run phase enumeration
type Phase int

const (
	CheckState Phase = iota
	ApplySteps
	DecodeRows
	ImportUsers
	ImportTasks
	ImportLogs
	WriteReport
)

func (p Phase) String() string {
	switch p {
	case CheckState:
		return "check_state"
	case ApplySteps:
		return "apply_steps"
	case DecodeRows:
		return "decode_rows"
	case ImportUsers:
		return "import_users"
	case ImportTasks:
		return "import_tasks"
	case ImportLogs:
		return "import_logs"
	case WriteReport:
		return "write_report"
	default:
		return ""
	}
}

// importPhaseFor maps a record kind to its import phase.
func importPhaseFor(kind models.Kind) Phase {
	switch kind {
	case models.KindTask:
		return ImportTasks
	case models.KindLogEntry:
		return ImportLogs
	default:
		return ImportUsers
	}
}

func checkingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckState,
		Step:    1,
		Total:   1,
		Message: "Checking store version against the step catalog...",
	}
}

func versionUpdate(current, latest, outstanding int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckState,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Store is at version %d, catalog at %d (%d steps outstanding)", current, latest, outstanding),
	}
}

func applyingStepUpdate(step, total int, ms registry.MigrationStep) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ApplySteps,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Applying step %d: %s...", step, total, ms.Version, ms.Description),
	}
}

func appliedStepUpdate(step, total int, ms registry.MigrationStep) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ApplySteps,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ step %d: %s", step, total, ms.Version, ms.Description),
	}
}

func decodingUpdate(kind models.Kind, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DecodeRows,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Decoding %d %s rows from %s...", total, kind, name),
	}
}

func importRowUpdate(kind models.Kind, step, total int, ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   importPhaseFor(kind),
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, kind, ref),
	}
}

func rejectedRowUpdate(kind models.Kind, step, total int, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   importPhaseFor(kind),
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s row: %s", step, total, kind, reason),
	}
}

func importedKindUpdate(kind models.Kind, counts models.KindCount) ProgressUpdate {
	return ProgressUpdate{
		Phase:   importPhaseFor(kind),
		Step:    counts.Total,
		Total:   counts.Total,
		Message: fmt.Sprintf("✓ %s: %d admitted, %d rejected", kind, counts.Admitted, counts.Rejected),
		Data:    counts,
	}
}

func reportUpdate(path string, report *models.ImportReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Report written: %s", path),
		Data:    report,
	}
}
