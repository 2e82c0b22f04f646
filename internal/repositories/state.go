package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// Control tables owned by the migration engine. They live outside the step
// catalog so the engine can read its own position before any step runs, and
// they are created idempotently on every run.
const controlSchema = `
CREATE TABLE IF NOT EXISTS schema_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    version INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

INSERT OR IGNORE INTO schema_state (id, version, updated_at) VALUES (1, 0, CURRENT_TIMESTAMP);

CREATE TABLE IF NOT EXISTS import_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    completed INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP,
    report_path TEXT
);

INSERT OR IGNORE INTO import_state (id, completed) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS schema_history (
    version INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS engine_lease (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    owner TEXT,
    acquired_at TIMESTAMP,
    expires_at TIMESTAMP
);

INSERT OR IGNORE INTO engine_lease (id) VALUES (1);
`

// AppliedStep is one row of the schema history audit trail.
type AppliedStep struct {
	Version     int
	Description string
	AppliedAt   time.Time
}

// ImportState reports whether the one-time bootstrap import has run.
type ImportState struct {
	Completed   bool
	CompletedAt *time.Time
	ReportPath  string
}

// StateRepository manages the engine's persisted position: the schema
// version marker, the import-completed flag, and the applied-step history.
// Only the migration engine writes through it.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new StateRepository with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Ensure creates and seeds the control tables if they do not exist yet.
func (r *StateRepository) Ensure() error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ExecScript(tx, controlSchema); err != nil {
		return fmt.Errorf("failed to create control tables: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit control tables: %w", err)
	}

	return nil
}

// Version returns the schema version marker.
func (r *StateRepository) Version() (int, error) {
	var version int
	err := r.db.QueryRow("SELECT version FROM schema_state WHERE id = 1").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// SetVersionTx moves the schema version marker inside an existing
// transaction. Committing the step's SQL and the marker together keeps the
// marker exact: never ahead of, never behind, the steps actually applied.
func (r *StateRepository) SetVersionTx(tx *sql.Tx, version int) error {
	result, err := tx.Exec("UPDATE schema_state SET version = ?, updated_at = ? WHERE id = 1", version, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schema state row is missing")
	}

	return nil
}

// RecordStepTx appends an applied step to the history inside an existing
// transaction.
func (r *StateRepository) RecordStepTx(tx *sql.Tx, version int, description string) error {
	_, err := tx.Exec("INSERT INTO schema_history (version, description, applied_at) VALUES (?, ?, ?)",
		version, description, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record step %d: %w", version, err)
	}
	return nil
}

// History returns every applied step in version order.
func (r *StateRepository) History() ([]AppliedStep, error) {
	rows, err := r.db.Query("SELECT version, description, applied_at FROM schema_history ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var steps []AppliedStep
	for rows.Next() {
		var step AppliedStep
		if err := rows.Scan(&step.Version, &step.Description, &step.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return steps, nil
}

// Import returns the import flag state.
func (r *StateRepository) Import() (*ImportState, error) {
	var (
		completed   int
		completedAt sql.NullTime
		reportPath  sql.NullString
	)

	err := r.db.QueryRow("SELECT completed, completed_at, report_path FROM import_state WHERE id = 1").
		Scan(&completed, &completedAt, &reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read import state: %w", err)
	}

	state := &ImportState{Completed: completed != 0}
	if completedAt.Valid {
		state.CompletedAt = &completedAt.Time
	}
	if reportPath.Valid {
		state.ReportPath = reportPath.String
	}

	return state, nil
}

// MarkImportedTx sets the import-completed flag inside an existing
// transaction, so the flag commits atomically with the final insert batch.
func (r *StateRepository) MarkImportedTx(tx *sql.Tx, reportPath string) error {
	result, err := tx.Exec("UPDATE import_state SET completed = 1, completed_at = ?, report_path = ? WHERE id = 1",
		time.Now(), reportPath)
	if err != nil {
		return fmt.Errorf("failed to set import flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("import state row is missing")
	}

	return nil
}
