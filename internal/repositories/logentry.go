package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
)

// LogEntryRepository implements models.Repository[*models.LogEntry] for journal persistence.
type LogEntryRepository struct {
	db *sql.DB
}

// NewLogEntryRepository creates a new LogEntryRepository with the given database connection
func NewLogEntryRepository(db *sql.DB) *LogEntryRepository {
	return &LogEntryRepository{db: db}
}

// Create inserts a new log entry into the database with generated ID and sequence
func (r *LogEntryRepository) Create(entry *models.LogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if entry.UserID() == "" {
		return fmt.Errorf("%w: log entry author is not resolved", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "log_entries")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	entry.SetSequence(sequence)

	if entry.ID() == "" {
		entry.SetID(shared.GenerateID())
	}

	query := `
		INSERT INTO log_entries (id, sequence, task_id, user_id, username, note, logged_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, entry.ID(), sequence, entry.TaskID(), entry.UserID(),
		entry.Username(), entry.Note(), entry.LoggedAt(), entry.CreatedAt(), entry.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	return nil
}

// InsertTx inserts a log entry inside an existing transaction. The insert
// is a no-op when an entry with the same ID already exists; the return
// value reports whether a row was written.
func (r *LogEntryRepository) InsertTx(tx *sql.Tx, entry *models.LogEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	if entry.UserID() == "" {
		return false, fmt.Errorf("%w: log entry author is not resolved", shared.ErrInvalidInput)
	}

	sequence, err := NextSequenceTx(tx, "log_entries")
	if err != nil {
		return false, fmt.Errorf("failed to generate sequence: %w", err)
	}
	entry.SetSequence(sequence)

	if entry.ID() == "" {
		entry.SetID(shared.GenerateID())
	}

	query := `
		INSERT OR IGNORE INTO log_entries (id, sequence, task_id, user_id, username, note, logged_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query, entry.ID(), sequence, entry.TaskID(), entry.UserID(),
		entry.Username(), entry.Note(), entry.LoggedAt(), entry.CreatedAt(), entry.UpdatedAt())
	if err != nil {
		return false, fmt.Errorf("failed to insert log entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// Get retrieves a log entry by ID, excluding soft-deleted entries
func (r *LogEntryRepository) Get(id string) (*models.LogEntry, error) {
	query := `
		SELECT id, sequence, task_id, user_id, username, note, logged_at, created_at, updated_at, deleted_at
		FROM log_entries
		WHERE id = ? AND deleted_at IS NULL
	`

	entry, err := scanLogEntry(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: log entry %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query log entry: %w", err)
	}

	return entry, nil
}

// Update modifies an existing log entry's note
func (r *LogEntryRepository) Update(entry *models.LogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	entry.SetUpdatedAt(now)

	query := `
		UPDATE log_entries
		SET note = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, entry.Note(), now, entry.ID())
	if err != nil {
		return fmt.Errorf("failed to update log entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("log entry not found or already deleted: %s", entry.ID())
	}

	return nil
}

// Delete soft-deletes a log entry by ID
func (r *LogEntryRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE log_entries
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete log entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("log entry not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all log entries matching the given criteria, excluding soft-deleted entries
func (r *LogEntryRepository) List(criteria map[string]any) ([]*models.LogEntry, error) {
	query := `
		SELECT id, sequence, task_id, user_id, username, note, logged_at, created_at, updated_at, deleted_at
		FROM log_entries
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if taskID, ok := criteria["task_id"].(string); ok && taskID != "" {
		query += " AND task_id = ?"
		args = append(args, taskID)
	}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Count returns the number of live log entries.
func (r *LogEntryRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM log_entries WHERE deleted_at IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log entries: %w", err)
	}
	return count, nil
}

func scanLogEntry(row scanner) (*models.LogEntry, error) {
	var (
		id        string
		sequence  int
		taskID    string
		userID    string
		username  string
		note      string
		loggedAt  time.Time
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &taskID, &userID, &username, &note,
		&loggedAt, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	entry := models.NewLogEntry(sequence, taskID, username, note)
	entry.SetID(id)
	entry.SetUserID(userID)
	entry.SetLoggedAt(loggedAt)
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		entry.SetDeletedAt(&deletedAt.Time)
	}

	return entry, nil
}
