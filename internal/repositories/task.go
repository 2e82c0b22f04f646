package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
)

// TaskRepository implements models.Repository[*models.Task] for task persistence.
//
// Handles task CRUD operations with soft delete support and owner lookups.
// Imported tasks keep the identifier assigned by the legacy tracker so log
// entries can still reference them.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository with the given database connection
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task into the database with generated ID and sequence
func (r *TaskRepository) Create(task *models.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if task.UserID() == "" {
		return fmt.Errorf("%w: task owner is not resolved", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "tasks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	task.SetSequence(sequence)

	if task.ID() == "" {
		task.SetID(shared.GenerateID())
	}

	query := `
		INSERT INTO tasks (id, sequence, user_id, username, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, task.ID(), sequence, task.UserID(), task.Username(),
		task.Description(), task.Status(), task.CreatedAt(), task.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// InsertTx inserts a task inside an existing transaction. The insert is a
// no-op when a task with the same ID already exists; the return value
// reports whether a row was written.
func (r *TaskRepository) InsertTx(tx *sql.Tx, task *models.Task) (bool, error) {
	if err := task.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	if task.UserID() == "" {
		return false, fmt.Errorf("%w: task owner is not resolved", shared.ErrInvalidInput)
	}

	sequence, err := NextSequenceTx(tx, "tasks")
	if err != nil {
		return false, fmt.Errorf("failed to generate sequence: %w", err)
	}
	task.SetSequence(sequence)

	if task.ID() == "" {
		task.SetID(shared.GenerateID())
	}

	query := `
		INSERT OR IGNORE INTO tasks (id, sequence, user_id, username, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query, task.ID(), sequence, task.UserID(), task.Username(),
		task.Description(), task.Status(), task.CreatedAt(), task.UpdatedAt())
	if err != nil {
		return false, fmt.Errorf("failed to insert task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// Get retrieves a task by ID, excluding soft-deleted tasks
func (r *TaskRepository) Get(id string) (*models.Task, error) {
	query := `
		SELECT id, sequence, user_id, username, description, status, created_at, updated_at, deleted_at
		FROM tasks
		WHERE id = ? AND deleted_at IS NULL
	`

	task, err := scanTask(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: task %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	return task, nil
}

// Update modifies an existing task's description and status
func (r *TaskRepository) Update(task *models.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	task.SetUpdatedAt(now)

	query := `
		UPDATE tasks
		SET description = ?, status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, task.Description(), task.Status(), now, task.ID())
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found or already deleted: %s", task.ID())
	}

	return nil
}

// Delete soft-deletes a task by ID
func (r *TaskRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE tasks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all tasks matching the given criteria, excluding soft-deleted tasks
func (r *TaskRepository) List(criteria map[string]any) ([]*models.Task, error) {
	query := `
		SELECT id, sequence, user_id, username, description, status, created_at, updated_at, deleted_at
		FROM tasks
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tasks, nil
}

// IDs returns the identifiers of every live task. The importer checks log
// entry references against this set.
func (r *TaskRepository) IDs() ([]string, error) {
	rows, err := r.db.Query("SELECT id FROM tasks WHERE deleted_at IS NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to query task ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// Count returns the number of live tasks.
func (r *TaskRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tasks WHERE deleted_at IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		id          string
		sequence    int
		userID      string
		username    string
		description string
		status      string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &userID, &username, &description, &status,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	task := models.NewTask(sequence, username, description, status)
	task.SetID(id)
	task.SetUserID(userID)
	task.SetCreatedAt(createdAt)
	task.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		task.SetDeletedAt(&deletedAt.Time)
	}

	return task, nil
}
