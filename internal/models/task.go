package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tavs/internal/shared"
)

// Task status values admitted by the legacy export layout and the store.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// TaskStatuses lists every status a task may carry.
var TaskStatuses = []string{StatusOpen, StatusInProgress, StatusDone}

// ValidTaskStatus reports whether status is one of the admitted values.
func ValidTaskStatus(status string) bool {
	for _, s := range TaskStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Task represents a work item owned by a user.
type Task struct {
	id          string
	sequence    int
	userID      string
	username    string
	description string
	status      string
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewTask creates a Task with the given sequence, owner username, description and status.
// Timestamps default to the current time.
func NewTask(sequence int, username, description, status string) *Task {
	now := time.Now()
	return &Task{
		sequence:    sequence,
		username:    username,
		description: description,
		status:      status,
		createdAt:   now,
		updatedAt:   now,
	}
}

// ID returns the unique identifier for this task.
func (t *Task) ID() string { return t.id }

// Sequence returns the per-table ordering counter assigned at insert.
func (t *Task) Sequence() int { return t.sequence }

// UserID returns the identifier of the owning user row.
func (t *Task) UserID() string { return t.userID }

// Username returns the owning username as it appeared in the export.
func (t *Task) Username() string { return t.username }

// Description returns the task description.
func (t *Task) Description() string { return t.description }

// Status returns the task status.
func (t *Task) Status() string { return t.status }

// CreatedAt returns when this task was created.
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns when this task was last updated.
func (t *Task) UpdatedAt() time.Time { return t.updatedAt }

// DeletedAt returns the soft-delete timestamp, or nil if the task is live.
func (t *Task) DeletedAt() *time.Time { return t.deletedAt }

// SetID assigns the unique identifier.
func (t *Task) SetID(id string) { t.id = id }

// SetSequence assigns the per-table ordering counter.
func (t *Task) SetSequence(sequence int) { t.sequence = sequence }

// SetUserID assigns the owning user row identifier.
func (t *Task) SetUserID(userID string) { t.userID = userID }

// SetDescription replaces the task description.
func (t *Task) SetDescription(description string) { t.description = description }

// SetStatus replaces the task status.
func (t *Task) SetStatus(status string) { t.status = status }

// SetCreatedAt overrides the creation timestamp. Used when a record carries
// its original timestamp in from the legacy export.
func (t *Task) SetCreatedAt(ts time.Time) { t.createdAt = ts }

// SetUpdatedAt assigns the last-updated timestamp.
func (t *Task) SetUpdatedAt(ts time.Time) { t.updatedAt = ts }

// SetDeletedAt assigns the soft-delete timestamp.
func (t *Task) SetDeletedAt(ts *time.Time) { t.deletedAt = ts }

// Validate checks that the task carries the data the store requires.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.username) == "" {
		return fmt.Errorf("%w: task owner username is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(t.description) == "" {
		return fmt.Errorf("%w: task description is required", shared.ErrInvalidInput)
	}
	if !ValidTaskStatus(t.status) {
		return fmt.Errorf("%w: task status %q is not one of %v", shared.ErrInvalidInput, t.status, TaskStatuses)
	}
	return nil
}
