package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tavs/internal/shared"
)

// LogEntry represents a free-text journal line attached to a task.
type LogEntry struct {
	id        string
	sequence  int
	taskID    string
	userID    string
	username  string
	note      string
	loggedAt  time.Time
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewLogEntry creates a LogEntry for the given task, username and note.
// The logged-at timestamp defaults to the current time.
func NewLogEntry(sequence int, taskID, username, note string) *LogEntry {
	now := time.Now()
	return &LogEntry{
		sequence:  sequence,
		taskID:    taskID,
		username:  username,
		note:      note,
		loggedAt:  now,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the unique identifier for this log entry.
func (l *LogEntry) ID() string { return l.id }

// Sequence returns the per-table ordering counter assigned at insert.
func (l *LogEntry) Sequence() int { return l.sequence }

// TaskID returns the identifier of the task this entry belongs to.
func (l *LogEntry) TaskID() string { return l.taskID }

// UserID returns the identifier of the authoring user row.
func (l *LogEntry) UserID() string { return l.userID }

// Username returns the authoring username as it appeared in the export.
func (l *LogEntry) Username() string { return l.username }

// Note returns the free-text note.
func (l *LogEntry) Note() string { return l.note }

// LoggedAt returns when the entry was originally written.
func (l *LogEntry) LoggedAt() time.Time { return l.loggedAt }

// CreatedAt returns when this entry was created in the store.
func (l *LogEntry) CreatedAt() time.Time { return l.createdAt }

// UpdatedAt returns when this entry was last updated.
func (l *LogEntry) UpdatedAt() time.Time { return l.updatedAt }

// DeletedAt returns the soft-delete timestamp, or nil if the entry is live.
func (l *LogEntry) DeletedAt() *time.Time { return l.deletedAt }

// SetID assigns the unique identifier.
func (l *LogEntry) SetID(id string) { l.id = id }

// SetSequence assigns the per-table ordering counter.
func (l *LogEntry) SetSequence(sequence int) { l.sequence = sequence }

// SetUserID assigns the authoring user row identifier.
func (l *LogEntry) SetUserID(userID string) { l.userID = userID }

// SetNote replaces the free-text note.
func (l *LogEntry) SetNote(note string) { l.note = note }

// SetLoggedAt overrides the original write timestamp. Used when a record
// carries its timestamp in from the legacy export.
func (l *LogEntry) SetLoggedAt(ts time.Time) { l.loggedAt = ts }

// SetCreatedAt overrides the creation timestamp.
func (l *LogEntry) SetCreatedAt(ts time.Time) { l.createdAt = ts }

// SetUpdatedAt assigns the last-updated timestamp.
func (l *LogEntry) SetUpdatedAt(ts time.Time) { l.updatedAt = ts }

// SetDeletedAt assigns the soft-delete timestamp.
func (l *LogEntry) SetDeletedAt(ts *time.Time) { l.deletedAt = ts }

// Validate checks that the log entry carries the data the store requires.
func (l *LogEntry) Validate() error {
	if strings.TrimSpace(l.taskID) == "" {
		return fmt.Errorf("%w: log entry task reference is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(l.username) == "" {
		return fmt.Errorf("%w: log entry username is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(l.note) == "" {
		return fmt.Errorf("%w: log entry note is required", shared.ErrInvalidInput)
	}
	return nil
}
