// package decoder turns raw legacy export rows into typed records.
//
// Decoding is total: every row produces either a typed record or a
// [RowError] naming the field, the offending value, and the violated
// constraint. Nothing here touches the store or any other state, so rows
// can be decoded in any order and in parallel.
package decoder

import (
	"fmt"
	"time"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/google/uuid"
)

// Column layouts for the legacy export files. The layouts are a versioned
// contract with the old tracker's export step: exact columns, exact order.
// A layout change ships as a new migration step, never as an edit here.
var (
	UserColumns = []string{"username", "created_at"}
	TaskColumns = []string{"id", "username", "description", "status", "created_at", "updated_at"}
	LogColumns  = []string{"id", "task_id", "username", "note", "logged_at"}
)

// Timestamp formats the legacy export is known to emit.
var timeFormats = []string{time.RFC3339, "2006-01-02 15:04:05"}

// Layout returns the expected column layout for the given kind.
func Layout(kind models.Kind) ([]string, error) {
	switch kind {
	case models.KindUser:
		return UserColumns, nil
	case models.KindTask:
		return TaskColumns, nil
	case models.KindLogEntry:
		return LogColumns, nil
	default:
		return nil, fmt.Errorf("%w: %d", shared.ErrUnknownKind, int(kind))
	}
}

// RowError describes why a single row could not be decoded.
type RowError struct {
	Kind  models.Kind
	Line  int    // 1-based line in the export file
	Field string // column that failed, empty for whole-row failures
	Value string // offending value as read
	Msg   string // the violated constraint
}

// Error formats the failure with enough detail to locate and fix the row.
func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s row at line %d: %s", e.Kind, e.Line, e.Msg)
	}
	if e.Value == "" {
		return fmt.Sprintf("%s row at line %d: field %s: %s", e.Kind, e.Line, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s row at line %d: field %s: %s (got %q)", e.Kind, e.Line, e.Field, e.Msg, e.Value)
}

// Unwrap lets callers match decode failures with [errors.Is].
func (e *RowError) Unwrap() error {
	return shared.ErrDecodeFailed
}

// Decode decodes one row of the declared kind. The fields must already be
// whitespace-trimmed, as the CSV source delivers them.
func Decode(kind models.Kind, fields []string, line int) (models.Model, *RowError) {
	switch kind {
	case models.KindUser:
		user, rerr := DecodeUser(fields, line)
		if rerr != nil {
			return nil, rerr
		}
		return user, nil
	case models.KindTask:
		task, rerr := DecodeTask(fields, line)
		if rerr != nil {
			return nil, rerr
		}
		return task, nil
	case models.KindLogEntry:
		entry, rerr := DecodeLogEntry(fields, line)
		if rerr != nil {
			return nil, rerr
		}
		return entry, nil
	default:
		return nil, &RowError{Kind: kind, Line: line, Msg: "unknown record kind"}
	}
}

// DecodeUser decodes a users.csv row: username, created_at.
func DecodeUser(fields []string, line int) (*models.User, *RowError) {
	if rerr := checkWidth(models.KindUser, UserColumns, fields, line); rerr != nil {
		return nil, rerr
	}

	username := fields[0]
	if username == "" {
		return nil, requiredError(models.KindUser, line, "username")
	}

	createdAt, rerr := parseTimestamp(models.KindUser, line, "created_at", fields[1])
	if rerr != nil {
		return nil, rerr
	}

	user := models.NewUser(0, username)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(createdAt)
	return user, nil
}

// DecodeTask decodes a tasks.csv row: id, username, description, status,
// created_at, updated_at.
func DecodeTask(fields []string, line int) (*models.Task, *RowError) {
	if rerr := checkWidth(models.KindTask, TaskColumns, fields, line); rerr != nil {
		return nil, rerr
	}

	id, rerr := parseID(models.KindTask, line, "id", fields[0])
	if rerr != nil {
		return nil, rerr
	}

	username := fields[1]
	if username == "" {
		return nil, requiredError(models.KindTask, line, "username")
	}

	description := fields[2]
	if description == "" {
		return nil, requiredError(models.KindTask, line, "description")
	}

	status := fields[3]
	if !models.ValidTaskStatus(status) {
		return nil, &RowError{
			Kind: models.KindTask, Line: line, Field: "status", Value: status,
			Msg: fmt.Sprintf("must be one of %v", models.TaskStatuses),
		}
	}

	createdAt, rerr := parseTimestamp(models.KindTask, line, "created_at", fields[4])
	if rerr != nil {
		return nil, rerr
	}

	updatedAt, rerr := parseTimestamp(models.KindTask, line, "updated_at", fields[5])
	if rerr != nil {
		return nil, rerr
	}

	task := models.NewTask(0, username, description, status)
	task.SetID(id)
	task.SetCreatedAt(createdAt)
	task.SetUpdatedAt(updatedAt)
	return task, nil
}

// DecodeLogEntry decodes a logs.csv row: id, task_id, username, note,
// logged_at.
func DecodeLogEntry(fields []string, line int) (*models.LogEntry, *RowError) {
	if rerr := checkWidth(models.KindLogEntry, LogColumns, fields, line); rerr != nil {
		return nil, rerr
	}

	id, rerr := parseID(models.KindLogEntry, line, "id", fields[0])
	if rerr != nil {
		return nil, rerr
	}

	taskID, rerr := parseID(models.KindLogEntry, line, "task_id", fields[1])
	if rerr != nil {
		return nil, rerr
	}

	username := fields[2]
	if username == "" {
		return nil, requiredError(models.KindLogEntry, line, "username")
	}

	note := fields[3]
	if note == "" {
		return nil, requiredError(models.KindLogEntry, line, "note")
	}

	loggedAt, rerr := parseTimestamp(models.KindLogEntry, line, "logged_at", fields[4])
	if rerr != nil {
		return nil, rerr
	}

	entry := models.NewLogEntry(0, taskID, username, note)
	entry.SetID(id)
	entry.SetLoggedAt(loggedAt)
	entry.SetCreatedAt(loggedAt)
	entry.SetUpdatedAt(loggedAt)
	return entry, nil
}

func checkWidth(kind models.Kind, columns, fields []string, line int) *RowError {
	if len(fields) == len(columns) {
		return nil
	}
	if len(fields) < len(columns) {
		return &RowError{
			Kind: kind, Line: line, Field: columns[len(fields)],
			Msg: fmt.Sprintf("column missing (row has %d of %d columns)", len(fields), len(columns)),
		}
	}
	return &RowError{
		Kind: kind, Line: line,
		Msg: fmt.Sprintf("too many columns (row has %d, layout has %d)", len(fields), len(columns)),
	}
}

func requiredError(kind models.Kind, line int, field string) *RowError {
	return &RowError{Kind: kind, Line: line, Field: field, Msg: "required value is empty"}
}

func parseID(kind models.Kind, line int, field, value string) (string, *RowError) {
	if value == "" {
		return "", requiredError(kind, line, field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return "", &RowError{Kind: kind, Line: line, Field: field, Value: value, Msg: "malformed id"}
	}
	return value, nil
}

func parseTimestamp(kind models.Kind, line int, field, value string) (time.Time, *RowError) {
	if value == "" {
		return time.Time{}, requiredError(kind, line, field)
	}
	for _, format := range timeFormats {
		if ts, err := time.Parse(format, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, &RowError{Kind: kind, Line: line, Field: field, Value: value, Msg: "unparseable timestamp"}
}
