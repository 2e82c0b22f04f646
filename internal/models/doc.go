// Package models defines domain entities and persistence interfaces for the TaskAversionSystem migration toolkit.
//
// The package contains the three persistent entities carried over from the
// legacy flat-file tracker:
//   - [User] : Account rows keyed by a case-insensitively unique username
//   - [Task] : Work items owned by a user, with a constrained status value
//   - [LogEntry] : Free-text journal lines attached to a task
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
// [Kind] tags a record with the legacy export layout it was decoded from.
// [ImportReport] carries the outcome of an import run for the formatter package to write out.
package models
