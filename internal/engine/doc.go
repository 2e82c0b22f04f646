// Package engine orchestrates schema migration runs with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] struct exposes two operations:
//
//  1. [Engine.Run] : Full migration run over one store
//     - Acquires the exclusive run lease and checks the version marker
//     - Applies every outstanding catalog step, marker moving inside each step's transaction
//     - Runs the one-time flat-file import when the completed flag is unset
//     - Returns applied steps, the import report, and the final lifecycle state
//
//  2. [Engine.Status] : Read-only position snapshot
//     - Reports current and latest version, outstanding step count
//     - Reports the import flag, report path, applied-step history, and lease holder
//     - Never takes the lease and never mutates the store
//
// # Run Lifecycle
//
// A run moves Idle → Checking → ApplyingSteps → Importing → Committed,
// skipping Importing when the completed flag is already set. Failed is
// reachable from any non-terminal state; both Committed and Failed are
// terminal, so an Engine drives at most one run.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking; per-row updates pass through a rate limiter.
//
// # Import Order
//
// Users import first so tasks can resolve owners, tasks next so log entries
// can resolve their parents. Rejected rows never abort the import; they are
// counted and written to the rejection report, which lands on disk before
// the final batch commits the import-completed flag.
//
// # Implementation
//
// [Engine] depends on:
//   - [registry.Registry] : The ordered catalog of schema steps
//   - [sources.RecordSource] : Raw rows from the legacy CSV export
//   - [repositories.StateRepository] : Version marker, history, import flag
//   - [repositories.LeaseRepository] : Exclusive run lease
package engine
