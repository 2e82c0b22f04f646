// Package repositories implements SQLite persistence for all domain entities
// and for the migration engine's control rows.
//
// Each record repository handles CRUD operations with atomic sequence
// generation for human-readable ordering, plus an InsertTx variant used by
// the bootstrap import to write rows inside a batch transaction.
// Record repositories support soft deletes via deleted_at timestamps and
// exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : User persistence with case-insensitive username lookups
//   - [TaskRepository] : Task persistence with owner and status filters
//   - [LogEntryRepository] : Work log persistence keyed by task
//   - [StateRepository] : Schema version marker, import flag, and step history
//   - [LeaseRepository] : Single-row exclusive lease for engine runs
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42,
// task #15) independent of UUIDs and creation timestamps. The [NextSequence]
// function atomically increments per-table sequence counters in dedicated
// sequence tables.
package repositories
