package models

import "time"

// ImportReport summarizes one flat-file import run: how many rows of each
// kind the export held, how many were admitted into the store, and every
// row that was rejected along with the reason.
type ImportReport struct {
	Started  time.Time
	Finished time.Time
	Source   string
	Users    KindCount
	Tasks    KindCount
	Logs     KindCount
	Rejected []RejectedRow
}

// KindCount tallies admission decisions for a single record kind
type KindCount struct {
	Total    int
	Admitted int
	Rejected int
}

// RejectedRow identifies a source row that was not admitted and why
type RejectedRow struct {
	Kind   string
	Line   int
	Value  string
	Reason string
}

// Counts returns the tally for the given record kind.
func (r *ImportReport) Counts(kind Kind) *KindCount {
	switch kind {
	case KindTask:
		return &r.Tasks
	case KindLogEntry:
		return &r.Logs
	default:
		return &r.Users
	}
}

// Reject records a rejected source row under the given kind.
func (r *ImportReport) Reject(kind Kind, line int, value, reason string) {
	r.Counts(kind).Rejected++
	r.Rejected = append(r.Rejected, RejectedRow{
		Kind:   kind.String(),
		Line:   line,
		Value:  value,
		Reason: reason,
	})
}

// TotalAdmitted sums admitted rows across all kinds.
func (r *ImportReport) TotalAdmitted() int {
	return r.Users.Admitted + r.Tasks.Admitted + r.Logs.Admitted
}

// TotalRejected sums rejected rows across all kinds.
func (r *ImportReport) TotalRejected() int {
	return r.Users.Rejected + r.Tasks.Rejected + r.Logs.Rejected
}
