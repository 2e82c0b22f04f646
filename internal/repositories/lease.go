package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tavs/internal/shared"
)

// Lease describes who holds the exclusive run lease and until when.
type Lease struct {
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// LeaseRepository guards the single-row engine lease. At most one engine
// process holds a live lease at a time; an expired lease may be taken over.
type LeaseRepository struct {
	db *sql.DB
}

// NewLeaseRepository creates a new LeaseRepository with the given database connection
func NewLeaseRepository(db *sql.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// Acquire takes the lease for owner until now+ttl. A live lease held by a
// different owner fails with ErrLeaseHeld naming the holder and expiry.
func (r *LeaseRepository) Acquire(owner string, ttl time.Duration) error {
	now := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		holder  sql.NullString
		expires sql.NullTime
	)
	if err := tx.QueryRow("SELECT owner, expires_at FROM engine_lease WHERE id = 1").Scan(&holder, &expires); err != nil {
		return fmt.Errorf("failed to read lease: %w", err)
	}

	if holder.Valid && holder.String != "" && holder.String != owner &&
		expires.Valid && expires.Time.After(now) {
		return fmt.Errorf("%w: held by %s until %s",
			shared.ErrLeaseHeld, holder.String, expires.Time.Format(time.RFC3339))
	}

	_, err = tx.Exec("UPDATE engine_lease SET owner = ?, acquired_at = ?, expires_at = ? WHERE id = 1",
		owner, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to write lease: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lease: %w", err)
	}

	return nil
}

// Release frees the lease if owner still holds it. Releasing a lease that
// expired and was taken over by someone else is a no-op.
func (r *LeaseRepository) Release(owner string) error {
	_, err := r.db.Exec("UPDATE engine_lease SET owner = NULL, acquired_at = NULL, expires_at = NULL WHERE id = 1 AND owner = ?", owner)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// Holder returns the live lease, or nil when the lease is free or expired.
func (r *LeaseRepository) Holder() (*Lease, error) {
	var (
		holder   sql.NullString
		acquired sql.NullTime
		expires  sql.NullTime
	)

	err := r.db.QueryRow("SELECT owner, acquired_at, expires_at FROM engine_lease WHERE id = 1").
		Scan(&holder, &acquired, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lease: %w", err)
	}

	if !holder.Valid || holder.String == "" {
		return nil, nil
	}
	if !expires.Valid || !expires.Time.After(time.Now()) {
		return nil, nil
	}

	lease := &Lease{Owner: holder.String, ExpiresAt: expires.Time}
	if acquired.Valid {
		lease.AcquiredAt = acquired.Time
	}

	return lease, nil
}
