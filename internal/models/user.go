package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tavs/internal/shared"
)

// User represents an account row carried over from the legacy tracker.
// The spelling from the export is preserved; uniqueness is enforced
// case-insensitively by the uniqueness rules and a store-level index.
type User struct {
	id        string
	sequence  int
	username  string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewUser creates a User with the given sequence and username.
// Timestamps default to the current time.
func NewUser(sequence int, username string) *User {
	now := time.Now()
	return &User{
		sequence:  sequence,
		username:  username,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the unique identifier for this user.
func (u *User) ID() string { return u.id }

// Sequence returns the per-table ordering counter assigned at insert.
func (u *User) Sequence() int { return u.sequence }

// Username returns the username with its original spelling.
func (u *User) Username() string { return u.username }

// CreatedAt returns when this user was created.
func (u *User) CreatedAt() time.Time { return u.createdAt }

// UpdatedAt returns when this user was last updated.
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// DeletedAt returns the soft-delete timestamp, or nil if the user is live.
func (u *User) DeletedAt() *time.Time { return u.deletedAt }

// SetID assigns the unique identifier.
func (u *User) SetID(id string) { u.id = id }

// SetSequence assigns the per-table ordering counter.
func (u *User) SetSequence(sequence int) { u.sequence = sequence }

// SetCreatedAt overrides the creation timestamp. Used when a record carries
// its original timestamp in from the legacy export.
func (u *User) SetCreatedAt(t time.Time) { u.createdAt = t }

// SetUpdatedAt assigns the last-updated timestamp.
func (u *User) SetUpdatedAt(t time.Time) { u.updatedAt = t }

// SetDeletedAt assigns the soft-delete timestamp.
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

// Validate checks that the user carries the data the store requires.
func (u *User) Validate() error {
	if strings.TrimSpace(u.username) == "" {
		return fmt.Errorf("%w: username is required", shared.ErrInvalidInput)
	}
	return nil
}
