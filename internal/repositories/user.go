package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/desertthunder/tavs/internal/usernames"
)

// UserRepository implements [models.Repository] for [models.User] persistence.
//
// Every write keeps username_key (the trimmed, case-folded spelling) in step
// with username, so the unique index on username_key holds the
// case-insensitive uniqueness rule at all times.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	user.SetSequence(sequence)

	if user.ID() == "" {
		user.SetID(shared.GenerateID())
	}

	query := `
		INSERT INTO users (id, sequence, username, username_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, user.ID(), sequence, user.Username(),
		usernames.Normalize(user.Username()), user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// InsertTx inserts a user inside an existing transaction, assigning its
// sequence from the same transaction. The insert is a no-op when a user
// with the same username_key already exists; the return value reports
// whether a row was written.
func (r *UserRepository) InsertTx(tx *sql.Tx, user *models.User) (bool, error) {
	if err := user.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequenceTx(tx, "users")
	if err != nil {
		return false, fmt.Errorf("failed to generate sequence: %w", err)
	}
	user.SetSequence(sequence)

	if user.ID() == "" {
		user.SetID(shared.GenerateID())
	}

	query := `
		INSERT OR IGNORE INTO users (id, sequence, username, username_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query, user.ID(), sequence, user.Username(),
		usernames.Normalize(user.Username()), user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, sequence, username, created_at, updated_at, deleted_at
		FROM users
		WHERE id = ? AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByUsername retrieves a user by username, compared case-insensitively
// after trimming, excluding soft-deleted users
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `
		SELECT id, sequence, username, created_at, updated_at, deleted_at
		FROM users
		WHERE username_key = ? AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRow(query, usernames.Normalize(username)), username)
}

func (r *UserRepository) scanOne(row *sql.Row, ref string) (*models.User, error) {
	var (
		userID    string
		sequence  int
		username  string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&userID, &sequence, &username, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user := models.NewUser(sequence, username)
	user.SetID(userID)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}

	return user, nil
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET username = ?, username_key = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.Username(), usernames.Normalize(user.Username()), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found or already deleted: %s", user.ID())
	}

	return nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `
		SELECT id, sequence, username, created_at, updated_at, deleted_at
		FROM users
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if username, ok := criteria["username"].(string); ok && username != "" {
		query += " AND username_key = ?"
		args = append(args, usernames.Normalize(username))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var (
			userID    string
			sequence  int
			username  string
			createdAt time.Time
			updatedAt time.Time
			deletedAt sql.NullTime
		)

		err := rows.Scan(&userID, &sequence, &username, &createdAt, &updatedAt, &deletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		user := models.NewUser(sequence, username)
		user.SetID(userID)
		user.SetCreatedAt(createdAt)
		user.SetUpdatedAt(updatedAt)
		if deletedAt.Valid {
			user.SetDeletedAt(&deletedAt.Time)
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// Usernames returns every live username with its stored spelling, ordered
// by sequence. Uniqueness checks seed their enforcer from this.
func (r *UserRepository) Usernames() ([]string, error) {
	rows, err := r.db.Query("SELECT username FROM users WHERE deleted_at IS NULL ORDER BY sequence ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return names, nil
}

// Count returns the number of live users.
func (r *UserRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users WHERE deleted_at IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
