package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/registry"
	"github.com/desertthunder/tavs/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with the control tables
// and every catalog step applied. The pool is pinned to one connection so
// the in-memory database survives across queries.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := NewStateRepository(db).Ensure(); err != nil {
		db.Close()
		t.Fatalf("failed to create control tables: %v", err)
	}

	catalog, err := registry.Load()
	if err != nil {
		db.Close()
		t.Fatalf("failed to load step catalog: %v", err)
	}

	for _, step := range catalog.Steps() {
		if err := applyStep(db, step.Apply); err != nil {
			db.Close()
			t.Fatalf("failed to apply step %d: %v", step.Version, err)
		}
	}

	return db
}

func applyStep(db *sql.DB, script string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ExecScript(tx, script); err != nil {
		return err
	}

	return tx.Commit()
}

// createTestUser inserts a user and fails the test if that does not work.
func createTestUser(t *testing.T, db *sql.DB, username string) *models.User {
	t.Helper()

	user := models.NewUser(0, username)
	if err := NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

// createTestTask inserts a task owned by the given user.
func createTestTask(t *testing.T, db *sql.DB, user *models.User, description string) *models.Task {
	t.Helper()

	task := models.NewTask(0, user.Username(), description, models.StatusOpen)
	task.SetUserID(user.ID())
	if err := NewTaskRepository(db).Create(task); err != nil {
		t.Fatalf("failed to create task %q: %v", description, err)
	}
	return task
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "alice")

		err := repo.Create(user)
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if user.ID() == "" {
			t.Error("user ID should be set after creation")
		}

		if user.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createTestUser(t, db, "alice")

		retrieved, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if retrieved.ID() != user.ID() {
			t.Errorf("expected ID %s, got %s", user.ID(), retrieved.ID())
		}

		if retrieved.Username() != "alice" {
			t.Errorf("expected username alice, got %s", retrieved.Username())
		}
	})

	t.Run("GetByUsername", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createTestUser(t, db, "Alice")

		retrieved, err := repo.GetByUsername("  alice  ")
		if err != nil {
			t.Fatalf("failed to get user by username: %v", err)
		}

		if retrieved.ID() != user.ID() {
			t.Errorf("expected ID %s, got %s", user.ID(), retrieved.ID())
		}

		if retrieved.Username() != "Alice" {
			t.Errorf("stored spelling should be preserved, got %s", retrieved.Username())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createTestUser(t, db, "alice")

		retrieved, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if err := repo.Update(retrieved); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createTestUser(t, db, "alice")

		if err := repo.Delete(user.ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		_, err := repo.Get(user.ID())
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for deleted user, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		for _, name := range []string{"alice", "bob", "carol"} {
			createTestUser(t, db, name)
		}

		retrieved, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}

		if len(retrieved) != 3 {
			t.Errorf("expected 3 users, got %d", len(retrieved))
		}

		filtered, err := repo.List(map[string]any{"username": "BOB"})
		if err != nil {
			t.Fatalf("failed to list filtered users: %v", err)
		}

		if len(filtered) != 1 {
			t.Errorf("expected 1 user, got %d", len(filtered))
		}

		if len(filtered) > 0 && filtered[0].Username() != "bob" {
			t.Errorf("expected bob, got %s", filtered[0].Username())
		}
	})

	t.Run("Usernames", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		createTestUser(t, db, "Alice")
		createTestUser(t, db, "bob")

		names, err := repo.Usernames()
		if err != nil {
			t.Fatalf("failed to list usernames: %v", err)
		}

		if len(names) != 2 {
			t.Fatalf("expected 2 usernames, got %d", len(names))
		}

		if names[0] != "Alice" || names[1] != "bob" {
			t.Errorf("expected stored spellings in sequence order, got %v", names)
		}
	})

	t.Run("InsertTx", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)

		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("failed to begin transaction: %v", err)
		}

		inserted, err := repo.InsertTx(tx, models.NewUser(0, "alice"))
		if err != nil {
			t.Fatalf("failed to insert user: %v", err)
		}
		if !inserted {
			t.Error("expected first insert to write a row")
		}

		// Same key, different spelling: the unique index ignores the write.
		inserted, err = repo.InsertTx(tx, models.NewUser(0, "ALICE"))
		if err != nil {
			t.Fatalf("conflicting insert should not error: %v", err)
		}
		if inserted {
			t.Error("expected conflicting insert to be ignored")
		}

		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count users: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 user, got %d", count)
		}
	})
}

func TestTaskRepository(t *testing.T) {
	t.Run("Create & Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTaskRepository(db)
		user := createTestUser(t, db, "alice")
		task := createTestTask(t, db, user, "water the plants")

		retrieved, err := repo.Get(task.ID())
		if err != nil {
			t.Fatalf("failed to get task: %v", err)
		}

		if retrieved.Description() != "water the plants" {
			t.Errorf("expected description 'water the plants', got %s", retrieved.Description())
		}

		if retrieved.UserID() != user.ID() {
			t.Errorf("expected user ID %s, got %s", user.ID(), retrieved.UserID())
		}

		if retrieved.Username() != "alice" {
			t.Errorf("expected username alice, got %s", retrieved.Username())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTaskRepository(db)
		user := createTestUser(t, db, "alice")
		task := createTestTask(t, db, user, "water the plants")

		task.SetStatus(models.StatusDone)
		task.SetDescription("water the plants twice")

		if err := repo.Update(task); err != nil {
			t.Fatalf("failed to update task: %v", err)
		}

		retrieved, err := repo.Get(task.ID())
		if err != nil {
			t.Fatalf("failed to get task: %v", err)
		}

		if retrieved.Status() != models.StatusDone {
			t.Errorf("expected status done, got %s", retrieved.Status())
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTaskRepository(db)
		alice := createTestUser(t, db, "alice")
		bob := createTestUser(t, db, "bob")

		createTestTask(t, db, alice, "water the plants")
		createTestTask(t, db, bob, "fix the gate")
		done := createTestTask(t, db, bob, "sweep the porch")
		done.SetStatus(models.StatusDone)
		if err := repo.Update(done); err != nil {
			t.Fatalf("failed to update task: %v", err)
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list tasks: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 tasks, got %d", len(all))
		}

		byOwner, err := repo.List(map[string]any{"user_id": bob.ID()})
		if err != nil {
			t.Fatalf("failed to list tasks by owner: %v", err)
		}
		if len(byOwner) != 2 {
			t.Errorf("expected 2 tasks for bob, got %d", len(byOwner))
		}

		byStatus, err := repo.List(map[string]any{"status": models.StatusDone})
		if err != nil {
			t.Fatalf("failed to list tasks by status: %v", err)
		}
		if len(byStatus) != 1 {
			t.Errorf("expected 1 done task, got %d", len(byStatus))
		}
	})

	t.Run("IDs", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTaskRepository(db)
		user := createTestUser(t, db, "alice")
		task1 := createTestTask(t, db, user, "water the plants")
		task2 := createTestTask(t, db, user, "fix the gate")

		ids, err := repo.IDs()
		if err != nil {
			t.Fatalf("failed to list task ids: %v", err)
		}

		if len(ids) != 2 {
			t.Fatalf("expected 2 ids, got %d", len(ids))
		}

		seen := map[string]bool{}
		for _, id := range ids {
			seen[id] = true
		}
		if !seen[task1.ID()] || !seen[task2.ID()] {
			t.Errorf("expected ids to contain both tasks, got %v", ids)
		}
	})

	t.Run("InsertTx", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTaskRepository(db)
		user := createTestUser(t, db, "alice")

		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("failed to begin transaction: %v", err)
		}

		task := models.NewTask(0, "alice", "water the plants", models.StatusOpen)
		task.SetID("legacy-task-1")
		task.SetUserID(user.ID())

		inserted, err := repo.InsertTx(tx, task)
		if err != nil {
			t.Fatalf("failed to insert task: %v", err)
		}
		if !inserted {
			t.Error("expected first insert to write a row")
		}

		dup := models.NewTask(0, "alice", "water the plants again", models.StatusOpen)
		dup.SetID("legacy-task-1")
		dup.SetUserID(user.ID())

		inserted, err = repo.InsertTx(tx, dup)
		if err != nil {
			t.Fatalf("duplicate insert should not error: %v", err)
		}
		if inserted {
			t.Error("expected duplicate insert to be ignored")
		}

		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count tasks: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 task, got %d", count)
		}
	})
}

func TestLogEntryRepository(t *testing.T) {
	t.Run("Create & Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLogEntryRepository(db)
		user := createTestUser(t, db, "alice")
		task := createTestTask(t, db, user, "water the plants")

		entry := models.NewLogEntry(0, task.ID(), "alice", "front row done")
		entry.SetUserID(user.ID())

		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create log entry: %v", err)
		}

		retrieved, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get log entry: %v", err)
		}

		if retrieved.Note() != "front row done" {
			t.Errorf("expected note 'front row done', got %s", retrieved.Note())
		}

		if retrieved.TaskID() != task.ID() {
			t.Errorf("expected task ID %s, got %s", task.ID(), retrieved.TaskID())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLogEntryRepository(db)
		user := createTestUser(t, db, "alice")
		task := createTestTask(t, db, user, "water the plants")

		entry := models.NewLogEntry(0, task.ID(), "alice", "front row done")
		entry.SetUserID(user.ID())
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create log entry: %v", err)
		}

		entry.SetNote("front and back rows done")
		if err := repo.Update(entry); err != nil {
			t.Fatalf("failed to update log entry: %v", err)
		}

		retrieved, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get log entry: %v", err)
		}

		if retrieved.Note() != "front and back rows done" {
			t.Errorf("expected updated note, got %s", retrieved.Note())
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLogEntryRepository(db)
		user := createTestUser(t, db, "alice")
		task1 := createTestTask(t, db, user, "water the plants")
		task2 := createTestTask(t, db, user, "fix the gate")

		for _, ref := range []struct {
			taskID string
			note   string
		}{
			{task1.ID(), "front row done"},
			{task1.ID(), "back row done"},
			{task2.ID(), "hinge replaced"},
		} {
			entry := models.NewLogEntry(0, ref.taskID, "alice", ref.note)
			entry.SetUserID(user.ID())
			if err := repo.Create(entry); err != nil {
				t.Fatalf("failed to create log entry: %v", err)
			}
		}

		byTask, err := repo.List(map[string]any{"task_id": task1.ID()})
		if err != nil {
			t.Fatalf("failed to list log entries by task: %v", err)
		}
		if len(byTask) != 2 {
			t.Errorf("expected 2 entries for task1, got %d", len(byTask))
		}

		byUser, err := repo.List(map[string]any{"user_id": user.ID()})
		if err != nil {
			t.Fatalf("failed to list log entries by user: %v", err)
		}
		if len(byUser) != 3 {
			t.Errorf("expected 3 entries for alice, got %d", len(byUser))
		}
	})

	t.Run("InsertTx", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLogEntryRepository(db)
		user := createTestUser(t, db, "alice")
		task := createTestTask(t, db, user, "water the plants")

		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("failed to begin transaction: %v", err)
		}

		entry := models.NewLogEntry(0, task.ID(), "alice", "front row done")
		entry.SetID("legacy-log-1")
		entry.SetUserID(user.ID())

		inserted, err := repo.InsertTx(tx, entry)
		if err != nil {
			t.Fatalf("failed to insert log entry: %v", err)
		}
		if !inserted {
			t.Error("expected first insert to write a row")
		}

		dup := models.NewLogEntry(0, task.ID(), "alice", "front row done again")
		dup.SetID("legacy-log-1")
		dup.SetUserID(user.ID())

		inserted, err = repo.InsertTx(tx, dup)
		if err != nil {
			t.Fatalf("duplicate insert should not error: %v", err)
		}
		if inserted {
			t.Error("expected duplicate insert to be ignored")
		}

		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count log entries: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 log entry, got %d", count)
		}
	})
}

func TestStateRepository(t *testing.T) {
	t.Run("Ensure is idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewStateRepository(db)

		// setupTestDB already ran Ensure; a second run must not disturb state.
		if err := repo.Ensure(); err != nil {
			t.Fatalf("repeated Ensure failed: %v", err)
		}

		version, err := repo.Version()
		if err != nil {
			t.Fatalf("failed to read version: %v", err)
		}
		if version != 0 {
			t.Errorf("expected fresh store version 0, got %d", version)
		}
	})

	t.Run("SetVersionTx and RecordStepTx", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewStateRepository(db)

		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("failed to begin transaction: %v", err)
		}

		if err := repo.SetVersionTx(tx, 1); err != nil {
			t.Fatalf("failed to set version: %v", err)
		}
		if err := repo.RecordStepTx(tx, 1, "create users"); err != nil {
			t.Fatalf("failed to record step: %v", err)
		}

		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}

		version, err := repo.Version()
		if err != nil {
			t.Fatalf("failed to read version: %v", err)
		}
		if version != 1 {
			t.Errorf("expected version 1, got %d", version)
		}

		history, err := repo.History()
		if err != nil {
			t.Fatalf("failed to read history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 history row, got %d", len(history))
		}
		if history[0].Version != 1 || history[0].Description != "create users" {
			t.Errorf("unexpected history row: %+v", history[0])
		}
		if history[0].AppliedAt.IsZero() {
			t.Error("expected applied_at to be set")
		}
	})

	t.Run("Marker rolls back with the step", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewStateRepository(db)

		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("failed to begin transaction: %v", err)
		}

		if err := repo.SetVersionTx(tx, 1); err != nil {
			t.Fatalf("failed to set version: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("failed to roll back: %v", err)
		}

		version, err := repo.Version()
		if err != nil {
			t.Fatalf("failed to read version: %v", err)
		}
		if version != 0 {
			t.Errorf("expected version 0 after rollback, got %d", version)
		}
	})

	t.Run("Import flag", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewStateRepository(db)

		state, err := repo.Import()
		if err != nil {
			t.Fatalf("failed to read import state: %v", err)
		}
		if state.Completed {
			t.Error("fresh store should not be marked imported")
		}
		if state.CompletedAt != nil {
			t.Error("fresh store should have no completion time")
		}

		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("failed to begin transaction: %v", err)
		}
		if err := repo.MarkImportedTx(tx, "reports/import_report.csv"); err != nil {
			t.Fatalf("failed to mark imported: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}

		state, err = repo.Import()
		if err != nil {
			t.Fatalf("failed to read import state: %v", err)
		}
		if !state.Completed {
			t.Error("expected import to be marked completed")
		}
		if state.CompletedAt == nil {
			t.Error("expected completion time to be set")
		}
		if state.ReportPath != "reports/import_report.csv" {
			t.Errorf("expected report path to persist, got %s", state.ReportPath)
		}
	})
}

func TestLeaseRepository(t *testing.T) {
	t.Run("Acquire and Release", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLeaseRepository(db)

		if err := repo.Acquire("owner-a", time.Minute); err != nil {
			t.Fatalf("failed to acquire free lease: %v", err)
		}

		lease, err := repo.Holder()
		if err != nil {
			t.Fatalf("failed to read lease: %v", err)
		}
		if lease == nil || lease.Owner != "owner-a" {
			t.Fatalf("expected owner-a to hold the lease, got %+v", lease)
		}

		if err := repo.Release("owner-a"); err != nil {
			t.Fatalf("failed to release lease: %v", err)
		}

		lease, err = repo.Holder()
		if err != nil {
			t.Fatalf("failed to read lease: %v", err)
		}
		if lease != nil {
			t.Errorf("expected lease to be free, got %+v", lease)
		}
	})

	t.Run("Held lease rejects other owners", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLeaseRepository(db)

		if err := repo.Acquire("owner-a", time.Minute); err != nil {
			t.Fatalf("failed to acquire lease: %v", err)
		}

		err := repo.Acquire("owner-b", time.Minute)
		if !errors.Is(err, shared.ErrLeaseHeld) {
			t.Errorf("expected ErrLeaseHeld, got %v", err)
		}

		// The holder may re-acquire to extend its own lease.
		if err := repo.Acquire("owner-a", time.Minute); err != nil {
			t.Errorf("holder should be able to extend its lease: %v", err)
		}
	})

	t.Run("Expired lease can be taken over", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLeaseRepository(db)

		if err := repo.Acquire("owner-a", -time.Second); err != nil {
			t.Fatalf("failed to acquire lease: %v", err)
		}

		lease, err := repo.Holder()
		if err != nil {
			t.Fatalf("failed to read lease: %v", err)
		}
		if lease != nil {
			t.Errorf("expired lease should read as free, got %+v", lease)
		}

		if err := repo.Acquire("owner-b", time.Minute); err != nil {
			t.Errorf("expected expired lease to be taken over: %v", err)
		}

		lease, err = repo.Holder()
		if err != nil {
			t.Fatalf("failed to read lease: %v", err)
		}
		if lease == nil || lease.Owner != "owner-b" {
			t.Errorf("expected owner-b to hold the lease, got %+v", lease)
		}
	})

	t.Run("Release by non-holder is a no-op", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLeaseRepository(db)

		if err := repo.Acquire("owner-a", time.Minute); err != nil {
			t.Fatalf("failed to acquire lease: %v", err)
		}

		if err := repo.Release("owner-b"); err != nil {
			t.Fatalf("release by non-holder should not error: %v", err)
		}

		lease, err := repo.Holder()
		if err != nil {
			t.Fatalf("failed to read lease: %v", err)
		}
		if lease == nil || lease.Owner != "owner-a" {
			t.Errorf("expected owner-a to still hold the lease, got %+v", lease)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seq1, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}

	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	// Get second sequence
	seq2, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}

	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	taskSeq, err := NextSequence(db, "tasks")
	if err != nil {
		t.Fatalf("failed to get task sequence: %v", err)
	}

	if taskSeq != 1 {
		t.Errorf("expected first task sequence to be 1, got %d", taskSeq)
	}
}
