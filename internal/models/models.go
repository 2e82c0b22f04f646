// package models defines the data model for the task migration service
package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the task migration service.
// Implementations include User, Task, and LogEntry.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Kind identifies which legacy export layout a CSV row declares.
type Kind int

const (
	KindUser Kind = iota
	KindTask
	KindLogEntry
)

// String returns the kind name used in reports and log output.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindTask:
		return "task"
	case KindLogEntry:
		return "log_entry"
	default:
		return "unknown"
	}
}
