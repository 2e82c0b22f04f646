package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// State store errors
	ErrStoreUnavailable = fmt.Errorf("state store unavailable")
	ErrNotFound         = fmt.Errorf("record not found")
	ErrLeaseHeld        = fmt.Errorf("migration lease held by another run")

	// Decode errors
	ErrDecodeFailed   = fmt.Errorf("record decode failed")
	ErrUnknownKind    = fmt.Errorf("unknown record kind")
	ErrHeaderMismatch = fmt.Errorf("export header mismatch")

	// Uniqueness errors
	ErrUsernameTaken     = fmt.Errorf("username already taken")
	ErrUsernameCollision = fmt.Errorf("username conflicts with an existing spelling")

	// Migration catalog errors
	ErrCatalogInvalid   = fmt.Errorf("migration catalog inconsistent")
	ErrDuplicateVersion = fmt.Errorf("duplicate migration version")

	// Engine errors
	ErrStepFailed    = fmt.Errorf("migration step failed")
	ErrImportFailed  = fmt.Errorf("bootstrap import failed")
	ErrBadTransition = fmt.Errorf("illegal engine state transition")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
