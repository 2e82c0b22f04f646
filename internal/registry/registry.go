// package registry holds the ordered catalog of schema migration steps.
//
// Steps are forward-only: there is no rollback SQL anywhere in the catalog.
// A step that turns out to be wrong is corrected by shipping a later step.
// The catalog is immutable once loaded; consumers get copies.
package registry

import (
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/tavs/internal/shared"
)

//go:embed sql/*.sql
var stepFiles embed.FS

// MigrationStep is one forward-only schema change.
type MigrationStep struct {
	Version     int
	Description string
	Apply       string // SQL executed inside the step's transaction
}

// Registry is the ordered catalog of migration steps.
type Registry struct {
	steps []MigrationStep // ascending by version
}

// New builds a Registry from the given steps, failing fast on anything that
// would make the catalog ambiguous: duplicate versions, non-positive
// versions, or steps with no SQL.
func New(steps []MigrationStep) (*Registry, error) {
	sorted := make([]MigrationStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	seen := make(map[int]string, len(sorted))
	for _, step := range sorted {
		if step.Version <= 0 {
			return nil, fmt.Errorf("%w: step %q has non-positive version %d",
				shared.ErrCatalogInvalid, step.Description, step.Version)
		}
		if strings.TrimSpace(step.Apply) == "" {
			return nil, fmt.Errorf("%w: step %d (%s) has no SQL",
				shared.ErrCatalogInvalid, step.Version, step.Description)
		}
		if prev, dup := seen[step.Version]; dup {
			return nil, fmt.Errorf("%w: version %d declared by both %q and %q",
				shared.ErrDuplicateVersion, step.Version, prev, step.Description)
		}
		seen[step.Version] = step.Description
	}

	return &Registry{steps: sorted}, nil
}

// Load builds the catalog from the embedded step files. File names follow
// NNNN_description.sql; a .sql file whose name does not parse fails loading.
func Load() (*Registry, error) {
	entries, err := stepFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read step directory: %w", err)
	}

	var steps []MigrationStep
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		version, description, err := parseStepName(name)
		if err != nil {
			return nil, err
		}

		content, err := stepFiles.ReadFile(filepath.Join("sql", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read step file %s: %w", name, err)
		}

		steps = append(steps, MigrationStep{
			Version:     version,
			Description: description,
			Apply:       string(content),
		})
	}

	return New(steps)
}

// parseStepName splits NNNN_description.sql into its version and a
// human-readable description.
func parseStepName(name string) (int, string, error) {
	base := strings.TrimSuffix(name, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("%w: step file %s has no description", shared.ErrCatalogInvalid, name)
	}

	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("%w: step file %s has no numeric version prefix", shared.ErrCatalogInvalid, name)
	}

	return version, strings.ReplaceAll(parts[1], "_", " "), nil
}

// Steps returns the catalog in ascending version order.
func (r *Registry) Steps() []MigrationStep {
	out := make([]MigrationStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// Latest returns the highest version in the catalog, or 0 when it is empty.
func (r *Registry) Latest() int {
	if len(r.steps) == 0 {
		return 0
	}
	return r.steps[len(r.steps)-1].Version
}

// Outstanding returns the steps still to apply for a store at the given
// version, in strictly ascending order. It is a pure function of the
// catalog and its argument.
func (r *Registry) Outstanding(current int) []MigrationStep {
	var out []MigrationStep
	for _, step := range r.steps {
		if step.Version > current {
			out = append(out, step)
		}
	}
	return out
}

// Validate checks that a store marker could have been produced by this
// catalog: zero for a fresh store, or a version some step declares.
// Anything else means the store and the catalog have diverged, and no step
// may be applied.
func (r *Registry) Validate(current int) error {
	if current == 0 {
		return nil
	}
	for _, step := range r.steps {
		if step.Version == current {
			return nil
		}
	}
	return fmt.Errorf("%w: store is at version %d, which no catalog step produces",
		shared.ErrCatalogInvalid, current)
}
