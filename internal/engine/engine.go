// package engine drives the store from its current schema version to the
// head of the step catalog and runs the one-time legacy import.
//
// The core abstraction is Engine, which orchestrates the version check, the
// outstanding migration steps, and the flat-file import inside a single
// leased run. Operations emit progress updates via channels for non-blocking
// status reporting to CLI/UI layers.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tavs/internal/models"
	"github.com/desertthunder/tavs/internal/registry"
	"github.com/desertthunder/tavs/internal/repositories"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/desertthunder/tavs/internal/sources"
	"golang.org/x/time/rate"
)

// progressUpdatesPerSecond caps per-row progress traffic; phase boundary
// updates bypass the limiter.
const progressUpdatesPerSecond = 30

// State tracks where an engine run is in its lifecycle.
type State int

const (
	Idle State = iota
	Checking
	ApplyingSteps
	Importing
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case ApplyingSteps:
		return "applying_steps"
	case Importing:
		return "importing"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether no transition may leave s.
func (s State) Terminal() bool {
	return s == Committed || s == Failed
}

// transitions lists the forward edges of the run lifecycle. Failed is
// reachable from any non-terminal state and is handled separately.
var transitions = map[State][]State{
	Idle:          {Checking},
	Checking:      {ApplyingSteps},
	ApplyingSteps: {Importing, Committed},
	Importing:     {Committed},
}

// RunResult contains all data from one engine run.
type RunResult struct {
	StartVersion int                      // Schema version before the run
	EndVersion   int                      // Schema version after the run
	Applied      []registry.MigrationStep // Steps applied this run, in order
	ImportRan    bool                     // Whether the import phase executed
	Report       *models.ImportReport     // Import outcome, nil unless ImportRan
	ReportPath   string                   // Rejection report file, empty unless ImportRan
	FinalState   State                    // Committed or Failed
	Duration     time.Duration            // Wall-clock time of the run
}

// Engine drives one migration run over a single store.
// Contains dependencies on the step catalog, the record source, and the
// store repositories.
type Engine struct {
	db      *sql.DB
	config  *shared.Config
	catalog *registry.Registry
	source  sources.RecordSource
	logger  *log.Logger
	owner   string

	control *repositories.StateRepository
	lease   *repositories.LeaseRepository
	users   *repositories.UserRepository
	tasks   *repositories.TaskRepository
	logs    *repositories.LogEntryRepository

	state   State
	limiter *rate.Limiter
}

// EngineOpts contains optional dependencies for NewEngine.
// Zero-valued fields fall back to the embedded step catalog, the CSV files
// named in config, a stderr logger, and a random owner token.
type EngineOpts struct {
	Catalog *registry.Registry
	Source  sources.RecordSource
	Logger  *log.Logger
	Owner   string
}

// NewEngine creates an Engine over the given store.
func NewEngine(db *sql.DB, config *shared.Config, opts *EngineOpts) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: store handle not initialized", shared.ErrStoreUnavailable)
	}
	if config == nil {
		return nil, fmt.Errorf("%w: config not loaded", shared.ErrMissingConfig)
	}
	if opts == nil {
		opts = &EngineOpts{}
	}

	catalog := opts.Catalog
	if catalog == nil {
		loaded, err := registry.Load()
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}

	source := opts.Source
	if source == nil {
		source = sources.NewCSVSource(
			config.Import.UsersPath(),
			config.Import.TasksPath(),
			config.Import.LogsPath(),
		)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	owner := opts.Owner
	if owner == "" {
		owner = shared.GenerateID()
	}

	return &Engine{
		db:      db,
		config:  config,
		catalog: catalog,
		source:  source,
		logger:  logger,
		owner:   owner,
		control: repositories.NewStateRepository(db),
		lease:   repositories.NewLeaseRepository(db),
		users:   repositories.NewUserRepository(db),
		tasks:   repositories.NewTaskRepository(db),
		logs:    repositories.NewLogEntryRepository(db),
		state:   Idle,
		limiter: rate.NewLimiter(rate.Limit(progressUpdatesPerSecond), 1),
	}, nil
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Owner returns the lease owner token this engine runs under.
func (e *Engine) Owner() string {
	return e.owner
}

// Catalog returns the step catalog this engine runs against.
func (e *Engine) Catalog() *registry.Registry {
	return e.catalog
}

// transition moves the engine to the given state, rejecting moves the
// lifecycle does not allow. Failed is reachable from any non-terminal state.
func (e *Engine) transition(to State) error {
	if to == Failed {
		if e.state.Terminal() {
			return fmt.Errorf("%w: %s -> %s", shared.ErrBadTransition, e.state, to)
		}
		e.state = Failed
		return nil
	}
	for _, next := range transitions[e.state] {
		if next == to {
			e.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", shared.ErrBadTransition, e.state, to)
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// sendRowProgress forwards a per-row update when the limiter allows it, so
// large imports do not flood the channel.
func (e *Engine) sendRowProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if !e.limiter.Allow() {
		return
	}
	e.sendProgress(progress, update)
}

// Run drives the store to the catalog head: acquire the run lease, apply
// every outstanding step in order, then run the one-time import if it has
// not already completed. The version marker moves inside each step's
// transaction, so a failure at step N leaves the store exactly as step N-1
// committed it. A second run over an up-to-date store is a no-op.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{}
	defer func() {
		result.FinalState = e.state
		result.Duration = time.Since(started)
	}()

	if err := e.transition(Checking); err != nil {
		return result, err
	}
	e.sendProgress(progress, checkingUpdate())

	if err := e.control.Ensure(); err != nil {
		return e.fail(result, err)
	}

	if err := e.lease.Acquire(e.owner, e.config.Engine.LeaseTTL()); err != nil {
		return e.fail(result, err)
	}
	defer func() {
		if err := e.lease.Release(e.owner); err != nil {
			e.logger.Warn("failed to release run lease", "owner", e.owner, "error", err)
		}
	}()

	version, err := e.control.Version()
	if err != nil {
		return e.fail(result, err)
	}
	result.StartVersion = version
	result.EndVersion = version

	if err := e.catalog.Validate(version); err != nil {
		return e.fail(result, err)
	}

	outstanding := e.catalog.Outstanding(version)
	e.sendProgress(progress, versionUpdate(version, e.catalog.Latest(), len(outstanding)))
	e.logger.Info("store checked",
		"version", version,
		"latest", e.catalog.Latest(),
		"outstanding", len(outstanding))

	if err := e.transition(ApplyingSteps); err != nil {
		return e.fail(result, err)
	}

	total := len(outstanding)
	for i, step := range outstanding {
		if err := ctx.Err(); err != nil {
			return e.fail(result, stepError(step, fmt.Errorf("run canceled: %v", err)))
		}

		e.sendProgress(progress, applyingStepUpdate(i+1, total, step))
		if err := e.applyStep(step); err != nil {
			return e.fail(result, err)
		}

		result.Applied = append(result.Applied, step)
		result.EndVersion = step.Version
		e.sendProgress(progress, appliedStepUpdate(i+1, total, step))
		e.logger.Info("step applied", "version", step.Version, "description", step.Description)
	}

	imported, err := e.control.Import()
	if err != nil {
		return e.fail(result, err)
	}

	if imported.Completed {
		e.logger.Info("import already completed, skipping",
			"completed_at", imported.CompletedAt,
			"report", imported.ReportPath)
	} else {
		if err := e.transition(Importing); err != nil {
			return e.fail(result, err)
		}
		report, path, err := e.runImport(ctx, progress)
		if err != nil {
			return e.fail(result, err)
		}
		result.ImportRan = true
		result.Report = report
		result.ReportPath = path
	}

	if err := e.transition(Committed); err != nil {
		return e.fail(result, err)
	}

	e.logger.Info("run committed",
		"start_version", result.StartVersion,
		"end_version", result.EndVersion,
		"import_ran", result.ImportRan,
		"duration", time.Since(started))
	return result, nil
}

// fail moves the engine to Failed, logs the cause, and hands the partial
// result back alongside the error. Lease release happens in Run's defer.
func (e *Engine) fail(result *RunResult, err error) (*RunResult, error) {
	if terr := e.transition(Failed); terr != nil {
		e.logger.Error("could not enter failed state", "error", terr)
	}
	e.logger.Error("run failed", "error", err)
	return result, err
}

// stepError wraps err with the step it occurred in.
func stepError(step registry.MigrationStep, err error) error {
	return fmt.Errorf("%w: step %d (%s): %v", shared.ErrStepFailed, step.Version, step.Description, err)
}

// applyStep runs one catalog step. The step's SQL, the version marker
// update, and the history row commit in the same transaction; any failure
// rolls all three back.
func (e *Engine) applyStep(step registry.MigrationStep) error {
	tx, err := e.db.Begin()
	if err != nil {
		return stepError(step, err)
	}
	defer tx.Rollback()

	if err := repositories.ExecScript(tx, step.Apply); err != nil {
		return stepError(step, err)
	}
	if err := e.control.SetVersionTx(tx, step.Version); err != nil {
		return stepError(step, err)
	}
	if err := e.control.RecordStepTx(tx, step.Version, step.Description); err != nil {
		return stepError(step, err)
	}
	if err := tx.Commit(); err != nil {
		return stepError(step, err)
	}
	return nil
}

// Status is a read-only snapshot of the store's migration position.
type Status struct {
	Version     int                        // Current schema version marker
	Latest      int                        // Highest version in the catalog
	Outstanding int                        // Steps between Version and Latest
	Imported    bool                       // Whether the one-time import completed
	ImportedAt  *time.Time                 // When the import completed, nil until then
	ReportPath  string                     // Report written by the completed import
	History     []repositories.AppliedStep // Applied steps, ascending by version
	Lease       *repositories.Lease        // Current lease holder, nil when free
}

// Status reports the store position without taking the lease or mutating
// engine state.
func (e *Engine) Status() (*Status, error) {
	if err := e.control.Ensure(); err != nil {
		return nil, err
	}

	version, err := e.control.Version()
	if err != nil {
		return nil, err
	}

	imported, err := e.control.Import()
	if err != nil {
		return nil, err
	}

	history, err := e.control.History()
	if err != nil {
		return nil, err
	}

	holder, err := e.lease.Holder()
	if err != nil {
		return nil, err
	}

	return &Status{
		Version:     version,
		Latest:      e.catalog.Latest(),
		Outstanding: len(e.catalog.Outstanding(version)),
		Imported:    imported.Completed,
		ImportedAt:  imported.CompletedAt,
		ReportPath:  imported.ReportPath,
		History:     history,
		Lease:       holder,
	}, nil
}
