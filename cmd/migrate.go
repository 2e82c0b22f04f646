package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tavs/internal/engine"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/urfave/cli/v3"
)

// Exit codes for migrate run. Scripted callers branch on these.
const (
	ExitOK         = 0 // Run committed with nothing rejected, or no work to do
	ExitUsage      = 1 // Usage, configuration, or store errors
	ExitLeaseHeld  = 2 // Another run holds the migration lease
	ExitCatalog    = 3 // Step catalog inconsistent with the store marker
	ExitStepFailed = 4 // A migration step failed to apply
	ExitRejections = 5 // Import committed but some rows were rejected
)

// MigrateRun drives one full engine run: outstanding schema steps in order,
// then the one-time flat-file import.
func (r *Runner) MigrateRun(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	db, err := r.openStore(config)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}
	defer db.Close()

	eng, err := engine.NewEngine(db, config, &engine.EngineOpts{Logger: r.logger})
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	var progressCh chan engine.ProgressUpdate
	done := make(chan struct{})
	if cmd.Bool("quiet") {
		close(done)
	} else {
		progressCh = make(chan engine.ProgressUpdate, 64)
		go func() {
			defer close(done)
			for update := range progressCh {
				r.printProgress(update)
			}
		}()
	}

	result, err := eng.Run(ctx, progressCh)
	if progressCh != nil {
		close(progressCh)
	}
	<-done

	if err != nil {
		return exitForRunError(err)
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(result, true); err != nil {
			return cli.Exit(err.Error(), ExitUsage)
		}
	} else {
		r.writeRunSummary(result)
	}

	return exitForResult(result)
}

// printProgress renders one engine update on the terminal.
func (r *Runner) printProgress(update engine.ProgressUpdate) {
	switch update.Phase {
	case engine.CheckState:
		r.writePlain("🔍 %s\n", update.Message)
	case engine.ApplySteps:
		r.writePlain("%s\n", update.Message)
	case engine.DecodeRows:
		r.writePlain("\n📥 %s\n", update.Message)
	case engine.ImportUsers, engine.ImportTasks, engine.ImportLogs:
		r.writePlain("   %s\n", update.Message)
	case engine.WriteReport:
		r.writePlain("\n📝 %s\n", update.Message)
	default:
		r.writePlain("%s\n", update.Message)
	}
}

// writeRunSummary prints the human-readable outcome of a committed run.
func (r *Runner) writeRunSummary(result *engine.RunResult) {
	r.writePlainHeader("Migration Complete")
	r.writePlain("Schema version: %d → %d\n", result.StartVersion, result.EndVersion)

	if len(result.Applied) == 0 {
		r.writePlain("No outstanding steps.\n")
	} else {
		for _, step := range result.Applied {
			r.writePlain("  ✓ %04d %s\n", step.Version, step.Description)
		}
	}

	if !result.ImportRan {
		r.writePlain("\nImport already completed, skipped.\n")
	} else if report := result.Report; report != nil {
		r.writePlain("\nImported: %d users, %d tasks, %d log entries\n",
			report.Users.Admitted, report.Tasks.Admitted, report.Logs.Admitted)
		if len(report.Rejected) > 0 {
			r.writePlain("Rejected %d rows:\n", len(report.Rejected))
			for _, rej := range report.Rejected {
				r.writePlain("  - %s line %d (%s): %s\n", rej.Kind, rej.Line, rej.Value, rej.Reason)
			}
			r.writePlain("Report: %s\n", result.ReportPath)
		}
	}

	r.writePlain("\nDone in %s.\n", result.Duration.Round(time.Millisecond))
}

// exitForRunError maps an engine failure to its documented exit code. The
// engine's sentinel errors already carry the failing detail (step version,
// lease holder), so the message passes through unchanged.
func exitForRunError(err error) cli.ExitCoder {
	code := ExitUsage
	switch {
	case errors.Is(err, shared.ErrLeaseHeld):
		code = ExitLeaseHeld
	case errors.Is(err, shared.ErrCatalogInvalid), errors.Is(err, shared.ErrDuplicateVersion):
		code = ExitCatalog
	case errors.Is(err, shared.ErrStepFailed):
		code = ExitStepFailed
	}
	return cli.Exit(err.Error(), code)
}

// exitForResult distinguishes a clean commit from one that rejected rows.
// Returns nil when every row was admitted or no import ran.
func exitForResult(result *engine.RunResult) error {
	if result.ImportRan && result.Report != nil && result.Report.TotalRejected() > 0 {
		return cli.Exit(fmt.Sprintf("import completed with %d rejected rows, report: %s",
			result.Report.TotalRejected(), result.ReportPath), ExitRejections)
	}
	return nil
}
