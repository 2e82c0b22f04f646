package main

import (
	"context"
	"time"

	"github.com/desertthunder/tavs/internal/engine"
	"github.com/urfave/cli/v3"
)

// MigrateStatus reports the store's migration position without taking the
// run lease: marker version, import flag, applied history, lease holder.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
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

	status, err := eng.Status()
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Store Status")
	r.writePlain("Schema version: %d of %d (%d outstanding)\n",
		status.Version, status.Latest, status.Outstanding)

	if status.Imported {
		r.writePlain("Import: completed")
		if status.ImportedAt != nil {
			r.writePlain(" %s", status.ImportedAt.Format(time.RFC3339))
		}
		r.writePlain("\n")
		if status.ReportPath != "" {
			r.writePlain("Report: %s\n", status.ReportPath)
		}
	} else {
		r.writePlain("Import: pending\n")
	}

	if status.Lease != nil {
		r.writePlain("Lease: held by %s until %s\n",
			status.Lease.Owner, status.Lease.ExpiresAt.Format(time.RFC3339))
	} else {
		r.writePlain("Lease: free\n")
	}

	if len(status.History) > 0 {
		r.writePlain("\nApplied steps:\n")
		for _, step := range status.History {
			r.writePlain("  %04d %-28s %s\n",
				step.Version, step.Description, step.AppliedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}
