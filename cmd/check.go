package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tavs/internal/repositories"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/desertthunder/tavs/internal/usernames"
	"github.com/urfave/cli/v3"
)

// CheckUsername runs the incremental admission check for one candidate
// username against the store's current population. Prints the verdict and
// exits nonzero when the name would be rejected, so scripts can branch on
// the outcome.
func (r *Runner) CheckUsername(ctx context.Context, cmd *cli.Command) error {
	candidate := cmd.StringArg("name")
	if strings.TrimSpace(candidate) == "" {
		return cli.Exit(fmt.Sprintf("%v: username", shared.ErrMissingArgument), ExitUsage)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	db, err := r.openStore(config)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}
	defer db.Close()

	existing, err := repositories.NewUserRepository(db).Usernames()
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	verdict := usernames.Admit(candidate, existing)
	if verdict.Accepted {
		r.writePlain("✓ %q is free\n", strings.TrimSpace(candidate))
		return nil
	}

	r.writePlain("✗ %s\n", verdict.Reason())
	return cli.Exit("", ExitUsage)
}
