// submodule cmd contains command definitions
//
// Process exit codes:
//
//	0: success, including a run with no outstanding work
//	1: usage, configuration, or store errors
//	2: another run holds the migration lease
//	3: step catalog inconsistent with the store marker
//	4: a migration step failed to apply
//	5: import completed but some rows were rejected
package main

import "github.com/urfave/cli/v3"

// setupCommand handles first-run provisioning of the config file and store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and initialize the store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// migrateCommand groups the migration operations: run, status, and the
// interactive UI.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate the store schema and import the flat-file export",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Apply outstanding steps, then the one-time import",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the run result as JSON",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Suppress per-step progress output",
					},
				},
				Action: r.MigrateRun,
			},
			{
				Name:  "status",
				Usage: "Show the store version, import flag, and applied history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output status as JSON",
					},
				},
				Action: r.MigrateStatus,
			},
			{
				Name:    "ui",
				Aliases: []string{"interactive"},
				Usage:   "Run the migration inside the interactive terminal UI",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.MigrateUI,
			},
		},
	}
}

// checkCommand handles pre-flight validation queries against the store.
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate candidate records against the store",
		Commands: []*cli.Command{
			{
				Name:  "username",
				Usage: "Check whether a username would be admitted",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.CheckUsername,
			},
		},
	}
}
