package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tavs/internal/engine"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/desertthunder/tavs/internal/ui"
	"github.com/urfave/cli/v3"
)

// MigrateUI runs the migration inside the interactive terminal UI.
func (r *Runner) MigrateUI(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	db, err := r.openStore(config)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}
	defer db.Close()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/tavs-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model, err := ui.NewModel(ctx, db, config, engine.EngineOpts{Logger: r.logger})
	if err != nil {
		return fmt.Errorf("failed to initialize UI: %w", err)
	}

	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
