package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tavs/internal/registry"
	"github.com/desertthunder/tavs/internal/repositories"
	"github.com/desertthunder/tavs/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup provisions a new installation: writes config.toml from the embedded
// template when missing, opens (creating if necessary) the store file, and
// bootstraps the control tables. Schema steps are left to `migrate run`.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		r.logger.Info("creating config file from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
	}

	r.logger.Info("initializing store", "path", config.Database.Path)

	db, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer db.Close()

	control := repositories.NewStateRepository(db)
	if err := control.Ensure(); err != nil {
		return fmt.Errorf("failed to bootstrap control tables: %w", err)
	}

	version, err := control.Version()
	if err != nil {
		return err
	}

	catalog, err := registry.Load()
	if err != nil {
		return err
	}

	r.writePlainln("Store ready at %s", config.Database.Path)
	r.writePlain("Schema version: %d of %d\n", version, catalog.Latest())
	if outstanding := len(catalog.Outstanding(version)); outstanding > 0 {
		r.writePlain("Run `tavs migrate run` to apply %d outstanding steps.\n", outstanding)
	}

	r.logger.Info("setup complete", "database", config.Database.Path, "version", version)
	return nil
}
