package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/tavs/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := ""
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
			configPath = "config.toml"
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "tavs",
		Usage:    "Migrate the task tracker's flat-file export into a SQLite store",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			if msg := coder.Error(); msg != "" {
				logger.Error(msg)
			}
			os.Exit(coder.ExitCode())
		}
		logger.Fatalf("application error: %v", err)
	}
}
