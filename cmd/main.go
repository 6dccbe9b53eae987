package main

import (
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"jigctl/internal/app"
	"jigctl/internal/app/cli"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// main is the entry point for the application.
func main() {
	runApp()
}

// runApp parses the command line, loads the configuration, and runs the fx
// application until it receives a shutdown signal (§6).
func runApp() {
	opts, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg.ApplyCLI(opts.ConfigDirs, opts.PlainOutput)

	if len(cfg.ConfigDirs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one --config-dir is required")
		os.Exit(1)
	}

	createApp(cfg).Run()
}

// createApp builds the FX application with the given config.
func createApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.WithLogger(createFxLogger(cfg)),
		fx.Supply(cfg),
		logger.Module,
		app.Module,
	)
}

// createFxLogger returns an FX logger based on the config.
func createFxLogger(cfg *config.Config) func() fxevent.Logger {
	return func() fxevent.Logger {
		if cfg.Logging.Level == logger.DebugLevel {
			return &fxevent.ConsoleLogger{W: os.Stdout}
		}

		return fxevent.NopLogger
	}
}
