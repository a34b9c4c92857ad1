package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scoutpulse/pulse/internal/app"
	"github.com/scoutpulse/pulse/internal/args"
	"github.com/scoutpulse/pulse/internal/config"
	"github.com/scoutpulse/pulse/internal/logging"
)

// main function to parse arguments and dispatch the requested command.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	arguments, err := args.ParseArgs(*cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if arguments.Verbose {
		level = "debug"
	}
	logger := logging.New(level)

	application := app.New(*cfg, arguments, logger)
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
