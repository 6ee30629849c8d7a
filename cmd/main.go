package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		ConfigPath: "config.toml",
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "pulse",
		Usage:    "Stream periodic progress updates over Server-Sent Events and WebSockets",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidConfig), errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
			logger.Error("invalid usage", "err", err)
			os.Exit(2)
		case errors.Is(err, shared.ErrServiceUnavailable):
			logger.Error("server unavailable", "err", err)
			os.Exit(3)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
