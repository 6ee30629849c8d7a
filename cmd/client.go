package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/shared"
)

// Status prints a running server's reporting status.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	status, err := r.client(cmd).Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s: %s", status.Node, status.Status))
	r.writePlain("Uptime:          %s\n", time.Since(time.Unix(status.StartupTime, 0)).Truncate(time.Second))
	r.writePlain("Sessions opened: %d\n", status.SessionsOpened)
	r.writePlain("Live sessions:   %d\n", len(status.Sessions))
	r.writePlain("Process:         pid %d, %.1f MiB rss, %.1f%% cpu, %d goroutines\n",
		status.Process.PID, float64(status.Process.RSSBytes)/(1<<20), status.Process.CPUPercent, status.Process.Goroutines)
	return nil
}

// SessionsList prints the live sessions on a running server.
func (r *Runner) SessionsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	infos, err := r.client(cmd).Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(infos, true)
	}

	if len(infos) == 0 {
		return r.writePlain("No live sessions\n")
	}
	for _, info := range infos {
		r.writePlain("%s  %-3s  %-9s  %4d emitted  %s\n",
			info.ID, info.Transport, info.State, info.Emitted, time.Since(info.CreatedAt).Truncate(time.Second))
	}
	return nil
}

// SessionsCancel tears down one live session on a running server.
func (r *Runner) SessionsCancel(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	if err := r.client(cmd).Cancel(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}

	r.logger.Info("session cancelled", "session", id)
	return r.writePlain("✓ Cancelled %s\n", id)
}
