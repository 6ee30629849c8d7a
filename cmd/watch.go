package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/server"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/desertthunder/pulse/internal/ui"
)

// Watch opens a stream against a running server and follows it in the TUI.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	transport := cmd.String("transport")
	if transport != server.TransportSSE && transport != server.TransportWS {
		return fmt.Errorf("%w: transport must be %q or %q", shared.ErrInvalidArgument, server.TransportSSE, server.TransportWS)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	client := r.client(cmd)
	r.logger.Info("watching stream", "transport", transport)

	model := ui.NewModel(ctx, client, transport)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
