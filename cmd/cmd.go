// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/server"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file (.toml, .yaml or .yml)",
		Value:   "config.toml",
	}
}

func addrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "addr",
		Usage: "Base URL of a running server (default: the configured host and port)",
	}
}

// serveCommand starts the streaming server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the progress streaming server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Delay between emitted values",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: r.Serve,
	}
}

// watchCommand follows a live stream in the TUI
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"tui", "ui"},
		Usage:   "Open a progress stream and follow it in an interactive TUI",
		Flags: []cli.Flag{
			configFlag(),
			addrFlag(),
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Usage:   "Stream transport (sse or ws)",
				Value:   server.TransportSSE,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where TUI logs are written",
				Value: "./tmp/pulse-watch.log",
			},
		},
		Action: r.Watch,
	}
}

// statusCommand reports a running server's status
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show a running server's status and live sessions",
		Flags: []cli.Flag{
			configFlag(),
			addrFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Status,
	}
}

// sessionsCommand inspects and cancels live sessions on a running server
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect live sessions on a running server",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List live sessions, oldest first",
				Flags: []cli.Flag{
					configFlag(),
					addrFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionsList,
			},
			{
				Name:  "cancel",
				Usage: "Tear down a live session",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					configFlag(),
					addrFlag(),
				},
				Action: r.SessionsCancel,
			},
		},
	}
}

// historyCommand queries the session journal
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Query the journal of ended sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List ended sessions, newest first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "outcome",
						Usage: "Only sessions that ended this way (completed, failed, cancelled)",
					},
					&cli.StringFlag{
						Name:  "transport",
						Usage: "Only sessions streamed over this transport (sse, ws)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sessions to return",
						Value: 50,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, csv, markdown, json)",
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "stats",
				Usage: "Count ended sessions by outcome",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryStats,
			},
			{
				Name:  "prune",
				Usage: "Delete journal entries older than a given age",
				Flags: []cli.Flag{
					configFlag(),
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age of the entries to delete",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: r.HistoryPrune,
			},
		},
	}
}

// setupCommand handles configuration and journal setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and prepare the session journal",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:  "rollback",
				Usage: "Roll back the most recent journal migration",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.SetupRollback,
			},
		},
	}
}
