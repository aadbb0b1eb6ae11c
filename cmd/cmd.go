// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/songmigrate/internal/formatter"
	"github.com/urfave/cli/v3"
)

func sessionFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "session",
		Aliases:  []string{"s"},
		Usage:    "Session id naming the stored Spotify token and YouTube headers",
		Required: required,
	}
}

func transferOptionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "create",
			Usage: "Create destination playlists that do not exist (default from [transfer])",
		},
		&cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Add to destination playlists that already exist (default from [transfer])",
		},
		&cli.StringFlag{
			Name:  "privacy",
			Usage: "Privacy of created playlists: PRIVATE, PUBLIC or UNLISTED",
		},
	}
}

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: text, markdown, csv or json",
			Value:   string(formatter.FormatText),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Also write the report to this file",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, credential directories and database",
		Action: r.Setup,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List the session's Spotify playlists, liked songs first",
		Flags: []cli.Flag{
			sessionFlag(true),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Playlists,
	}
}

func transferCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		sessionFlag(true),
		&cli.StringSliceFlag{
			Name:    "playlist",
			Aliases: []string{"p"},
			Usage:   "Playlist id to transfer (repeatable, \"liked_songs\" for liked songs)",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Transfer every playlist including liked songs",
		},
		&cli.BoolFlag{
			Name:  "enqueue",
			Usage: "Queue the transfer for a worker and print its handle",
		},
	}
	flags = append(flags, transferOptionFlags()...)
	flags = append(flags, formatFlags()...)

	return &cli.Command{
		Name:   "transfer",
		Usage:  "Transfer playlists from Spotify to the destination",
		Flags:  flags,
		Action: r.Transfer,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Pick playlists and follow the transfer interactively",
		Flags:  append([]cli.Flag{sessionFlag(true)}, transferOptionFlags()...),
		Action: r.TUI,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the status and progress of a queued transfer or session",
		Flags: []cli.Flag{
			sessionFlag(false),
			&cli.StringFlag{
				Name:  "handle",
				Usage: "Job handle printed by transfer --enqueue",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

func cancelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Ask a running transfer to stop after the current track",
		Flags: []cli.Flag{
			sessionFlag(false),
			&cli.StringFlag{
				Name:  "handle",
				Usage: "Job handle printed by transfer --enqueue",
			},
		},
		Action: r.Cancel,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow a transfer running in another process",
		Flags: []cli.Flag{
			sessionFlag(false),
			&cli.StringFlag{
				Name:  "handle",
				Usage: "Job handle printed by transfer --enqueue",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval",
			},
		},
		Action: r.Watch,
	}
}

func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Consume queued transfers from RabbitMQ",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent transfers (default amqp.workers)",
			},
		},
		Action: r.Worker,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default server.host:server.port)",
			},
			&cli.BoolFlag{
				Name:  "local-worker",
				Usage: "Run transfers in this process instead of publishing to RabbitMQ",
			},
		},
		Action: r.Serve,
	}
}

func reportsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "Inspect persisted transfer runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List transfer runs, newest first",
				Flags: []cli.Flag{
					sessionFlag(false),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ReportsList,
			},
			{
				Name:      "show",
				Usage:     "Render the report of a run",
				ArgsUsage: "<run-id>",
				Flags:     formatFlags(),
				Action:    r.ReportsShow,
			},
			{
				Name:      "delete",
				Usage:     "Delete a run and its events",
				ArgsUsage: "<run-id>",
				Action:    r.ReportsDelete,
			},
		},
	}
}
