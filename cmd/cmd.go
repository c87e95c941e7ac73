// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/docsync/internal/formatter"
	"github.com/urfave/cli/v3"
)

var formatUsage = fmt.Sprintf("Output format (%s)", strings.Join(formatter.Formats, ", "))

func (r *Runner) globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
		&cli.BoolFlag{
			Name:  "offline",
			Usage: "Treat the store as unreachable; sync commands fail without network calls",
		},
	}
}

// setupCommand initializes the config file and the bookkeeping database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Setup,
	}
}

// sessionCommand checks that the configured credentials are accepted.
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "session",
		Usage:  "Log in to the store with the credentials in the configured URL",
		Action: r.Session,
	}
}

func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "upload",
		Aliases: []string{"put"},
		Usage:   "Create or update a document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Document ID (generated when empty)",
			},
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Document title",
			},
			&cli.StringFlag{
				Name:  "tags",
				Usage: "Comma separated tags",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read content from file (- for stdin)",
			},
			&cli.StringFlag{
				Name:  "content",
				Usage: "Document content",
			},
			&cli.StringFlag{
				Name:  "rev",
				Usage: "Revision to update (defaults to the tracked revision)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the saved document as JSON",
			},
		},
		Action: r.Upload,
	}
}

func changesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "changes",
		Usage: "Poll the change feed for tracked (or given) documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "since",
				Usage: "Cursor to start after (defaults to the stored cursor)",
			},
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Document IDs to watch (defaults to every tracked document)",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Forget the stored cursor before polling",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"F"},
				Usage:   formatUsage,
				Value:   formatter.FormatText,
			},
		},
		Action: r.Changes,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"get"},
		Usage:     "Fetch documents with their content",
		ArgsUsage: "<id>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Write each body to {dir}/{id}.txt instead of printing",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"F"},
				Usage:   formatUsage,
				Value:   formatter.FormatMarkdown,
			},
		},
		Action: r.Download,
	}
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List documents, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tag",
				Usage: "Only documents with this tag",
			},
			&cli.Int64Flag{
				Name:  "before",
				Usage: "Only documents updated at or before this time (milliseconds since epoch)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"F"},
				Usage:   formatUsage,
				Value:   formatter.FormatText,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the export to a file",
			},
		},
		Action: r.List,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete documents in one batch",
		ArgsUsage: "<id>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "rev",
				Usage: "Revision of the document (single id only; defaults to the tracked revision)",
			},
		},
		Action: r.Delete,
	}
}

// browseCommand returns the top-level TUI command for interactive browsing.
func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "browse",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive document browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tag",
				Usage: "Start filtered by this tag",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the browser owns the terminal",
				Value: "./tmp/docsync-tui.log",
			},
		},
		Action: r.Browse,
	}
}
