package cmd

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "newsdesk",
		Usage: "A server-rendered reader for a mirrored Hacker News feed",
		Description: `Newsdesk serves a small web front end for browsing a mirrored
		Hacker News feed, with per-user favorite and read-later lists.

		Stories, users and lists live in a PocketBase instance; newsdesk
		mirrors the newest aggregator stories into it and renders the pages.

		Flags can generally be set via environment variables, e.g.:

		--pocketbase-url => NEWSDESK_POCKETBASE_URL=http://127.0.0.1:8090
		--port => NEWSDESK_PORT=3000
		`,
		Before: func(ctx *cli.Context) error {
			// Optional .env file for local development
			_ = godotenv.Load()
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			syncCmd(),
			tidyCmd(),
			initCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// Flags shared by every command that talks to the record store.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "pocketbase-url",
			Aliases: []string{"u"},
			Value:   "http://127.0.0.1:8090",
			Usage:   "Base URL of the PocketBase instance",
			EnvVars: []string{"NEWSDESK_POCKETBASE_URL"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "config/newsdesk.toml",
			Usage:   "Path to the TOML configuration file",
			EnvVars: []string{"NEWSDESK_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "admin-identity",
			Usage:   "Superuser email for mirror writes",
			EnvVars: []string{"NEWSDESK_ADMIN_IDENTITY"},
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "Superuser password for mirror writes",
			EnvVars: []string{"NEWSDESK_ADMIN_PASSWORD"},
		},
	}
}
