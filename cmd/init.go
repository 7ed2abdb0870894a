package cmd

import (
	"fmt"
	"strconv"

	"newsdesk/config"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a starter configuration file",
		Description: `Interactively creates a TOML configuration file with the
		mirror and server settings, starting from the defaults.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/newsdesk.toml",
				Usage:   "Path to write the configuration file to",
				EnvVars: []string{"NEWSDESK_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg := config.Default()

			limit, err := prompt.New().Ask("Stories to mirror per pass:").
				Input(strconv.Itoa(cfg.Mirror.StoriesLimit))
			if err != nil {
				return err
			}
			if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
				cfg.Mirror.StoriesLimit = parsed
			}

			maxSaved, err := prompt.New().Ask("Maximum stories to keep:").
				Input(strconv.Itoa(cfg.Mirror.MaxSavedStories))
			if err != nil {
				return err
			}
			if parsed, err := strconv.Atoi(maxSaved); err == nil && parsed > 0 {
				cfg.Mirror.MaxSavedStories = parsed
			}

			pageSize, err := prompt.New().Ask("Stories per page:").
				Input(strconv.Itoa(cfg.Server.PageSize))
			if err != nil {
				return err
			}
			if parsed, err := strconv.Atoi(pageSize); err == nil && parsed > 0 {
				cfg.Server.PageSize = parsed
			}

			path := ctx.String("config")
			if err := config.Write(path, cfg); err != nil {
				return err
			}

			fmt.Println("Configuration written to", path)
			return nil
		},
	}
}
