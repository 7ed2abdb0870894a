package cmd

import (
	"newsdesk/config"
	"newsdesk/hackernews"
	"newsdesk/mirror"
	"newsdesk/pocketbase"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the mirrored story collection",
		Description: `Tidy up the story collection by removing the oldest mirrored
		stories beyond the configured maximum.

		This keeps the collection size down and the feed fresh.`,
		Flags: storeFlags(),
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load(ctx.String("config"))
			if err != nil {
				return err
			}

			pb := pocketbase.New(ctx.String("pocketbase-url"))
			hn := hackernews.New(cfg.Mirror.AggregatorURL)
			m := mirror.New(hn, pb, cfg.Mirror, ctx.String("admin-identity"), ctx.String("admin-password"))
			return m.Tidy(ctx.Context)
		},
	}
}
