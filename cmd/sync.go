package cmd

import (
	"newsdesk/config"
	"newsdesk/hackernews"
	"newsdesk/mirror"
	"newsdesk/pocketbase"

	"github.com/urfave/cli/v2"
)

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror the newest aggregator stories into the record store",
		Description: `Runs one mirror pass: fetches the newest stories from the
		aggregator, upserts them into the story collection and trims the
		collection to the configured maximum.

		With --loop the pass repeats on the configured interval until
		interrupted.`,
		Flags: append(storeFlags(),
			&cli.BoolFlag{
				Name:  "loop",
				Usage: "Keep syncing on the configured interval",
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load(ctx.String("config"))
			if err != nil {
				return err
			}

			pb := pocketbase.New(ctx.String("pocketbase-url"))
			hn := hackernews.New(cfg.Mirror.AggregatorURL)
			m := mirror.New(hn, pb, cfg.Mirror, ctx.String("admin-identity"), ctx.String("admin-password"))

			if ctx.Bool("loop") {
				return m.Loop(ctx.Context)
			}

			if err := m.Sync(ctx.Context); err != nil {
				return err
			}
			return m.Tidy(ctx.Context)
		},
	}
}
