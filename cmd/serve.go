package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"newsdesk/config"
	"newsdesk/feed"
	"newsdesk/hackernews"
	"newsdesk/mirror"
	"newsdesk/pocketbase"
	"newsdesk/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the newsdesk web front end",
		Description: `Starts the newsdesk HTTP server and, unless disabled, the
		feed mirror loop that keeps the story collection in sync with the
		aggregator.`,
		Flags: append(storeFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"NEWSDESK_PORT"},
			},
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Value:   "localhost",
				Usage:   "Public hostname of the server",
				EnvVars: []string{"NEWSDESK_HOSTNAME"},
			},
			&cli.BoolFlag{
				Name:    "no-mirror",
				Usage:   "Do not run the feed mirror loop inside this process",
				EnvVars: []string{"NEWSDESK_NO_MIRROR"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load(ctx.String("config"))
			if err != nil {
				return err
			}

			pb := pocketbase.New(ctx.String("pocketbase-url"))

			app := server.New(&server.Config{
				Hostname: ctx.String("hostname"),
				PB:       pb,
				Reader:   feed.NewReader(pb),
				PageSize: cfg.Server.PageSize,
			})

			runCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			if !ctx.Bool("no-mirror") {
				hn := hackernews.New(cfg.Mirror.AggregatorURL)
				m := mirror.New(hn, pb, cfg.Mirror, ctx.String("admin-identity"), ctx.String("admin-password"))
				go func() {
					log.Info("Starting mirror loop...")
					if err := m.Loop(runCtx); err != nil && !errors.Is(err, context.Canceled) {
						log.WithFields(log.Fields{
							"error": err,
						}).Error("Mirror loop stopped")
					}
				}()
			}

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			go func() {
				<-c
				log.Info("Gracefully shutting down...")
				cancel()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Error shutting down server")
				}
			}()

			log.WithFields(log.Fields{
				"port": ctx.Int("port"),
			}).Info("Starting server...")
			return app.Listen(fmt.Sprintf(":%d", ctx.Int("port")))
		},
	}
}
