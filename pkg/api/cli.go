package api

import (
	"time"

	"github.com/mmathieum/montransit/pkg/api/routes"
	"github.com/mmathieum/montransit/pkg/cachestore"
	"github.com/mmathieum/montransit/pkg/config"
	"github.com/mmathieum/montransit/pkg/events"
	"github.com/mmathieum/montransit/pkg/provider"
	"github.com/mmathieum/montransit/pkg/provider/source/offline"
	"github.com/mmathieum/montransit/pkg/provider/source/stmapi"
	"github.com/mmathieum/montransit/pkg/provider/source/stminfo"
	"github.com/mmathieum/montransit/pkg/provider/source/stmmobile"
	"github.com/mmathieum/montransit/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the arrivals web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server, overrides the config file",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					if err := redis_client.Connect(); err != nil {
						return err
					}

					sink, err := events.NewQueueSink(redis_client.QueueConnection)
					if err != nil {
						return err
					}

					// The web API has no device-local schedule database, so
					// the offline strategy always reports "not installed".
					offlineStrategy := offline.Strategy{}

					env := &provider.Env{
						Messages: provider.NewCatalog("fr"),
						Events:   sink,
						Offline:  offlineStrategy.Availability,
					}

					store := cachestore.NewStore(redis_client.Client, cachePolicy(cfg.Cache))
					refresher := provider.NewPrefetcher(cfg.Prefetch.Workers, env, store)

					resolver := &routes.Resolver{
						Strategies: map[string]provider.Strategy{
							stmapi.SourceName:    stmapi.Strategy{BaseURL: cfg.Sources.APIBase},
							stmmobile.SourceName: stmmobile.Strategy{BaseURL: cfg.Sources.MobileBase},
							stminfo.SourceName:   stminfo.Strategy{BaseURL: cfg.Sources.InfoBase},
							offline.SourceName:   offlineStrategy,
						},
						Default:   stmapi.SourceName,
						Env:       env,
						Cache:     store,
						Refresher: refresher,
					}

					listen := cfg.Server.Listen
					if flagListen := c.String("listen"); flagListen != "" {
						listen = flagListen
					}

					return SetupServer(listen, resolver)
				},
			},
		},
	}
}

func cachePolicy(cfg config.CacheConfig) cachestore.Policy {
	return cachestore.Policy{Windows: map[string]cachestore.Windows{
		cachestore.RecordTypeBus:  cacheWindows(cfg.Bus),
		cachestore.RecordTypeBike: cacheWindows(cfg.Bike),
	}}
}

func cacheWindows(cfg config.WindowsConfig) cachestore.Windows {
	return cachestore.Windows{
		TooFresh:  time.Duration(cfg.TooFresh) * time.Second,
		TooOld:    time.Duration(cfg.TooOld) * time.Second,
		NotUseful: time.Duration(cfg.NotUseful) * time.Second,
	}
}
