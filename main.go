package main

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/chaos-io/clearpic/asset"
	"github.com/chaos-io/clearpic/billing"
	"github.com/chaos-io/clearpic/config"
	"github.com/chaos-io/clearpic/inference"
	"github.com/chaos-io/clearpic/normalize"
	"github.com/chaos-io/clearpic/pipeline"
	"github.com/chaos-io/clearpic/server"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	registry := asset.NewRegistry(log)
	store := pipeline.NewStore(log)
	normalizer := normalize.New(cfg.Normalize.ConvertQuality, cfg.Normalize.MaxImageEdge, log)
	api := inference.NewClient(cfg.Inference.BaseURL, nil)
	executor := pipeline.NewExecutor(store, registry, api, log)
	coordinator := pipeline.NewCoordinator(store, executor, log)
	packager := pipeline.NewPackager(store, log)
	ledger := billing.NewLedgerClient(cfg.Billing.BaseURL, nil)
	sessions := billing.NewSessionClient(cfg.Billing.BaseURL, nil)

	handlers := server.NewHandlers(store, executor, coordinator, packager,
		normalizer, registry, ledger, sessions, log)
	srv := server.New(cfg, handlers, log)

	// The watchdog surfaces buffer leaks and double frees while the server
	// runs; live should track the record count and double releases stay zero.
	watchdog := cron.New()
	if _, err := watchdog.AddFunc(cfg.Watchdog.Schedule, func() {
		log.Info().
			Int("live", registry.Live()).
			Int("created", registry.Created()).
			Int("double_releases", registry.DoubleReleases()).
			Int("records", store.Len()).
			Msg("asset watchdog")
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Watchdog.Schedule).Msg("start watchdog")
	}
	watchdog.Start()
	defer watchdog.Stop()

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
