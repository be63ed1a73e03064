package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/immich-tools/discburn/catalog"
	"github.com/immich-tools/discburn/config"
	"github.com/immich-tools/discburn/fileutils"
	"github.com/immich-tools/discburn/inventory"
	"github.com/immich-tools/discburn/packer"
	"github.com/immich-tools/discburn/scheduler"
)

const defaultCapacityBytes = 4700000000

// watchCommand runs the backlog reporter: on every scheduled tick it
// re-queries the inventory, packs it, and logs how many discs' worth of
// assets are waiting to be burned.
func watchCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := config.LoadFromFile(args.Watch.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	if err := addWatchJobFromConfig(ctx, sched, cfg, logger); err != nil {
		return err
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	startConfigFileWatcher(ctx, args.Watch.Config, logger, ticker, func(cfg *config.Config) {
		sched.RemoveJobs()
		if err := addWatchJobFromConfig(ctx, sched, cfg, logger); err != nil {
			logger.Error().Err(err).Msg("could not add watch job")
		}
	})

	sched.Start()
	defer sched.Stop()

	logger.Info().Object("config", *cfg).Msg("watching backlog")
	<-ctx.Done()
	return nil
}

func addWatchJobFromConfig(ctx context.Context, sched *scheduler.Scheduler, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Schedule == "" {
		return fmt.Errorf("config must have a cron schedule")
	}

	job, err := configToWatchJob(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := sched.AddWatchJob(cfg.Schedule, job); err != nil {
		return err
	}

	logger.Info().Str("schedule", cfg.Schedule).Msg("added watch job")
	return nil
}

func configToWatchJob(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (scheduler.WatchJob, error) {
	capacity := cfg.Capacity.Size
	if capacity <= 0 {
		capacity = defaultCapacityBytes
	}

	var cat *catalog.Catalog
	if cfg.Catalog != "" {
		cli, err := newSQLite(cfg.Catalog, logger)
		if err != nil {
			return nil, fmt.Errorf("could not open catalog: %w", err)
		}
		cat = &catalog.Catalog{Cli: cli, Logger: logger}
	}

	return &watchJob{
		ctx:      ctx,
		capacity: capacity,
		source: inventory.NewPsqlSource(logger,
			inventory.WithContainer(cfg.PgContainer),
			inventory.WithDatabase(cfg.PgUser, cfg.PgDatabase),
		),
		catalog: cat,
		logger:  logger,
	}, nil
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, when(ticker.C), func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}

func when[T any](ch <-chan T) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for range ch {
			out <- struct{}{}
		}
	}()
	return out
}

type watchJob struct {
	ctx      context.Context
	capacity int64
	source   inventory.Source
	catalog  *catalog.Catalog
	logger   zerolog.Logger
}

func (w *watchJob) Run() {
	assets, err := w.source.Assets(w.ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("watch job failed")
		return
	}

	chunks := packer.Pack(assets, w.capacity)

	pending := len(chunks)
	var pendingSize int64
	for _, chunk := range chunks {
		pendingSize += chunk.Size
	}

	if w.catalog != nil {
		pending = 0
		pendingSize = 0
		for _, chunk := range chunks {
			archived, err := w.catalog.IsArchived(w.ctx, chunk)
			if err != nil {
				w.logger.Warn().Err(err).Int("disc", chunk.Number).Msg("could not check catalog")
			}
			if !archived {
				pending++
				pendingSize += chunk.Size
			}
		}
	}

	w.logger.Info().
		Int("assets", len(assets)).
		Int("discs", len(chunks)).
		Int("pending", pending).
		Int64("pending_bytes", pendingSize).
		Msg("backlog report")
}
