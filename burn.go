package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/immich-tools/discburn/asset"
	"github.com/immich-tools/discburn/catalog"
	"github.com/immich-tools/discburn/fileutils"
	"github.com/immich-tools/discburn/inventory"
	"github.com/immich-tools/discburn/isoarchiver"
	"github.com/immich-tools/discburn/packer"
	"github.com/immich-tools/discburn/staging"
	"github.com/immich-tools/discburn/state"
)

func burnCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Burn.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	if args.Burn.Capacity.Size <= 0 {
		return fmt.Errorf("capacity must be positive")
	}

	startTime := time.Now()
	logger.Info().Str("backup_dir", args.Burn.BackupDir).Msg("starting backup")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("backup cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("backup done")
		}
	}()

	if err := os.MkdirAll(args.Burn.BackupDir, 0755); err != nil {
		return fmt.Errorf("could not create backup dir: %w", err)
	}
	if err := fileutils.VerifyWritable(args.Burn.BackupDir); err != nil {
		return fmt.Errorf("backup dir must be writable: %w", err)
	}

	var cat *catalog.Catalog
	if args.Burn.Catalog != "" {
		cli, err := newSQLite(args.Burn.Catalog, logger)
		if err != nil {
			return fmt.Errorf("could not open catalog: %w", err)
		}
		cat = &catalog.Catalog{Cli: cli, Logger: logger, DryRun: args.Burn.DryRun}
	}

	src := inventory.NewPsqlSource(logger,
		inventory.WithContainer(args.Burn.PgContainer),
		inventory.WithDatabase(args.Burn.PgUser, args.Burn.PgDatabase),
	)
	assets, err := src.Assets(ctx)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		logger.Info().Msg("no assets found in database")
		return nil
	}

	logger.Info().Int64("capacity", args.Burn.Capacity.Size).Msg("organizing assets into disc chunks by date")
	chunks := packer.Pack(assets, args.Burn.Capacity.Size)

	selected, err := selectChunks(args.Burn.Select, chunks)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		logger.Info().Msg("nothing selected")
		return nil
	}

	return burnChunks(ctx, selected, burnParams{
		backupDir:     args.Burn.BackupDir,
		isoPrefix:     args.Burn.IsoPrefix,
		dryRun:        args.Burn.DryRun,
		useLinks:      args.Burn.UseLinks,
		workers:       args.Burn.Workers,
		containerPath: args.Burn.ContainerPath,
		hostPath:      args.Burn.HostPath,
		skipArchived:  args.Burn.SkipArchived,
		tracker:       state.New(args.Burn.StateFile, logger),
		catalog:       cat,
		logger:        logger,
	})
}

type burnParams struct {
	backupDir     string
	isoPrefix     string
	dryRun        bool
	useLinks      bool
	workers       int
	containerPath string
	hostPath      string
	skipArchived  bool
	tracker       *state.Tracker
	catalog       *catalog.Catalog
	logger        zerolog.Logger
}

// burnChunks processes the selected discs strictly one after another, so
// at most one disc's worth of staged files exists at any time.
func burnChunks(ctx context.Context, chunks []packer.Chunk, p burnParams) error {
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return nil
		}
		if err := burnChunk(ctx, chunk, p); err != nil {
			return err
		}
	}
	return nil
}

func burnChunk(ctx context.Context, chunk packer.Chunk, p burnParams) error {
	logger := p.logger.With().Int("disc", chunk.Number).Logger()

	if p.skipArchived && p.catalog != nil {
		archived, err := p.catalog.IsArchived(ctx, chunk)
		if err != nil {
			logger.Warn().Err(err).Msg("could not check catalog, processing disc anyway")
		} else if archived {
			logger.Info().Msg("disc already archived, skipping")
			return nil
		}
	}

	stagingDir := filepath.Join(p.backupDir, fmt.Sprintf("DVD_%d", chunk.Number))
	isoPath := filepath.Join(p.backupDir, fmt.Sprintf("%s_%d_%s_%s.iso", p.isoPrefix, chunk.Number, chunk.Start, chunk.End))

	if !p.dryRun {
		if err := os.MkdirAll(stagingDir, 0755); err != nil {
			return fmt.Errorf("could not create staging dir: %w", err)
		}
	}

	logger.Info().Object("chunk", chunk).Msg("processing disc")

	// The progress record tracks whichever placement reports last; the
	// accumulated size is exact, the asset id is advisory.
	var discSize atomic.Int64
	results := staging.Materialize(ctx, chunk, stagingDir, logger,
		staging.WithDryRun(p.dryRun),
		staging.WithHardlinks(p.useLinks),
		staging.WithWorkers(p.workers),
		staging.WithPathMapping(p.containerPath, p.hostPath),
		staging.WithHashes(p.catalog != nil),
		staging.WithOnPlaced(func(a asset.Asset, _ string) {
			p.tracker.Update(a.ID, chunk.Number, discSize.Add(a.SizeBytes))
		}),
	)

	var entries []catalog.Entry
	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		entries = append(entries, catalog.Entry{
			AssetID:       res.Asset.ID,
			Name:          res.Asset.OriginalFileName,
			TargetName:    filepath.Base(res.Path),
			Hash:          res.Hash,
			Size:          res.Asset.SizeBytes,
			FileCreatedAt: res.Asset.FileCreatedAt,
		})
	}
	logger.Info().
		Int("processed", len(entries)).
		Int("failed", failed).
		Msg("disc materialized")

	if p.dryRun {
		return nil
	}

	if err := isoarchiver.Build(ctx, stagingDir, isoPath, logger); err != nil {
		// Keep the staged files for manual recovery and move on.
		logger.Error().Err(err).Str("staging_dir", stagingDir).Msg("could not create iso image, keeping staging directory")
		return nil
	}

	if p.catalog != nil {
		if err := p.catalog.RegisterDisc(ctx, chunk, isoPath, entries); err != nil {
			logger.Warn().Err(err).Msg("could not register disc in catalog")
		}
	}

	logger.Info().Str("staging_dir", stagingDir).Msg("cleaning up staging directory")
	if err := os.RemoveAll(stagingDir); err != nil {
		logger.Warn().Err(err).Msg("could not remove staging directory")
	}

	return nil
}
