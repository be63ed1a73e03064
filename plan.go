package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/immich-tools/discburn/catalog"
	"github.com/immich-tools/discburn/inventory"
	"github.com/immich-tools/discburn/packer"
)

func planCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Plan.Capacity.Size <= 0 {
		return fmt.Errorf("capacity must be positive")
	}

	src := inventory.NewPsqlSource(logger,
		inventory.WithContainer(args.Plan.PgContainer),
		inventory.WithDatabase(args.Plan.PgUser, args.Plan.PgDatabase),
	)
	assets, err := src.Assets(ctx)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		logger.Info().Msg("no assets found in database")
		return nil
	}

	chunks := packer.Pack(assets, args.Plan.Capacity.Size)

	var archived map[int]bool
	if args.Plan.Catalog != "" {
		cli, err := newSQLite(args.Plan.Catalog, logger)
		if err != nil {
			return fmt.Errorf("could not open catalog: %w", err)
		}
		cat := &catalog.Catalog{Cli: cli, Logger: logger}

		archived = make(map[int]bool, len(chunks))
		for _, chunk := range chunks {
			done, err := cat.IsArchived(ctx, chunk)
			if err != nil {
				return err
			}
			archived[chunk.Number] = done
		}
	}

	fmt.Println(renderChunkTable(chunks, archived))
	logger.Info().Int("assets", len(assets)).Int("discs", len(chunks)).Msg("plan complete")
	return nil
}
