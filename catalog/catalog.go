// Package catalog records which assets have been archived to which disc,
// so later runs can skip discs that are already burned.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/immich-tools/discburn/packer"
)

const batchSize = 50

// Entry is one successfully placed asset as it ended up on the disc.
type Entry struct {
	AssetID       string
	Name          string
	TargetName    string
	Hash          uint64
	Size          int64
	FileCreatedAt time.Time
}

type Catalog struct {
	Lock   sync.Mutex
	Cli    *gorm.DB
	Logger zerolog.Logger
	DryRun bool
}

// RegisterDisc records a completed disc and its member assets. Re-burning
// a disc replaces the previous record.
func (c *Catalog) RegisterDisc(ctx context.Context, chunk packer.Chunk, isoPath string, entries []Entry) error {
	c.Lock.Lock()
	defer c.Lock.Unlock()

	if c.DryRun {
		c.Logger.Info().Int("disc", chunk.Number).Int("assets", len(entries)).Msg("would register disc (dry run)")
		return nil
	}

	c.Logger.Debug().Int("disc", chunk.Number).Int("assets", len(entries)).Msg("registering disc")

	return c.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		disc := Disc{
			Number:     chunk.Number,
			Label:      fmt.Sprintf("DVD_%d", chunk.Number),
			ISOPath:    isoPath,
			Start:      chunk.Start,
			End:        chunk.End,
			Size:       chunk.Size,
			AssetCount: len(entries),
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&disc).Error; err != nil {
			return fmt.Errorf("could not register disc: %w", err)
		}

		records := make([]DiscAsset, 0, len(entries))
		for _, e := range entries {
			records = append(records, DiscAsset{
				AssetID:       e.AssetID,
				DiscNumber:    chunk.Number,
				Name:          e.Name,
				TargetName:    e.TargetName,
				Hash:          int64(e.Hash),
				Size:          e.Size,
				FileCreatedAt: e.FileCreatedAt,
			})
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(records, batchSize).Error; err != nil {
			return fmt.Errorf("could not register disc assets: %w", err)
		}
		return nil
	})
}

// IsArchived reports whether every member asset of chunk is already
// recorded on some disc.
func (c *Catalog) IsArchived(ctx context.Context, chunk packer.Chunk) (bool, error) {
	c.Lock.Lock()
	defer c.Lock.Unlock()

	for start := 0; start < len(chunk.Assets); start += batchSize {
		end := min(start+batchSize, len(chunk.Assets))

		ids := make([]string, 0, end-start)
		for _, a := range chunk.Assets[start:end] {
			ids = append(ids, a.ID)
		}

		var count int64
		err := c.Cli.WithContext(ctx).
			Model(&DiscAsset{}).
			Where("asset_id IN ?", ids).
			Count(&count).Error
		if err != nil {
			return false, fmt.Errorf("could not query archived assets: %w", err)
		}
		if count < int64(len(ids)) {
			return false, nil
		}
	}

	return len(chunk.Assets) > 0, nil
}

// ArchivedAssetIDs returns the identifiers of every cataloged asset.
func (c *Catalog) ArchivedAssetIDs(ctx context.Context) (map[string]struct{}, error) {
	c.Lock.Lock()
	defer c.Lock.Unlock()

	ids := make(map[string]struct{})
	offset := 0
	for {
		var batch []string
		err := c.Cli.WithContext(ctx).
			Model(&DiscAsset{}).
			Order("asset_id").
			Limit(batchSize).
			Offset(offset).
			Pluck("asset_id", &batch).Error
		if err != nil {
			return nil, fmt.Errorf("could not list archived assets: %w", err)
		}
		if len(batch) == 0 {
			return ids, nil
		}
		for _, id := range batch {
			ids[id] = struct{}{}
		}
		offset += batchSize
	}
}

// Discs returns all cataloged discs in burn order.
func (c *Catalog) Discs(ctx context.Context) ([]Disc, error) {
	c.Lock.Lock()
	defer c.Lock.Unlock()

	var discs []Disc
	if err := c.Cli.WithContext(ctx).Order("number").Find(&discs).Error; err != nil {
		return nil, fmt.Errorf("could not list discs: %w", err)
	}
	return discs, nil
}
