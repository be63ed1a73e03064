package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/immich-tools/discburn/asset"
	"github.com/immich-tools/discburn/catalog"
	"github.com/immich-tools/discburn/packer"
)

func setupTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)

	err = gormDB.AutoMigrate(&catalog.Disc{}, &catalog.DiscAsset{})
	require.NoError(t, err)

	return &catalog.Catalog{
		Cli:    gormDB,
		Logger: zerolog.Nop(),
	}
}

func testChunk(number int, ids ...string) (packer.Chunk, []catalog.Entry) {
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	chunk := packer.Chunk{Number: number, Start: "2023-06-01", End: "2023-06-01"}
	var entries []catalog.Entry
	for i, id := range ids {
		a := asset.Asset{
			ID:               id,
			OriginalPath:     "/usr/src/app/upload/" + id + ".jpg",
			OriginalFileName: id + ".jpg",
			FileCreatedAt:    base,
			SizeBytes:        100,
		}
		chunk.Assets = append(chunk.Assets, a)
		chunk.Size += a.SizeBytes
		entries = append(entries, catalog.Entry{
			AssetID:       id,
			Name:          a.OriginalFileName,
			TargetName:    a.OriginalFileName,
			Hash:          uint64(i + 1),
			Size:          a.SizeBytes,
			FileCreatedAt: base,
		})
	}
	return chunk, entries
}

func TestCatalogRegisterAndSkip(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	chunk1, entries1 := testChunk(1, "a1", "a2")
	chunk2, _ := testChunk(2, "b1", "b2")

	require.NoError(t, c.RegisterDisc(ctx, chunk1, "/backups/disc1.iso", entries1))

	archived, err := c.IsArchived(ctx, chunk1)
	require.NoError(t, err)
	assert.True(t, archived)

	archived, err = c.IsArchived(ctx, chunk2)
	require.NoError(t, err)
	assert.False(t, archived)

	discs, err := c.Discs(ctx)
	require.NoError(t, err)
	require.Len(t, discs, 1)
	assert.Equal(t, 1, discs[0].Number)
	assert.Equal(t, "DVD_1", discs[0].Label)
	assert.Equal(t, "/backups/disc1.iso", discs[0].ISOPath)
	assert.Equal(t, 2, discs[0].AssetCount)
}

func TestCatalogPartialChunkNotArchived(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	chunk, entries := testChunk(1, "a1", "a2", "a3")
	// Only two of three assets made it onto the disc.
	require.NoError(t, c.RegisterDisc(ctx, chunk, "/backups/disc1.iso", entries[:2]))

	archived, err := c.IsArchived(ctx, chunk)
	require.NoError(t, err)
	assert.False(t, archived)
}

func TestCatalogReRegisterReplaces(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	chunk, entries := testChunk(1, "a1", "a2")
	require.NoError(t, c.RegisterDisc(ctx, chunk, "/backups/old.iso", entries))
	require.NoError(t, c.RegisterDisc(ctx, chunk, "/backups/new.iso", entries))

	discs, err := c.Discs(ctx)
	require.NoError(t, err)
	require.Len(t, discs, 1)
	assert.Equal(t, "/backups/new.iso", discs[0].ISOPath)
}

func TestCatalogArchivedAssetIDs(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	// More assets than one query batch to exercise paging.
	ids := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		ids = append(ids, fmt.Sprintf("asset-%03d", i))
	}
	chunk, entries := testChunk(1, ids...)
	require.NoError(t, c.RegisterDisc(ctx, chunk, "/backups/disc1.iso", entries))

	got, err := c.ArchivedAssetIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 120)
	_, ok := got["asset-000"]
	assert.True(t, ok)
}

func TestCatalogDryRun(t *testing.T) {
	c := setupTestCatalog(t)
	c.DryRun = true
	ctx := context.Background()

	chunk, entries := testChunk(1, "a1")
	require.NoError(t, c.RegisterDisc(ctx, chunk, "/backups/disc1.iso", entries))

	discs, err := c.Discs(ctx)
	require.NoError(t, err)
	assert.Empty(t, discs)
}

func TestCatalogEmptyChunkNeverArchived(t *testing.T) {
	c := setupTestCatalog(t)

	archived, err := c.IsArchived(context.Background(), packer.Chunk{Number: 1})
	require.NoError(t, err)
	assert.False(t, archived)
}
