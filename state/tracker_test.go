package state_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immich-tools/discburn/state"
)

func TestTrackerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	logger := zerolog.Nop()

	tracker := state.New(path, logger)
	tracker.Update("asset-42", 3, 123456)

	reloaded := state.New(path, logger)
	rec := reloaded.Record()
	assert.Equal(t, "asset-42", rec.LastAssetID)
	assert.Equal(t, 3, rec.CurrentDisc)
	assert.Equal(t, int64(123456), rec.CurrentDiscSize)
}

func TestTrackerDefaults(t *testing.T) {
	testCases := []struct {
		name    string
		prepare func(t *testing.T, path string)
	}{
		{
			name:    "missing file",
			prepare: func(t *testing.T, path string) {},
		},
		{
			name: "corrupt file",
			prepare: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
			},
		},
		{
			name: "empty file",
			prepare: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, nil, 0644))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			tc.prepare(t, path)

			tracker := state.New(path, zerolog.Nop())
			rec := tracker.Record()
			assert.Empty(t, rec.LastAssetID)
			assert.Equal(t, 1, rec.CurrentDisc)
			assert.Zero(t, rec.CurrentDiscSize)
		})
	}
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	tracker := state.New(path, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tracker.Update("asset", 1, int64(n))
		}(i)
	}
	wg.Wait()

	// Whichever update won the race must be what got persisted.
	rec := tracker.Record()
	reloaded := state.New(path, zerolog.Nop()).Record()
	assert.Equal(t, rec, reloaded)
	assert.Equal(t, "asset", rec.LastAssetID)
}

func TestTrackerNoPartialFileOnSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	tracker := state.New(path, zerolog.Nop())
	tracker.Update("a", 1, 10)

	// No temporary leftovers beside the state file and its lock.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".state-")
	}
}
