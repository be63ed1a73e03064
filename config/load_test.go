package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immich-tools/discburn/config"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"capacity": "4.7GB",
		"state_file": "/var/lib/discburn/state.json",
		"catalog": "/var/lib/discburn/catalog.db",
		"cron": "0 3 * * *",
		"pg_container": "immich_postgres"
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4700000000), cfg.Capacity.Size)
	assert.Equal(t, "/var/lib/discburn/state.json", cfg.StateFile)
	assert.Equal(t, "/var/lib/discburn/catalog.db", cfg.Catalog)
	assert.Equal(t, "0 3 * * *", cfg.Schedule)
	assert.Equal(t, "immich_postgres", cfg.PgContainer)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := config.LoadFromFile(path)
	assert.Error(t, err)
}
