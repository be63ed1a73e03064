// Package inventory reads the ordered asset list out of the Immich
// database.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/immich-tools/discburn/asset"
)

var commandContext = exec.CommandContext

// Source yields asset records in creation-time ascending order. An empty
// result is not an error; the run is simply a no-op.
type Source interface {
	Assets(ctx context.Context) ([]asset.Asset, error)
}

// assetQuery joins exif for the byte size and orders by creation time.
// The packer depends on that ordering.
const assetQuery = `SELECT a.id, a."originalPath", a."originalFileName", a."fileCreatedAt", e."fileSizeInByte" ` +
	`FROM asset a JOIN asset_exif e ON a.id = e."assetId" ORDER BY a."fileCreatedAt" ASC`

// Option configures the psql source.
type Option func(*PsqlSource)

// WithContainer overrides the docker container name.
func WithContainer(name string) Option {
	return func(s *PsqlSource) {
		if name != "" {
			s.container = name
		}
	}
}

// WithDatabase overrides the postgres user and database name.
func WithDatabase(user, database string) Option {
	return func(s *PsqlSource) {
		if user != "" {
			s.user = user
		}
		if database != "" {
			s.database = database
		}
	}
}

// PsqlSource queries Immich's postgres through docker exec / psql, the
// same way the server's own maintenance jobs reach it. The query result
// is fetched as a single json_agg document.
type PsqlSource struct {
	container string
	user      string
	database  string
	logger    zerolog.Logger
}

func NewPsqlSource(logger zerolog.Logger, opts ...Option) *PsqlSource {
	s := &PsqlSource{
		container: "immich_postgres",
		user:      "postgres",
		database:  "immich",
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assets implements Source. A query failure is fatal to the run.
func (s *PsqlSource) Assets(ctx context.Context) ([]asset.Asset, error) {
	s.logger.Info().Str("container", s.container).Msg("fetching asset list from database")

	wrapped := fmt.Sprintf("SELECT json_agg(t) FROM (%s) t;", assetQuery)
	cmd := commandContext(ctx, "docker",
		"exec", s.container,
		"psql", "-U", s.user, "-d", s.database, "-t", "-A",
		"-c", wrapped,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("query assets: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	assets, err := parseAssets(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("assets", len(assets)).Msg("fetched asset list")
	return assets, nil
}

type assetRow struct {
	ID               string `json:"id"`
	OriginalPath     string `json:"originalPath"`
	OriginalFileName string `json:"originalFileName"`
	FileCreatedAt    string `json:"fileCreatedAt"`
	FileSizeInByte   *int64 `json:"fileSizeInByte"`
}

// Timestamp layouts json_agg produces for timestamptz/timestamp columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

func parseAssets(raw []byte) ([]asset.Asset, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var rows []assetRow
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("parse asset query output: %w", err)
	}

	assets := make([]asset.Asset, 0, len(rows))
	for _, row := range rows {
		created, err := parseTime(row.FileCreatedAt)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", row.ID, err)
		}

		a := asset.Asset{
			ID:               row.ID,
			OriginalPath:     row.OriginalPath,
			OriginalFileName: row.OriginalFileName,
			FileCreatedAt:    created,
		}
		if row.FileSizeInByte != nil {
			a.SizeBytes = *row.FileSizeInByte
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	return assets, nil
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
