// Package state persists burn progress so an interrupted run can report
// where it left off.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// Record is the persisted progress snapshot. The JSON keys match the
// state files written by earlier versions of this tool.
type Record struct {
	LastAssetID     string `json:"last_asset_id"`
	CurrentDisc     int    `json:"current_dvd"`
	CurrentDiscSize int64  `json:"current_dvd_size"`
}

// Tracker owns the progress record. Concurrent materialization workers
// report through Update; they never touch the file themselves. The record
// is advisory: whichever update wins the race is what gets persisted.
type Tracker struct {
	path   string
	logger zerolog.Logger

	mu    sync.Mutex
	flk   *flock.Flock
	state Record
}

// New loads the record at path, or starts fresh when the file is missing
// or unreadable. A bad state file never aborts the run.
func New(path string, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		path:   path,
		logger: logger.With().Str("state_file", path).Logger(),
		flk:    flock.New(path + ".lock"),
		state:  Record{CurrentDisc: 1},
	}
	t.load()
	return t
}

// Record returns a copy of the current progress snapshot.
func (t *Tracker) Record() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Update replaces the in-memory record and persists it immediately.
// Persistence failure is logged and otherwise ignored. discSize is the
// disc accumulator including the reported asset.
func (t *Tracker) Update(assetID string, disc int, discSize int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.LastAssetID = assetID
	t.state.CurrentDisc = disc
	t.state.CurrentDiscSize = discSize

	if err := t.save(); err != nil {
		t.logger.Warn().Err(err).Msg("could not save progress state")
	}
}

func (t *Tracker) load() {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn().Err(err).Msg("could not load state file, starting fresh")
		}
		return
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.logger.Warn().Err(err).Msg("could not parse state file, starting fresh")
		return
	}
	if rec.CurrentDisc == 0 {
		rec.CurrentDisc = 1
	}
	t.state = rec
}

// save writes to a temporary file and renames it into place, so an
// interrupted write can never leave a truncated state file behind. The
// file lock serializes writers across processes sharing the state file.
func (t *Tracker) save() error {
	if err := t.flk.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := t.flk.Unlock(); err != nil {
			t.logger.Warn().Err(err).Msg("could not release state file lock")
		}
	}()

	raw, err := json.Marshal(t.state)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".state-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), t.path)
}
