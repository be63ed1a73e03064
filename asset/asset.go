package asset

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var ErrInvalidRecord = errors.New("invalid asset record")

// Asset describes one media item as recorded by the Immich database.
// Records are produced once by the inventory source and read-only afterwards.
type Asset struct {
	ID               string
	OriginalPath     string
	OriginalFileName string
	FileCreatedAt    time.Time
	SizeBytes        int64 // may be zero when exif carries no size
}

// Validate checks the fields the pipeline depends on.
func (a Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if a.OriginalPath == "" {
		return fmt.Errorf("%w: asset %s has no original path", ErrInvalidRecord, a.ID)
	}
	if a.OriginalFileName == "" {
		return fmt.Errorf("%w: asset %s has no original file name", ErrInvalidRecord, a.ID)
	}
	if a.FileCreatedAt.IsZero() {
		return fmt.Errorf("%w: asset %s has no creation timestamp", ErrInvalidRecord, a.ID)
	}
	if a.SizeBytes < 0 {
		return fmt.Errorf("%w: asset %s has negative size", ErrInvalidRecord, a.ID)
	}
	return nil
}

// Date returns the creation day portion, used for disc labels.
func (a Asset) Date() string {
	return a.FileCreatedAt.Format("2006-01-02")
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (a Asset) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", a.ID)
	e.Str("path", a.OriginalPath)
	e.Str("name", a.OriginalFileName)
	e.Time("created", a.FileCreatedAt)
	e.Int64("size", a.SizeBytes)
}
