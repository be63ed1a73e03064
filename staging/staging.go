// Package staging materializes one chunk's files into a staging
// directory ahead of the archive build.
package staging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/immich-tools/discburn/asset"
	"github.com/immich-tools/discburn/fileutils"
	"github.com/immich-tools/discburn/packer"
)

var (
	ErrUnmappedPath  = errors.New("asset path outside the mapped prefix")
	ErrSourceMissing = errors.New("asset source file does not exist")
)

const progressEvery = 100

// Result reports one asset's materialization outcome. Err is nil on
// success; Path is the file placed in the staging directory (the path it
// would get, in dry-run mode). Hash is set only when hashing is enabled
// and the file was actually written.
type Result struct {
	Asset asset.Asset
	Path  string
	Hash  uint64
	Err   error
}

// Option configures Materialize.
type Option func(*options)

type options struct {
	dryRun     bool
	hardlinks  bool
	hashes     bool
	workers    int
	fromPrefix string
	toPrefix   string
	onPlaced   func(asset.Asset, string)
}

func WithDryRun(dryRun bool) Option {
	return func(o *options) {
		o.dryRun = dryRun
	}
}

// WithHardlinks makes placement attempt a hard link before copying.
func WithHardlinks(hardlinks bool) Option {
	return func(o *options) {
		o.hardlinks = hardlinks
	}
}

// WithHashes computes a content hash of every placed file.
func WithHashes(hashes bool) Option {
	return func(o *options) {
		o.hashes = hashes
	}
}

// WithWorkers bounds the number of concurrent placements.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithPathMapping rewrites the asset's foreign path prefix to where the
// files actually live on this host.
func WithPathMapping(fromPrefix, toPrefix string) Option {
	return func(o *options) {
		o.fromPrefix = fromPrefix
		o.toPrefix = toPrefix
	}
}

// WithOnPlaced registers a callback invoked after every successful
// placement. It is called from worker goroutines concurrently.
func WithOnPlaced(fn func(a asset.Asset, path string)) Option {
	return func(o *options) {
		o.onPlaced = fn
	}
}

// Materialize places every member asset of chunk into dir using a bounded
// worker pool and returns one Result per asset. Individual failures never
// abort sibling work; the caller tallies them from the results. All
// placements have completed (or failed) by the time Materialize returns.
func Materialize(ctx context.Context, chunk packer.Chunk, dir string, logger zerolog.Logger, opts ...Option) []Result {
	o := options{
		workers:    4,
		fromPrefix: "/usr/src/app/upload",
		toPrefix:   "/mnt/backup/immich-app/library",
	}
	for _, applyOpts := range opts {
		applyOpts(&o)
	}

	logger = logger.With().Int("disc", chunk.Number).Logger()
	logger.Info().Object("chunk", chunk).Int("workers", o.workers).Msg("materializing chunk")

	names := newNameRegistry(dir)
	results := make([]Result, len(chunk.Assets))

	var placed atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)

	for i, a := range chunk.Assets {
		if ctx.Err() != nil {
			results[i] = Result{Asset: a, Err: ctx.Err()}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, a asset.Asset) {
			defer func() {
				<-sem
				wg.Done()
			}()

			res := place(a, dir, names, o)
			results[i] = res
			if res.Err != nil {
				logger.Warn().Err(res.Err).Str("asset", a.ID).Msg("could not materialize asset")
				return
			}

			if o.onPlaced != nil {
				o.onPlaced(a, res.Path)
			}
			if n := placed.Add(1); n%progressEvery == 0 {
				logger.Info().
					Int64("placed", n).
					Int("total", len(chunk.Assets)).
					Msg("materializing assets")
			}
		}(i, a)
	}
	wg.Wait()

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	logger.Info().
		Int64("placed", placed.Load()).
		Int("failed", failed).
		Msg("done materializing chunk")

	return results
}

func place(a asset.Asset, dir string, names *nameRegistry, o options) Result {
	if !strings.HasPrefix(a.OriginalPath, o.fromPrefix) {
		return Result{Asset: a, Err: fmt.Errorf("%w: %s", ErrUnmappedPath, a.OriginalPath)}
	}
	hostPath := o.toPrefix + strings.TrimPrefix(a.OriginalPath, o.fromPrefix)

	if !fileutils.Exists(hostPath) {
		return Result{Asset: a, Err: fmt.Errorf("%w: %s", ErrSourceMissing, hostPath)}
	}

	ext := filepath.Ext(hostPath)
	name := a.OriginalFileName
	if ext != "" && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name += ext
	}

	name = names.claim(name, a.ID)
	targetPath := filepath.Join(dir, name)

	if o.dryRun {
		return Result{Asset: a, Path: targetPath}
	}

	var err error
	if o.hardlinks {
		err = fileutils.LinkOrCopy(hostPath, targetPath)
	} else {
		err = fileutils.CopyFile(hostPath, targetPath)
	}
	if err != nil {
		return Result{Asset: a, Err: fmt.Errorf("place %s: %w", hostPath, err)}
	}

	res := Result{Asset: a, Path: targetPath}
	if o.hashes {
		if res.Hash, err = fileutils.ComputeFileHash(targetPath); err != nil {
			// The file is in place; a missing hash is not a failure.
			res.Hash = 0
		}
	}
	return res
}
