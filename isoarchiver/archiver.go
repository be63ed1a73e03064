// Package isoarchiver packages a staging directory into a single ISO
// image by driving whichever external encoding tool the host has.
package isoarchiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// ErrNoEncoderTool means none of the candidate tools is installed.
var ErrNoEncoderTool = errors.New("no iso encoding tool found (xorriso, genisoimage, or mkisofs)")

// Tool is one candidate ISO encoder invocation.
type Tool struct {
	Name string
	Args func(isoPath, label, sourceDir string) []string
}

// defaultTools in preference order. All three produce equivalent
// Joliet+RockRidge images.
func defaultTools() []Tool {
	return []Tool{
		{
			Name: "xorriso",
			Args: func(isoPath, label, sourceDir string) []string {
				return []string{"-as", "mkisofs", "-o", isoPath, "-J", "-R", "-V", label, sourceDir}
			},
		},
		{
			Name: "genisoimage",
			Args: func(isoPath, label, sourceDir string) []string {
				return []string{"-o", isoPath, "-J", "-R", "-V", label, sourceDir}
			},
		},
		{
			Name: "mkisofs",
			Args: func(isoPath, label, sourceDir string) []string {
				return []string{"-o", isoPath, "-J", "-R", "-V", label, sourceDir}
			},
		},
	}
}

// Option configures Build.
type Option func(*options)

type options struct {
	tools []Tool
}

// WithTools overrides the candidate tool chain.
func WithTools(tools []Tool) Option {
	return func(o *options) {
		if len(tools) > 0 {
			o.tools = tools
		}
	}
}

// Build encodes sourceDir into an ISO image at isoPath, trying each
// candidate tool in order and stopping at the first success. The image is
// written to a temporary path and renamed into place, so an interrupted
// build never leaves a half-written isoPath behind. On total failure the
// staging directory is left untouched for manual recovery.
func Build(ctx context.Context, sourceDir string, isoPath string, logger zerolog.Logger, opts ...Option) error {
	o := options{tools: defaultTools()}
	for _, applyOpts := range opts {
		applyOpts(&o)
	}

	logger = logger.With().Str("iso", isoPath).Logger()
	logger.Info().Str("source", sourceDir).Msg("generating iso image")

	label := filepath.Base(sourceDir)
	partPath := isoPath + ".part"

	var errs []error
	var available int
	for _, tool := range o.tools {
		if _, err := lookPath(tool.Name); err != nil {
			logger.Debug().Str("tool", tool.Name).Msg("encoding tool not installed")
			continue
		}
		available++

		if err := runTool(ctx, tool, partPath, label, sourceDir); err != nil {
			logger.Warn().Err(err).Str("tool", tool.Name).Msg("encoding tool failed")
			errs = append(errs, err)
			if removeErr := os.Remove(partPath); removeErr != nil && !os.IsNotExist(removeErr) {
				logger.Warn().Err(removeErr).Msg("could not remove partial image")
			}
			continue
		}

		if err := os.Rename(partPath, isoPath); err != nil {
			return fmt.Errorf("finalize iso image: %w", err)
		}
		logger.Info().Str("tool", tool.Name).Msg("iso created successfully")
		return nil
	}

	if available == 0 {
		return ErrNoEncoderTool
	}
	return fmt.Errorf("all iso encoding tools failed: %w", errors.Join(errs...))
}

func runTool(ctx context.Context, tool Tool, isoPath, label, sourceDir string) error {
	cmd := commandContext(ctx, tool.Name, tool.Args(isoPath, label, sourceDir)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", tool.Name, err, msg)
		}
		return fmt.Errorf("%s: %w", tool.Name, err)
	}
	return nil
}
