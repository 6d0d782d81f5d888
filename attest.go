package attest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pylock/attest/internal/util"
	"github.com/pylock/attest/pylock"
)

// ErrOutputExists is returned when the output path already exists and
// clobbering was not requested.
var ErrOutputExists = errors.New("output file already exists")

// UpdateOptions control one lock file update run.
type UpdateOptions struct {
	// InputPath is the pylock.toml to read.
	InputPath string
	// OutputPath is where the augmented document goes. Empty means update
	// InputPath in place.
	OutputPath string
	// Force allows overwriting an existing file at OutputPath.
	Force bool
}

// Update reads a lock file, resolves attestation identities for its
// artifacts, merges them in and writes the result atomically. Per-artifact
// failures are reported in the Summary, not as an error; the error is
// non-nil only when the run as a whole could not proceed.
func Update(ctx context.Context, engine *Engine, opts UpdateOptions) (*Summary, error) {
	input, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}
	doc, err := pylock.Parse(input)
	if err != nil {
		return nil, err
	}

	resolutions, err := engine.Resolve(ctx, doc)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Resolutions: resolutions}
	summary.Updated = Merge(resolutions)

	output, err := doc.Dump()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize lock file: %w", err)
	}

	outPath := opts.OutputPath
	inPlace := outPath == "" || outPath == opts.InputPath
	if inPlace {
		outPath = opts.InputPath
		if bytes.Equal(input, output) {
			return summary, nil
		}
	} else if !opts.Force {
		if _, err := os.Stat(outPath); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, outPath)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat output file: %w", err)
		}
	}

	if err := util.WriteFileAtomic(outPath, output, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	return summary, nil
}
