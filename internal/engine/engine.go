// Package engine defines the contract between the command-line driver and
// the PNG optimization engine. The driver treats the engine as opaque: it
// initializes it once, hands it files one at a time, and finalizes it. All
// user-visible output flows back through the UI callbacks, so the engine
// never writes to the console or the log directly.
package engine

import (
	"context"

	"github.com/psq/pngsquash/internal/config"
)

// UI is the set of callbacks an engine uses to talk to the user. Nil
// callbacks are treated as no-ops.
type UI struct {
	// Print emits report text. Line control characters are not embedded
	// here; they go through Control.
	Print func(text string)

	// Control adjusts line state on the output sinks. The codes are the
	// ones understood by report.Reporter.Control.
	Control func(code int)

	// Progress reports that done of total trials have finished for the
	// file currently being optimized.
	Progress func(done, total int)
}

// FileResult describes the outcome of one file optimization.
type FileResult struct {
	Path    string // input path as given on the command line
	Output  string // path written, empty when nothing was written
	InSize  int64  // input file size in bytes
	OutSize int64  // chosen output size in bytes, even when only simulated
	Action  string // short outcome verb for the summary table
}

// Engine is an optimization engine. Implementations report internal
// defects by panicking; the driver recovers and maps the panic to the
// software-error exit status.
type Engine interface {
	// Init prepares the engine for a run. It is called exactly once,
	// before the first file.
	Init(ctx context.Context, cfg *config.Config, ui UI) error

	// OptimizeFile processes a single file. An error covers that file
	// only; the driver continues with the remaining files.
	OptimizeFile(ctx context.Context, path string) (*FileResult, error)

	// Finalize releases engine state. It is called exactly once, after
	// the last file.
	Finalize() error
}
