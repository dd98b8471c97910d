package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/psq/pngsquash/internal/rangeset"
)

// Slot is a single-value numeric field that is either unset or set and
// agreed upon: the first assignment wins, repeating it with the same value
// is accepted, and a conflicting value is refused.
type Slot struct {
	value int
	isSet bool
}

// Set records v. It reports the previously recorded value and whether the
// assignment was accepted; a refusal means v conflicts with that value.
func (s *Slot) Set(v int) (prev int, ok bool) {
	if s.isSet && s.value != v {
		return s.value, false
	}
	s.value = v
	s.isSet = true
	return v, true
}

// IsSet reports whether a value has been recorded.
func (s Slot) IsSet() bool { return s.isSet }

// Value returns the recorded value, or zero when unset.
func (s Slot) Value() int { return s.value }

// Or returns the recorded value, or def when unset.
func (s Slot) Or(def int) int {
	if s.isSet {
		return s.value
	}
	return def
}

// Config is the full option state of one invocation.
type Config struct {
	// Single-slot numeric fields.
	OptLevel   Slot // optimization level, 0..7
	Interlace  Slot // PNG interlace mode, 0 or 1
	WindowBits Slot // deflate window size exponent, 8..15

	// Set-valued fields, accumulated by union across occurrences.
	Filters     rangeset.Set // scanline filters, 0..5
	ZLevels     rangeset.Set // zlib compression levels, 1..9
	ZMemLevels  rangeset.Set // zlib memory levels, 1..9
	ZStrategies rangeset.Set // zlib strategies, 0..3

	// Boolean flags.
	Backup     bool // keep a backup of each modified file
	Clobber    bool // overwrite pre-existing output files
	Debug      bool // abrupt abort on internal errors, debug logging
	Fix        bool // salvage files with recoverable integrity errors
	Force      bool // write the output even when it is not smaller
	Full       bool // report every trial, not just the chosen one
	NoBitDepth bool // suppress bit depth changes
	NoColor    bool // suppress color type changes
	NoPalette  bool // suppress palette changes
	NoRecoding bool // suppress IDAT recompression
	Preserve   bool // preserve file attributes where possible
	Quiet      bool // run without console output
	Simulate   bool // trial run, no files written
	Snip       bool // cut extra images from multi-image files
	StripAll   bool // strip all metadata chunks
	Verbose    bool // verbose console output
	Watch      bool // keep running, optimizing files as they appear

	// String fields, each settable at most once.
	OutFile    string // explicit output file name
	OutDir     string // output directory
	LogFile    string // log file name, must end in ".log"
	PresetName string // named preset to layer under the command line

	// Residual filenames, in original command-line order.
	Files []string
}

// Validate applies the cross-field invariants that individual option
// handling cannot see. Any violation is a fatal usage error.
func (c *Config) Validate() error {
	if c.OutFile != "" && c.OutDir != "" {
		return errors.New("options -out and -dir are mutually exclusive")
	}
	if c.OutFile != "" && len(c.Files) != 1 {
		return fmt.Errorf("option -out requires exactly one input file, got %d", len(c.Files))
	}
	if c.LogFile != "" && !strings.HasSuffix(strings.ToLower(c.LogFile), ".log") {
		return errors.New(`log file name must end with ".log"`)
	}
	if c.Watch && c.OutFile != "" {
		return errors.New("option -watch optimizes in place and does not allow -out")
	}
	return nil
}
