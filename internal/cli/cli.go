package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/psq/pngsquash/internal/config"
)

// Version is the release identifier reported by -version and in the
// session banner.
const Version = "0.3.1"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse resolves command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly (help or version
// was requested), or an ExitError describing a usage problem.
//
// Tokens are resolved left to right. A token consumed as the value of the
// preceding option is marked and skipped; the argument slice itself is
// never mutated. After the all-dash stop switch, every remaining token is
// a filename no matter what it looks like.
func Parse(args []string, output io.Writer) (*config.Config, bool, error) {
	slog.Debug("CLI resolver started.")
	st := &resolveState{cfg: &config.Config{}}
	consumed := make([]bool, len(args))
	stop := false

	for i := 0; i < len(args); i++ {
		if consumed[i] {
			continue
		}
		tok := args[i]
		if stop {
			st.cfg.Files = append(st.cfg.Files, tok)
			continue
		}

		sc := scanToken(tok)
		switch sc.kind {
		case tokenStop:
			slog.Debug("Stop switch seen; remaining tokens are filenames.")
			stop = true
		case tokenFile:
			st.cfg.Files = append(st.cfg.Files, tok)
		case tokenOption:
			def, ok := matchOption(sc.key)
			if !ok {
				return nil, false, usageError("unrecognized option: %s", tok)
			}
			if !def.takesValue {
				if sc.hasValue {
					return nil, false, usageError("option -%s allows no argument", def.name)
				}
				if err := def.apply(st, def, ""); err != nil {
					return nil, false, usageError("%s", err)
				}
				continue
			}
			val := sc.value
			if !sc.hasValue && i+1 < len(args) {
				val = args[i+1]
				consumed[i+1] = true
			}
			if val == "" {
				return nil, false, usageError("option -%s requires an argument", def.name)
			}
			if err := def.apply(st, def, val); err != nil {
				return nil, false, usageError("%s", err)
			}
		}
	}
	slog.Debug("Arguments resolved.", "files", len(st.cfg.Files))

	if st.help {
		printUsage(output)
		return nil, true, nil
	}
	if st.version {
		printVersion(output)
		return nil, true, nil
	}
	if len(st.cfg.Files) == 0 {
		slog.Debug("No input files given, printing usage and exiting.")
		printUsage(output)
		return nil, true, nil
	}

	if err := st.cfg.Validate(); err != nil {
		return nil, false, usageError("%s", err)
	}

	slog.Debug("CLI resolver finished successfully.")
	return st.cfg, false, nil
}

// usageError wraps a one-line diagnostic in the exit status reserved for
// command-line mistakes.
func usageError(format string, args ...any) error {
	return &ExitError{Code: 1, Message: fmt.Sprintf(format, args...)}
}

func printVersion(output io.Writer) {
	fmt.Fprintf(output, "pngsquash %s\n", Version)
}

func printUsage(output io.Writer) {
	fmt.Fprintf(output, `pngsquash %s - lossless PNG size reducer

Usage:
  pngsquash [options] files ...

Files:
  PNG image files; "--" ends option scanning, so names that begin with a
  dash can follow it.

Basic options:
  -?, -h, -help	show this help and exit
  -version	show the program version and exit
  -o LEVEL	optimization level (0-7), default 2
  -backup, -keep	keep a backup of the modified files
  -clobber	overwrite an existing output file
  -dir DIR	write output files to DIR
  -out FILE	write output to FILE (one input file only)
  -fix	enable error recovery for damaged files
  -force	write the output even when it is no smaller
  -log FILE	append a transcript to FILE (name must end in .log)
  -preserve	preserve file attributes where possible
  -quiet, -silent	run without console output
  -simulate	run the trials without writing any output
  -use NAME	apply the named preset before other options
  -verbose	run with extra progress output
  -watch	re-optimize files as they change on disk

Editing options:
  -full	produce a full report on the IDAT stream
  -nb	no bit depth reduction
  -nc	no color type reduction
  -np	no palette reduction
  -nx	no reductions at all
  -nz	no IDAT recoding
  -snip	cut one image out of multi-image files
  -strip all	strip all removable metadata

Trial options:
  -f FILTERS	PNG delta filters (0-5)
  -i TYPE	interlace type (0-1)
  -zc LEVELS	zlib compression levels (1-9)
  -zm LEVELS	zlib memory levels (1-9, accepted for compatibility)
  -zs STRATEGIES	zlib strategies (0-3, accepted for compatibility)
  -zw SIZE	zlib window size (256-32768, accepted for compatibility)

Option names may be abbreviated to any unambiguous prefix, and numeric
values may be juxtaposed ("-o3", "-zc6-9").
`, Version)
}
