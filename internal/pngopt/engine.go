package pngopt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/ctxlog"
	"github.com/psq/pngsquash/internal/engine"
	"github.com/psq/pngsquash/internal/fsutil"
	"github.com/psq/pngsquash/internal/report"
)

// Optimizer is the chunk-level PNG optimization engine. It rewrites files
// by merging and recompressing the IDAT stream, dropping disposable
// chunks, and cutting unused palette entries, choosing the smallest
// complete encoding it finds.
type Optimizer struct {
	cfg   *config.Config
	ui    engine.UI
	space trialSpace
}

// New returns an engine ready for Init.
func New() *Optimizer {
	return &Optimizer{}
}

// Init implements engine.Engine.
func (o *Optimizer) Init(ctx context.Context, cfg *config.Config, ui engine.UI) error {
	if o.cfg != nil {
		panic("pngopt: Init called twice")
	}
	o.cfg = cfg
	o.ui = ui
	o.space = newTrialSpace(cfg)

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Optimization engine initialized.",
		"levels", o.space.levels, "filters", o.space.filters)
	if !cfg.ZMemLevels.Empty() || !cfg.ZStrategies.Empty() || cfg.WindowBits.IsSet() {
		logger.Debug("Memory level, strategy and window size are accepted for compatibility but do not vary the encoder.")
	}
	return nil
}

// Finalize implements engine.Engine.
func (o *Optimizer) Finalize() error {
	o.cfg = nil
	return nil
}

// OptimizeFile implements engine.Engine. Each call is self-contained; an
// error condemns only the file it names.
func (o *Optimizer) OptimizeFile(ctx context.Context, path string) (*engine.FileResult, error) {
	logger := ctxlog.FromContext(ctx).With("file", path)

	o.control(report.LineBreak)
	o.print("** Processing: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	chunks, repairs, err := ReadChunks(bytes.NewReader(data), o.cfg.Fix)
	if err != nil {
		return nil, err
	}
	if repairs > 0 {
		o.print("Recoverable errors found and fixed: %d\n", repairs)
		logger.Warn("Damaged input repaired.", "repairs", repairs)
	}

	h, err := parseHeader(chunks)
	if err != nil {
		return nil, err
	}
	if h.colorType == colorPalette && findChunk(chunks, "PLTE") < 0 {
		return nil, errors.New("paletted image has no PLTE chunk")
	}
	if o.cfg.Interlace.IsSet() && byte(o.cfg.Interlace.Value()) != h.interlace {
		return nil, errors.New("interlace conversion is not supported")
	}

	inIDAT := joinIDAT(chunks)
	if len(inIDAT) == 0 {
		return nil, errors.New("no IDAT chunk")
	}
	o.print("%dx%d pixels, %d bits/pixel, %s\n", h.width, h.height, h.bitsPerPixel(), h.colorName())
	o.print("Input IDAT size = %d bytes\n", len(inIDAT))
	o.print("Input file size = %d bytes\n", len(data))

	work := append([]Chunk(nil), chunks...)
	if o.cfg.StripAll || o.cfg.Snip {
		var removed []string
		work, removed = stripChunks(work, o.cfg.StripAll, o.cfg.Snip)
		if len(removed) > 0 {
			o.print("Removed chunks: %s\n", strings.Join(removed, ", "))
			logger.Debug("Chunks removed.", "count", len(removed))
		}
	}

	recode := !o.cfg.NoRecoding && o.cfg.OptLevel.Or(2) > 0 && !o.space.empty()
	needRows := h.interlace == 0 &&
		(recode || (h.colorType == colorPalette && !o.cfg.NoPalette))

	var raw []byte
	var rows [][]byte
	if recode || needRows {
		if raw, err = inflate(inIDAT); err != nil {
			return nil, err
		}
	}
	if needRows {
		if rows, err = unfilter(raw, h); err != nil {
			return nil, err
		}
	}

	if h.colorType == colorPalette && !o.cfg.NoPalette && rows != nil {
		entries := len(work[findChunk(work, "PLTE")].Data) / 3
		used := maxPaletteIndex(rows, h.width, h.bitDepth) + 1
		if dropped := truncatePalette(work, used); dropped > 0 {
			o.print("Reduced palette from %d to %d entries\n", entries, used)
		}
	}

	if recode {
		best, bestTrial, err := o.runTrials(ctx, h, raw, rows)
		if err != nil {
			return nil, err
		}
		if len(best) < len(inIDAT) {
			work = replaceIDAT(work, best)
			o.print("Selected: %s (IDAT size = %d bytes)\n", trialName(bestTrial), bestTrial.size)
		} else {
			o.print("IDAT stream is already well compressed\n")
		}
	}

	out := EncodeChunks(work)
	o.verify(path, out)

	outIDAT := joinIDAT(work)
	o.print("Output IDAT size = %d bytes%s\n", len(outIDAT), sizeChange(len(inIDAT), len(outIDAT)))
	o.print("Output file size = %d bytes%s\n", len(out), sizeChange(len(data), len(out)))

	result, err := o.place(path, data, out, st)
	if err != nil {
		return nil, err
	}
	logger.Debug("File processed.", "action", result.Action, "in", result.InSize, "out", result.OutSize)
	return result, nil
}

// runTrials drives the recompression grid, narrating it according to the
// reporting mode: full mode prints one line per trial, otherwise progress
// ticks flow through the UI callback.
func (o *Optimizer) runTrials(ctx context.Context, h header, raw []byte, rows [][]byte) ([]byte, trialResult, error) {
	total := o.space.size()
	if h.interlace == 1 {
		total = len(o.space.levels)
	}
	if o.cfg.Full {
		o.print("Trying:\n")
	}
	done := 0
	observe := func(t trialResult) {
		done++
		if o.cfg.Full {
			o.print("  %s\tIDAT size = %d bytes\n", trialName(t), t.size)
			return
		}
		o.progress(done, total)
	}
	return recompress(ctx, h, raw, rows, o.space, observe)
}

// verify re-reads a generated encoding before it can reach the disk. A
// failure here is a defect in the rewriting code, not a user condition.
func (o *Optimizer) verify(path string, out []byte) {
	if _, _, err := ReadChunks(bytes.NewReader(out), false); err != nil {
		panic(fmt.Sprintf("pngopt: generated output for %s failed verification: %v", path, err))
	}
}

// place writes the chosen encoding to its destination, honoring the
// simulate, force, clobber, backup and preserve settings.
func (o *Optimizer) place(inPath string, original, encoded []byte, st fs.FileInfo) (*engine.FileResult, error) {
	res := &engine.FileResult{
		Path:    inPath,
		InSize:  int64(len(original)),
		OutSize: int64(len(encoded)),
	}
	improved := len(encoded) < len(original)
	if !improved && !o.cfg.Force {
		res.OutSize = res.InSize
	}

	target := inPath
	switch {
	case o.cfg.OutFile != "":
		target = o.cfg.OutFile
	case o.cfg.OutDir != "":
		target = filepath.Join(o.cfg.OutDir, filepath.Base(inPath))
	}
	if target != inPath && fsutil.SameFile(target, inPath) {
		// The redirected output names the input under another spelling;
		// that is an in-place rewrite and gets in-place semantics.
		target = inPath
	}

	if o.cfg.Simulate {
		res.Action = "simulated"
		o.print("Simulation mode, no output written\n")
		return res, nil
	}

	if target == inPath {
		if !improved && !o.cfg.Force {
			res.Action = "unchanged"
			o.print("No change, output not written\n")
			return res, nil
		}
		if o.cfg.Backup {
			backup := inPath + ".bak"
			if _, err := os.Stat(backup); err == nil && !o.cfg.Clobber {
				return nil, fmt.Errorf("backup file %s already exists (use -clobber)", backup)
			}
			if err := os.Rename(inPath, backup); err != nil {
				return nil, err
			}
			o.print("Backup: %s\n", backup)
		}
		if err := fsutil.ReplaceFile(inPath, encoded, st.Mode().Perm()); err != nil {
			return nil, err
		}
		res.Output = inPath
		res.Action = "optimized"
	} else {
		if _, err := os.Stat(target); err == nil && !o.cfg.Clobber {
			return nil, fmt.Errorf("output file %s already exists (use -clobber)", target)
		}
		if o.cfg.OutDir != "" {
			if err := os.MkdirAll(o.cfg.OutDir, 0o755); err != nil {
				return nil, err
			}
		}
		if improved || o.cfg.Force {
			if err := fsutil.ReplaceFile(target, encoded, st.Mode().Perm()); err != nil {
				return nil, err
			}
			res.Action = "optimized"
		} else {
			// Nothing gained; the output is a faithful copy of the input.
			if err := fsutil.CopyFile(target, inPath); err != nil {
				return nil, err
			}
			res.Action = "copied"
		}
		res.Output = target
	}

	if o.cfg.Preserve {
		if err := os.Chmod(res.Output, st.Mode().Perm()); err != nil {
			return nil, err
		}
		if err := os.Chtimes(res.Output, st.ModTime(), st.ModTime()); err != nil {
			return nil, err
		}
	}
	o.print("Writing: %s\n", res.Output)
	return res, nil
}

func (o *Optimizer) print(format string, args ...any) {
	if o.ui.Print != nil {
		o.ui.Print(fmt.Sprintf(format, args...))
	}
}

func (o *Optimizer) control(code int) {
	if o.ui.Control != nil {
		o.ui.Control(code)
	}
}

func (o *Optimizer) progress(done, total int) {
	if o.ui.Progress != nil {
		o.ui.Progress(done, total)
	}
}

// trialName renders trial parameters for reports. Interlaced images have
// no filter dimension.
func trialName(t trialResult) string {
	if t.filter < 0 {
		return fmt.Sprintf("zc = %d", t.level)
	}
	return fmt.Sprintf("zc = %d  f = %d", t.level, t.filter)
}

// sizeChange renders the difference between two sizes the way the report
// annotates them.
func sizeChange(in, out int) string {
	switch {
	case out < in:
		return fmt.Sprintf(" (%d bytes = %.2f%% decrease)", in-out, 100*float64(in-out)/float64(in))
	case out > in:
		return fmt.Sprintf(" (%d bytes increase)", out-in)
	default:
		return " (no change)"
	}
}
