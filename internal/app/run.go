package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/psq/pngsquash/internal/cli"
	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/ctxlog"
	"github.com/psq/pngsquash/internal/engine"
	"github.com/psq/pngsquash/internal/fsutil"
	"github.com/psq/pngsquash/internal/preset"
	"github.com/psq/pngsquash/internal/report"
)

// Run executes one full session: engine bring-up, the file loop, the
// summary, and, when requested, the watch loop. A per-file failure is
// reported and skipped; only usage-level and internal problems end the
// run early.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.reporter.Write(fmt.Sprintf("pngsquash %s: lossless PNG size reducer\n", cli.Version))

	ui := engine.UI{
		Print:    a.reporter.Write,
		Control:  a.reporter.Control,
		Progress: a.progress,
	}
	if err := a.eng.Init(ctx, a.cfg, ui); err != nil {
		return fmt.Errorf("engine initialization failed: %w", err)
	}

	files := a.cfg.Files
	if a.cfg.Watch {
		files = a.expandArgs(files)
	}

	results, failed, err := a.processAll(ctx, files)
	if err != nil {
		return err
	}
	a.summary(results, failed)

	if a.cfg.Watch {
		if err := a.watch(ctx); err != nil {
			return err
		}
	}

	if err := a.eng.Finalize(); err != nil {
		return fmt.Errorf("engine finalization failed: %w", err)
	}
	a.logger.Debug("App.Run method finished.")

	if failed > 0 && !a.cfg.Watch {
		return &cli.ExitError{
			Code:    1,
			Message: fmt.Sprintf("%d of %d files could not be optimized", failed, len(files)),
		}
	}
	return nil
}

// processAll runs the engine over every file. Ordinary errors are
// narrated and counted; an ExitError aborts the loop and is handed up
// unchanged.
func (a *App) processAll(ctx context.Context, files []string) ([]*engine.FileResult, int, error) {
	var results []*engine.FileResult
	failed := 0
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		a.reporter.Flush()
		res, err := a.optimizeOne(ctx, path)
		if err != nil {
			var exitErr *cli.ExitError
			if errors.As(err, &exitErr) {
				return results, failed, err
			}
			failed++
			a.reporter.Control(report.LineBreak)
			a.reporter.Write(fmt.Sprintf("Error: %s: %v\n", path, err))
			a.logger.Error("File failed.", "file", path, "error", err)
			continue
		}
		results = append(results, res)
	}
	a.reporter.Flush()
	return results, failed, nil
}

// optimizeOne wraps one engine call. Engine panics are internal defects:
// under -debug they crash loudly with the whole stack, otherwise they
// become the software-error exit status with a clean message.
func (a *App) optimizeOne(ctx context.Context, path string) (res *engine.FileResult, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if a.cfg.Debug {
			panic(r)
		}
		a.reporter.Control(report.LineBreak)
		res = nil
		err = &cli.ExitError{Code: 70, Message: fmt.Sprintf("internal error: %v", r)}
	}()

	res, err = a.eng.OptimizeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if res.Output != "" {
		a.written[res.Output] = time.Now()
	}
	return res, nil
}

// progress renders the one-line trial meter. The meter is rewritten in
// place on the console and blanked once the last trial lands; the
// transcript log keeps one line per tick. Full mode prints real trial
// lines instead, so the meter stays off. Every tick flushes the console,
// meter or no meter, so everything narrated up to this trial is on
// screen while the next one runs.
func (a *App) progress(done, total int) {
	defer a.reporter.Flush()
	if !a.cfg.Verbose || a.cfg.Full {
		return
	}
	a.reporter.Control(report.Reset)
	a.reporter.Write(fmt.Sprintf("  trial %d/%d", done, total))
	if done == total {
		a.reporter.Control(report.Reset)
		a.reporter.Control(-meterWidth)
	}
}

// meterWidth is how many columns the trial meter may occupy; the blanking
// control erases that many.
const meterWidth = 24

// summary renders the multi-file results table through the reporter, so
// the transcript log carries it too.
func (a *App) summary(results []*engine.FileResult, failed int) {
	if len(results)+failed < 2 {
		return
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"File", "In", "Out", "Saved", "Action"})
	var tin, tout int64
	for _, r := range results {
		tin += r.InSize
		tout += r.OutSize
		tw.AppendRow(table.Row{r.Path, r.InSize, r.OutSize, savedPct(r.InSize, r.OutSize), r.Action})
	}
	tw.AppendFooter(table.Row{"Total", tin, tout, savedPct(tin, tout), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "In", Align: text.AlignRight},
		{Name: "Out", Align: text.AlignRight},
		{Name: "Saved", Align: text.AlignRight},
	})
	tw.SetStyle(table.StyleLight)

	a.reporter.Control(report.LineBreak)
	a.reporter.Write("\n" + tw.Render() + "\n")
	if failed > 0 {
		a.reporter.Write(fmt.Sprintf("%d files failed\n", failed))
	}
}

func savedPct(in, out int64) string {
	if in <= 0 || out >= in {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(in-out)/float64(in))
}

// expandArgs turns the watch-mode arguments, which may be directories,
// into the initial list of files.
func (a *App) expandArgs(args []string) []string {
	var files []string
	for _, arg := range args {
		found, err := fsutil.FindPNGFiles(arg)
		if err != nil {
			a.logger.Warn("Cannot scan path.", "path", arg, "error", err)
			continue
		}
		files = append(files, found...)
	}
	return files
}

// applyPreset resolves -use: it locates the preset file, loads it, and
// layers the named preset under the command-line configuration.
func applyPreset(ctx context.Context, cfg *config.Config) error {
	path, ok := preset.Find()
	if !ok {
		return fmt.Errorf("preset %q requested but no preset file was found", cfg.PresetName)
	}
	f, err := preset.Load(ctx, path)
	if err != nil {
		return err
	}
	p, ok := f.Get(cfg.PresetName)
	if !ok {
		return fmt.Errorf("preset %q not found in %s (have: %s)",
			cfg.PresetName, path, strings.Join(f.Names(), ", "))
	}
	return preset.Apply(cfg, p)
}
