package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/ctxlog"
	"github.com/psq/pngsquash/internal/engine"
	"github.com/psq/pngsquash/internal/report"
)

// App encapsulates the driver's dependencies, configuration, and
// lifecycle.
type App struct {
	logger   *slog.Logger
	cfg      *config.Config
	eng      engine.Engine
	reporter *report.Reporter

	console *bufio.Writer // nil in quiet mode
	logFile *os.File      // nil without -log

	// written records output paths with their write times, so watch mode
	// can tell the optimizer's own writes from user changes.
	written map[string]time.Time
}

// NewApp is the constructor for the driver. It builds the isolated logger
// and the dual-sink reporter, and opens the transcript log when one was
// requested. Failures at this stage make the whole run impossible, so
// they panic; the entrypoint recovers and exits cleanly.
func NewApp(consoleW, diagW io.Writer, cfg *config.Config, eng engine.Engine) *App {
	logger := newLogger(cfg, diagW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		logger:  logger,
		cfg:     cfg,
		eng:     eng,
		written: make(map[string]time.Time),
	}

	var console io.Writer
	if !cfg.Quiet {
		a.console = bufio.NewWriter(consoleW)
		console = a.console
	}

	var logW io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Errorf("failed to open log file: %w", err))
		}
		a.logFile = f
		logW = f
		fmt.Fprintf(f, "=== pngsquash session %s ===\n", time.Now().Format(time.RFC3339))
	}

	a.reporter = report.New(console, logW)
	logger.Debug("Reporter configured.", "console", console != nil, "log", cfg.LogFile)

	if cfg.PresetName != "" {
		ctx := ctxlog.WithLogger(context.Background(), logger)
		if err := applyPreset(ctx, cfg); err != nil {
			// A failure to resolve the requested preset is a fatal
			// startup error.
			panic(err)
		}
		logger.Debug("Preset applied.", "preset", cfg.PresetName)
	}
	return a
}

// close releases what NewApp acquired.
func (a *App) close() {
	a.reporter.Flush()
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			a.logger.Warn("Failed to close log file.", "error", err)
		}
	}
}
