package app

import (
	"io"
	"log/slog"

	"github.com/psq/pngsquash/internal/config"
)

// newLogger creates and configures a new slog.Logger instance. It does not
// set the global logger, allowing for isolated logger instances. Warnings
// and errors always surface; -verbose opens the info level and -debug
// everything.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case cfg.Verbose:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
