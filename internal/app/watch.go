package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/psq/pngsquash/internal/cli"
	"github.com/psq/pngsquash/internal/fsutil"
	"github.com/psq/pngsquash/internal/report"
)

const (
	// watchDebounce batches the event bursts an editor save produces
	// into one optimization pass.
	watchDebounce = 500 * time.Millisecond

	// watchCooldown is how long the optimizer's own writes are ignored,
	// so a rewrite does not trigger itself.
	watchCooldown = 2 * time.Second
)

// watch re-optimizes files as they change on disk until the context is
// canceled. Directory arguments are watched recursively, file arguments
// through their parent directory.
func (a *App) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	added := map[string]bool{}
	addDir := func(dir string) {
		if added[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			a.logger.Warn("Cannot watch directory.", "dir", dir, "error", err)
			return
		}
		added[dir] = true
		a.logger.Debug("Watching directory.", "dir", dir)
	}
	for _, arg := range a.cfg.Files {
		st, err := os.Stat(arg)
		if err != nil {
			a.logger.Warn("Cannot watch path.", "path", arg, "error", err)
			continue
		}
		if !st.IsDir() {
			addDir(filepath.Dir(arg))
			continue
		}
		filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				addDir(p)
			}
			return nil
		})
	}
	if len(added) == 0 {
		return errors.New("watch: nothing to watch")
	}

	a.reporter.Control(report.LineBreak)
	a.reporter.Write("Watching for changes; interrupt to stop.\n")
	a.reporter.Flush()

	return a.watchLoop(ctx, watcher.Events, watcher.Errors, addDir)
}

// watchLoop debounces the event stream into batches. Every relevant
// event parks its file in the pending set and re-arms the timer, so a
// burst of saves collapses into a single pass once the stream has been
// quiet for the debounce interval. The timer starts stopped and drained;
// it runs only while something is pending.
func (a *App) watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, addDir func(string)) error {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	pending := map[string]struct{}{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					addDir(ev.Name)
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !fsutil.IsPNGName(ev.Name) {
				continue
			}
			if t, own := a.written[ev.Name]; own && time.Since(t) < watchCooldown {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(watchDebounce)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			a.logger.Warn("Watcher error.", "error", err)
		case <-timer.C:
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			if err := a.processBatch(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// processBatch handles one debounced set of changed files.
func (a *App) processBatch(ctx context.Context, batch []string) error {
	for _, path := range batch {
		a.reporter.Flush()
		if _, err := a.optimizeOne(ctx, path); err != nil {
			var exitErr *cli.ExitError
			if errors.As(err, &exitErr) {
				return err
			}
			a.reporter.Control(report.LineBreak)
			a.reporter.Write(fmt.Sprintf("Error: %s: %v\n", path, err))
			a.logger.Error("File failed.", "file", path, "error", err)
		}
	}
	a.reporter.Flush()

	for p, t := range a.written {
		if time.Since(t) > watchCooldown {
			delete(a.written, p)
		}
	}
	return nil
}
