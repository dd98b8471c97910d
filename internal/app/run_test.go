package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psq/pngsquash/internal/cli"
	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/engine"
	"github.com/psq/pngsquash/internal/testutil"
)

func TestRun_OptimizesEachFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var out bytes.Buffer
	cfg := &config.Config{Files: []string{"a.png", "b.png"}}
	fake := &fakeEngine{}
	a := NewApp(&out, io.Discard, cfg, fake)

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, fake.seen)
	assert.Equal(t, 1, fake.initCalls)
	assert.True(t, fake.finalized)
	assert.Contains(t, out.String(), "pngsquash "+cli.Version+": lossless PNG size reducer")
}

func TestRun_CountsFailuresAndKeepsGoing(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg := &config.Config{Files: []string{"a.png", "b.png", "c.png"}}
	fake := &fakeEngine{}
	fake.optimize = func(_ context.Context, path string) (*engine.FileResult, error) {
		if path == "b.png" {
			return nil, errors.New("boom")
		}
		return &engine.FileResult{Path: path, InSize: 100, OutSize: 80, Action: "optimized"}, nil
	}
	a := NewApp(&out, io.Discard, cfg, fake)

	err := a.Run(context.Background())

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Equal(t, "1 of 3 files could not be optimized", exitErr.Message)

	assert.Len(t, fake.seen, 3, "a failure must not stop the batch")
	assert.True(t, fake.finalized)
	assert.Contains(t, out.String(), "Error: b.png: boom")
	assert.Contains(t, out.String(), "1 files failed")
}

func TestRun_AbortsOnEngineExitError(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Quiet: true, Files: []string{"a.png", "b.png"}}
	fake := &fakeEngine{}
	fake.optimize = func(_ context.Context, _ string) (*engine.FileResult, error) {
		return nil, &cli.ExitError{Code: 3, Message: "engine says stop"}
	}
	a := NewApp(io.Discard, io.Discard, cfg, fake)

	err := a.Run(context.Background())

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, []string{"a.png"}, fake.seen, "an exit error ends the batch at once")
	assert.False(t, fake.finalized)
}

func TestRun_EnginePanicBecomesSoftwareError(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Quiet: true, Files: []string{"a.png", "b.png"}}
	fake := &fakeEngine{}
	fake.optimize = func(_ context.Context, _ string) (*engine.FileResult, error) {
		panic("snapped an invariant")
	}
	a := NewApp(io.Discard, io.Discard, cfg, fake)

	err := a.Run(context.Background())

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 70, exitErr.Code)
	assert.Contains(t, exitErr.Message, "internal error: snapped an invariant")
	assert.Equal(t, []string{"a.png"}, fake.seen)
}

func TestRun_DebugLetsPanicsCrash(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Quiet: true, Debug: true, Files: []string{"a.png"}}
	fake := &fakeEngine{}
	fake.optimize = func(_ context.Context, _ string) (*engine.FileResult, error) {
		panic("snapped an invariant")
	}
	a := NewApp(io.Discard, io.Discard, cfg, fake)

	require.Panics(t, func() {
		_ = a.Run(context.Background())
	})
}

func TestRun_SummaryTable(t *testing.T) {
	t.Parallel()

	t.Run("rendered for two or more files", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		cfg := &config.Config{Files: []string{"a.png", "b.png"}}
		a := NewApp(&out, io.Discard, cfg, &fakeEngine{})

		require.NoError(t, a.Run(context.Background()))

		assert.Contains(t, out.String(), "TOTAL")
		assert.Contains(t, out.String(), "20.0%")
		assert.Contains(t, out.String(), "optimized")
	})

	t.Run("skipped for a single file", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		cfg := &config.Config{Files: []string{"a.png"}}
		a := NewApp(&out, io.Discard, cfg, &fakeEngine{})

		require.NoError(t, a.Run(context.Background()))

		assert.NotContains(t, out.String(), "TOTAL")
	})
}

func TestRun_ProgressMeter(t *testing.T) {
	t.Parallel()

	newMeterApp := func(out *bytes.Buffer, verbose bool) (*App, *fakeEngine) {
		cfg := &config.Config{Verbose: verbose, Files: []string{"a.png"}}
		fake := &fakeEngine{}
		fake.optimize = func(_ context.Context, path string) (*engine.FileResult, error) {
			fake.ui.Progress(1, 2)
			fake.ui.Progress(2, 2)
			return &engine.FileResult{Path: path, InSize: 10, OutSize: 9, Action: "optimized"}, nil
		}
		return NewApp(out, io.Discard, cfg, fake), fake
	}

	t.Run("verbose rewrites the line in place", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		a, _ := newMeterApp(&out, true)

		require.NoError(t, a.Run(context.Background()))

		assert.Contains(t, out.String(), "\r  trial 1/2")
		assert.Contains(t, out.String(), "\r  trial 2/2")
		assert.Contains(t, out.String(), strings.Repeat(" ", meterWidth)+"\r",
			"the finished meter must be blanked")
	})

	t.Run("off without verbose", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		a, _ := newMeterApp(&out, false)

		require.NoError(t, a.Run(context.Background()))

		assert.NotContains(t, out.String(), "trial")
	})

	t.Run("ticks reach the console while the file is processing", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		var midFile string
		cfg := &config.Config{Verbose: true, Files: []string{"a.png"}}
		fake := &fakeEngine{}
		fake.optimize = func(_ context.Context, path string) (*engine.FileResult, error) {
			fake.ui.Print("** Processing: " + path + "\n")
			fake.ui.Progress(1, 2)
			// What the user's terminal shows at this point, with the
			// second trial still ahead.
			midFile = out.String()
			fake.ui.Progress(2, 2)
			return &engine.FileResult{Path: path, InSize: 10, OutSize: 9, Action: "optimized"}, nil
		}
		a := NewApp(&out, io.Discard, cfg, fake)

		require.NoError(t, a.Run(context.Background()))

		assert.Contains(t, midFile, "** Processing: a.png")
		assert.Contains(t, midFile, "trial 1/2")
	})
}

func TestProcessBatch_PrunesWriteLog(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Quiet: true}
	a := NewApp(io.Discard, io.Discard, cfg, &fakeEngine{})
	a.written["stale.png"] = time.Now().Add(-3 * time.Second)
	a.written["fresh.png"] = time.Now()

	require.NoError(t, a.processBatch(context.Background(), nil))

	assert.NotContains(t, a.written, "stale.png")
	assert.Contains(t, a.written, "fresh.png")
}

func TestWatchLoop_DebounceCoalescesBursts(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := &config.Config{Quiet: true}
	fake := &fakeEngine{}
	a := NewApp(io.Discard, io.Discard, cfg, fake)

	events := make(chan fsnotify.Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.watchLoop(ctx, events, make(chan error), func(string) {}) }()

	// --- Act ---
	// An editor save fires several events back to back; a second file and
	// a backup artifact change inside the same window.
	for i := 0; i < 3; i++ {
		events <- fsnotify.Event{Name: "b.png", Op: fsnotify.Write}
	}
	events <- fsnotify.Event{Name: "a.png", Op: fsnotify.Create}
	events <- fsnotify.Event{Name: "a.png", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "c.png.bak", Op: fsnotify.Write}

	require.Eventually(t, func() bool {
		return fake.sawPath("a.png") && fake.sawPath("b.png")
	}, 5*time.Second, 10*time.Millisecond)

	// --- Assert ---
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"a.png", "b.png"}, fake.seen,
		"the burst must collapse into one sorted pass with one visit per file")
}

func TestWatchLoop_IgnoresOwnRecentWrites(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := &config.Config{Quiet: true}
	fake := &fakeEngine{}
	a := NewApp(io.Discard, io.Discard, cfg, fake)
	a.written["own.png"] = time.Now()

	events := make(chan fsnotify.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.watchLoop(ctx, events, make(chan error), func(string) {}) }()

	// --- Act ---
	events <- fsnotify.Event{Name: "own.png", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "other.png", Op: fsnotify.Write}

	require.Eventually(t, func() bool {
		return fake.sawPath("other.png")
	}, 5*time.Second, 10*time.Millisecond)

	// --- Assert ---
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"other.png"}, fake.seen,
		"a fresh self-written output must not re-trigger optimization")
}

func TestRun_WatchOptimizesNewFiles(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "seed.png", []byte("placeholder"))
	cfg := &config.Config{Quiet: true, Watch: true, Files: []string{dir}}
	fake := &fakeEngine{}
	a := NewApp(io.Discard, io.Discard, cfg, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)

	// --- Act ---
	go func() { done <- a.Run(ctx) }()

	// The initial sweep covers files already present.
	require.Eventually(t, func() bool {
		return fake.sawPath(filepath.Join(dir, "seed.png"))
	}, 5*time.Second, 10*time.Millisecond)

	// A file appearing later is picked up after the debounce window. The
	// write is repeated on an interval longer than the debounce, in case
	// the first one lands before the watcher is registered.
	later := filepath.Join(dir, "later.png")
	require.Eventually(t, func() bool {
		if !fake.sawPath(later) {
			_ = os.WriteFile(later, []byte("placeholder"), 0o644)
			return false
		}
		return true
	}, 15*time.Second, 750*time.Millisecond)

	// --- Assert ---
	cancel()
	require.NoError(t, <-done)
}
