package pngopt

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/rangeset"
)

// inflate decompresses one complete zlib stream.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return out, nil
}

// deflate compresses data into a zlib stream at the given level.
func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// trialSpace is the recompression parameter grid tried for one file.
type trialSpace struct {
	levels  []int
	filters []int
}

func (s trialSpace) empty() bool { return len(s.levels) == 0 }

// size is the number of parameter combinations the grid holds.
func (s trialSpace) size() int {
	if len(s.filters) == 0 {
		return len(s.levels)
	}
	return len(s.levels) * len(s.filters)
}

// defaultTrials is the parameter grid implied by an optimization level.
// Higher levels widen the grid and cost proportionally more time.
func defaultTrials(optLevel int) (levels, filters rangeset.Set) {
	switch {
	case optLevel <= 1:
		return rangeset.FromValues(9), rangeset.FromValues(0)
	case optLevel == 2:
		return rangeset.FromValues(9), rangeset.FromValues(0, 5)
	case optLevel == 3:
		return rangeset.FromRange(8, 9), rangeset.FromValues(0, 5)
	case optLevel == 4:
		return rangeset.FromRange(7, 9), rangeset.FromValues(0, 5)
	case optLevel == 5:
		return rangeset.FromRange(6, 9), rangeset.FromValues(0, 5)
	case optLevel == 6:
		return rangeset.FromRange(6, 9), rangeset.FromRange(0, 5)
	default:
		return rangeset.FromRange(1, 9), rangeset.FromRange(0, 5)
	}
}

// newTrialSpace derives the grid for a configuration: the optimization
// level picks the defaults, and each explicitly given set replaces its
// dimension wholesale.
func newTrialSpace(cfg *config.Config) trialSpace {
	levels, filters := defaultTrials(cfg.OptLevel.Or(2))
	if !cfg.ZLevels.Empty() {
		levels = cfg.ZLevels
	}
	if !cfg.Filters.Empty() {
		filters = cfg.Filters
	}
	return trialSpace{levels: levels.Values(), filters: filters.Values()}
}

// trialResult is one recompression attempt. filter is -1 for interlaced
// images, where the stored filter layout is kept as is.
type trialResult struct {
	level  int
	filter int
	size   int
}

// recompress searches the trial grid for the smallest IDAT encoding and
// returns it with its parameters. raw is the decompressed image stream;
// rows are its unfiltered scanlines, or nil for interlaced images, whose
// stored filter layout is kept as is because re-filtering would need
// per-pass geometry. observe is called after every attempt.
func recompress(ctx context.Context, h header, raw []byte, rows [][]byte, space trialSpace, observe func(trialResult)) ([]byte, trialResult, error) {
	filters := space.filters
	if rows == nil {
		filters = []int{-1}
	}

	var best []byte
	var bestTrial trialResult
	step := h.filterStep()
	for _, f := range filters {
		stream := raw
		if f >= 0 {
			stream = applyFilters(rows, step, f)
		}
		for _, level := range space.levels {
			if err := ctx.Err(); err != nil {
				return nil, trialResult{}, err
			}
			packed, err := deflate(stream, level)
			if err != nil {
				return nil, trialResult{}, fmt.Errorf("deflate level %d: %w", level, err)
			}
			t := trialResult{level: level, filter: f, size: len(packed)}
			if observe != nil {
				observe(t)
			}
			if best == nil || t.size < bestTrial.size {
				best = packed
				bestTrial = t
			}
		}
	}
	return best, bestTrial, nil
}
