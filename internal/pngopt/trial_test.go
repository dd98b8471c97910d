package pngopt

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/rangeset"
)

func TestDeflateInflateRoundTrip(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("scanline data with some repetition "), 40)

	for _, level := range []int{1, 6, 9} {
		packed, err := deflate(data, level)
		require.NoError(t, err)

		back, err := inflate(packed)
		require.NoError(t, err)
		require.Equal(t, data, back, "level %d", level)
	}
}

func TestInflate_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := inflate([]byte("not a zlib stream"))

	require.Error(t, err)
}

func TestDefaultTrials(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		optLevel    int
		wantLevels  []int
		wantFilters []int
	}{
		{"o0", 0, []int{9}, []int{0}},
		{"o1", 1, []int{9}, []int{0}},
		{"o2", 2, []int{9}, []int{0, 5}},
		{"o3", 3, []int{8, 9}, []int{0, 5}},
		{"o4", 4, []int{7, 8, 9}, []int{0, 5}},
		{"o5", 5, []int{6, 7, 8, 9}, []int{0, 5}},
		{"o6", 6, []int{6, 7, 8, 9}, []int{0, 1, 2, 3, 4, 5}},
		{"o7", 7, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, []int{0, 1, 2, 3, 4, 5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			levels, filters := defaultTrials(tc.optLevel)

			assert.Equal(t, tc.wantLevels, levels.Values())
			assert.Equal(t, tc.wantFilters, filters.Values())
		})
	}
}

func TestNewTrialSpace(t *testing.T) {
	t.Parallel()

	t.Run("level 2 is the default", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{}

		space := newTrialSpace(cfg)

		assert.Equal(t, []int{9}, space.levels)
		assert.Equal(t, []int{0, 5}, space.filters)
	})

	t.Run("higher level widens the grid", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{}
		cfg.OptLevel.Set(5)

		space := newTrialSpace(cfg)

		assert.Equal(t, []int{6, 7, 8, 9}, space.levels)
		assert.Equal(t, 8, space.size())
	})

	t.Run("explicit zlib levels replace their dimension", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{ZLevels: rangeset.FromValues(3)}
		cfg.OptLevel.Set(5)

		space := newTrialSpace(cfg)

		assert.Equal(t, []int{3}, space.levels)
		assert.Equal(t, []int{0, 5}, space.filters, "filters stay on the level default")
	})

	t.Run("explicit filters replace their dimension", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Filters: rangeset.FromValues(4)}

		space := newTrialSpace(cfg)

		assert.Equal(t, []int{9}, space.levels)
		assert.Equal(t, []int{4}, space.filters)
	})
}

func TestTrialSpaceSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4, trialSpace{levels: []int{1, 2}, filters: []int{0, 5}}.size())
	assert.Equal(t, 2, trialSpace{levels: []int{1, 2}}.size(), "no filter dimension for interlaced images")
	assert.True(t, trialSpace{}.empty())
	assert.False(t, trialSpace{levels: []int{9}}.empty())
}

func TestRecompress(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := header{width: 23, height: 9, bitDepth: 8, colorType: colorGray}
	rows := testRows(h.height, h.rowBytes())
	raw := applyFilters(rows, h.filterStep(), filterNone)
	space := trialSpace{levels: []int{6, 9}, filters: []int{0, 5}}

	var seen []trialResult
	observe := func(tr trialResult) { seen = append(seen, tr) }

	// --- Act ---
	best, bestTrial, err := recompress(context.Background(), h, raw, rows, space, observe)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, seen, 4, "every grid point must be attempted")
	assert.Equal(t, len(best), bestTrial.size)
	for _, tr := range seen {
		assert.LessOrEqual(t, bestTrial.size, tr.size, "winner must be the smallest attempt")
	}

	// The winning stream must still decode to the original scanlines.
	stream, err := inflate(best)
	require.NoError(t, err)
	back, err := unfilter(stream, h)
	require.NoError(t, err)
	require.Equal(t, rows, back)
}

func TestRecompress_InterlacedKeepsStoredLayout(t *testing.T) {
	t.Parallel()

	// With no scanlines to re-filter the grid collapses to compression
	// levels only and the stored stream is compressed as is.
	h := header{width: 4, height: 4, bitDepth: 8, colorType: colorGray, interlace: 1}
	raw := bytes.Repeat([]byte{0, 7, 7, 7, 7}, 4)
	space := trialSpace{levels: []int{6, 9}, filters: []int{0, 5}}

	var seen []trialResult
	best, bestTrial, err := recompress(context.Background(), h, raw, nil, space, func(tr trialResult) {
		seen = append(seen, tr)
	})

	require.NoError(t, err)
	require.Len(t, seen, 2)
	for _, tr := range seen {
		assert.Equal(t, -1, tr.filter)
	}
	assert.Equal(t, -1, bestTrial.filter)

	back, err := inflate(best)
	require.NoError(t, err)
	assert.Equal(t, raw, back)
}

func TestRecompress_Cancelled(t *testing.T) {
	t.Parallel()

	h := header{width: 4, height: 2, bitDepth: 8, colorType: colorGray}
	rows := testRows(h.height, h.rowBytes())
	raw := applyFilters(rows, h.filterStep(), filterNone)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := recompress(ctx, h, raw, rows, trialSpace{levels: []int{9}, filters: []int{0}}, nil)

	require.ErrorIs(t, err, context.Canceled)
}
