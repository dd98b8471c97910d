package rangeset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_SinglesAndRanges(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	mask := FromRange(0, 9)

	// --- Act ---
	s, err := Parse("3-5,7", mask)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 5, 7}, s.Values())
}

func TestParse_MaskIntersection(t *testing.T) {
	t.Parallel()

	// A mask that excludes 7 leaves a non-empty result, so parsing succeeds.
	mask := FromValues(3, 4, 5)
	s, err := Parse("3-5,7", mask)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 5}, s.Values())

	// A mask excluding every requested value empties the set, which is an error.
	_, err = Parse("3-5,7", FromValues(0, 1, 2))
	require.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	mask := FromRange(0, 9)
	for _, text := range []string{"", ",", "3-", "-5", "5-3", "1..3", "2,x", "3-5-7", "1foo"} {
		_, err := Parse(text, mask)
		require.Error(t, err, "input %q should be rejected", text)
	}
}

func TestParse_SanityCeiling(t *testing.T) {
	t.Parallel()

	_, err := Parse("99", FromRange(0, MaxValue))
	require.Error(t, err)

	s, err := Parse("30", FromRange(0, MaxValue))
	require.NoError(t, err)
	require.True(t, s.Has(MaxValue))
}

func TestParseScaled_Multipliers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want int64
	}{
		{"0", 0},
		{"7", 7},
		{"2k", 2048},
		{"2K", 2048},
		{"1m", 1 << 20},
		{"32k", 32768},
		{"1G", 1 << 30},
	}
	for _, tc := range cases {
		got, err := ParseScaled(tc.text)
		require.NoError(t, err, "input %q", tc.text)
		require.Equal(t, tc.want, got, "input %q", tc.text)
	}
}

func TestParseScaled_Saturation(t *testing.T) {
	t.Parallel()

	// A value near the representable maximum multiplied out by a suffix
	// saturates instead of wrapping around.
	got, err := ParseScaled("9223372036854775807G")
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), got)

	got, err = ParseScaled("99999999999999999999999")
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), got)
}

func TestParseScaled_Malformed(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "k", "12q", "3kk", "0x10", " 4"} {
		_, err := ParseScaled(text)
		require.Error(t, err, "input %q should be rejected", text)
	}
}

func TestSet_Algebra(t *testing.T) {
	t.Parallel()

	a := FromValues(1, 3, 5)
	b := FromRange(3, 6)

	require.Equal(t, []int{1, 3, 4, 5, 6}, a.Union(b).Values())
	require.Equal(t, []int{3, 5}, a.Intersect(b).Values())
	require.True(t, Set(0).Empty())
	require.False(t, a.Empty())
	require.Equal(t, 3, a.Count())
	require.True(t, a.Has(5))
	require.False(t, a.Has(2))
	require.False(t, a.Has(-1))
}

func TestSet_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", Set(0).String())
	require.Equal(t, "2", FromValues(2).String())
	require.Equal(t, "0-2,5", FromValues(0, 1, 2, 5).String())
	require.Equal(t, "8,9", FromValues(8, 9).String())
}
