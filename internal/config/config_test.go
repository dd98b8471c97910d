package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlot_FirstAssignmentWins(t *testing.T) {
	t.Parallel()

	var s Slot
	require.False(t, s.IsSet())
	require.Equal(t, 2, s.Or(2))

	_, ok := s.Set(3)
	require.True(t, ok)
	require.True(t, s.IsSet())
	require.Equal(t, 3, s.Value())
	require.Equal(t, 3, s.Or(2))

	// Re-recording the identical value is agreement, not a conflict.
	_, ok = s.Set(3)
	require.True(t, ok)

	// A different value is refused and the original survives.
	prev, ok := s.Set(5)
	require.False(t, ok)
	require.Equal(t, 3, prev)
	require.Equal(t, 3, s.Value())
}

func TestValidate_OutFileExclusions(t *testing.T) {
	t.Parallel()

	c := &Config{OutFile: "a.png", OutDir: "b/"}
	require.Error(t, c.Validate())

	c = &Config{OutFile: "a.png", Files: []string{"x.png", "y.png"}}
	require.Error(t, c.Validate())

	c = &Config{OutFile: "a.png", Files: []string{"x.png"}}
	require.NoError(t, c.Validate())
}

func TestValidate_LogSuffix(t *testing.T) {
	t.Parallel()

	c := &Config{LogFile: "notes.txt"}
	require.Error(t, c.Validate())

	c = &Config{LogFile: "notes.log"}
	require.NoError(t, c.Validate())

	// The suffix check is case-insensitive.
	c = &Config{LogFile: "NOTES.LOG"}
	require.NoError(t, c.Validate())
}

func TestValidate_WatchInPlaceOnly(t *testing.T) {
	t.Parallel()

	c := &Config{Watch: true, OutFile: "a.png", Files: []string{"x"}}
	require.Error(t, c.Validate())

	c = &Config{Watch: true, Files: []string{"dir"}}
	require.NoError(t, c.Validate())
}
