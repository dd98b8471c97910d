package cli

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/rangeset"
)

// resolveState carries the outcome of one resolver pass. Help and version
// requests are recorded here rather than in the config because they end the
// program before a config is ever used.
type resolveState struct {
	cfg     *config.Config
	help    bool
	version bool
}

type applyFunc func(st *resolveState, def *optionDef, val string) error

// optionDef describes one recognized option. A key matches the entry when
// it is a prefix of name and at least minLen characters long; minLen values
// are hand-picked so that no key can ever match two entries.
type optionDef struct {
	name       string
	minLen     int
	takesValue bool
	apply      applyFunc
}

// optionTable lists every recognized option in alphabetical order. Bare
// "-s" and "-v" are deliberately absent: each would abbreviate several
// entries, so their minimum lengths keep them unrecognized.
var optionTable = []optionDef{
	{"?", 1, false, markHelp},
	{"backup", 1, false, flag(func(c *config.Config) { c.Backup = true })},
	{"clobber", 1, false, flag(func(c *config.Config) { c.Clobber = true })},
	{"debug", 2, false, flag(func(c *config.Config) { c.Debug = true })},
	{"dir", 2, true, str(func(c *config.Config) *string { return &c.OutDir })},
	{"f", 1, true, set(rangeset.FromRange(0, 5), func(c *config.Config) *rangeset.Set { return &c.Filters })},
	{"fix", 2, false, flag(func(c *config.Config) { c.Fix = true })},
	{"force", 2, false, flag(func(c *config.Config) { c.Force = true })},
	{"full", 2, false, flag(func(c *config.Config) { c.Full = true })},
	{"help", 1, false, markHelp},
	{"i", 1, true, integer(0, 1, func(c *config.Config) *config.Slot { return &c.Interlace })},
	{"keep", 1, false, flag(func(c *config.Config) { c.Backup = true })},
	{"log", 1, true, str(func(c *config.Config) *string { return &c.LogFile })},
	{"nb", 2, false, flag(func(c *config.Config) { c.NoBitDepth = true })},
	{"nc", 2, false, flag(func(c *config.Config) { c.NoColor = true })},
	{"np", 2, false, flag(func(c *config.Config) { c.NoPalette = true })},
	{"nx", 2, false, flag(func(c *config.Config) {
		c.NoBitDepth = true
		c.NoColor = true
		c.NoPalette = true
	})},
	{"nz", 2, false, flag(func(c *config.Config) { c.NoRecoding = true })},
	{"o", 1, true, integer(0, 7, func(c *config.Config) *config.Slot { return &c.OptLevel })},
	{"out", 3, true, str(func(c *config.Config) *string { return &c.OutFile })},
	{"preserve", 1, false, flag(func(c *config.Config) { c.Preserve = true })},
	{"quiet", 1, false, flag(func(c *config.Config) { c.Quiet = true })},
	{"silent", 3, false, flag(func(c *config.Config) { c.Quiet = true })},
	{"simulate", 3, false, flag(func(c *config.Config) { c.Simulate = true })},
	{"snip", 2, false, flag(func(c *config.Config) { c.Snip = true })},
	{"strip", 2, true, applyStrip},
	{"use", 1, true, str(func(c *config.Config) *string { return &c.PresetName })},
	{"verbose", 4, false, flag(func(c *config.Config) { c.Verbose = true })},
	{"version", 4, false, markVersion},
	{"watch", 1, false, flag(func(c *config.Config) { c.Watch = true })},
	{"zc", 2, true, set(rangeset.FromRange(1, 9), func(c *config.Config) *rangeset.Set { return &c.ZLevels })},
	{"zm", 2, true, set(rangeset.FromRange(1, 9), func(c *config.Config) *rangeset.Set { return &c.ZMemLevels })},
	{"zs", 2, true, set(rangeset.FromRange(0, 3), func(c *config.Config) *rangeset.Set { return &c.ZStrategies })},
	{"zw", 2, true, windowSize(8, 15, func(c *config.Config) *config.Slot { return &c.WindowBits })},
}

// matchOption finds the table entry a canonical key abbreviates, if any.
func matchOption(key string) (*optionDef, bool) {
	for i := range optionTable {
		def := &optionTable[i]
		if len(key) >= def.minLen && strings.HasPrefix(def.name, key) {
			return def, true
		}
	}
	return nil, false
}

func markHelp(st *resolveState, _ *optionDef, _ string) error {
	st.help = true
	return nil
}

func markVersion(st *resolveState, _ *optionDef, _ string) error {
	st.version = true
	return nil
}

// flag builds the apply function for an option that takes no argument.
func flag(setter func(*config.Config)) applyFunc {
	return func(st *resolveState, _ *optionDef, _ string) error {
		setter(st.cfg)
		return nil
	}
}

// integer builds the apply function for a bounded numeric option backed by
// a write-once slot.
func integer(lo, hi int, slot func(*config.Config) *config.Slot) applyFunc {
	return func(st *resolveState, def *optionDef, val string) error {
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return fmt.Errorf("option -%s: invalid argument %q", def.name, val)
		}
		v := int(n)
		if v < lo || v > hi {
			return fmt.Errorf("option -%s: value %d out of range %d..%d", def.name, v, lo, hi)
		}
		if prev, ok := slot(st.cfg).Set(v); !ok {
			return fmt.Errorf("option -%s: conflicting values %d and %d", def.name, prev, v)
		}
		return nil
	}
}

// windowSize builds the apply function for the deflate window option: the
// argument is a power-of-2 byte count, optionally scaled, stored as its
// base-2 exponent.
func windowSize(loBits, hiBits int, slot func(*config.Config) *config.Slot) applyFunc {
	return func(st *resolveState, def *optionDef, val string) error {
		n, err := rangeset.ParseScaled(val)
		if err != nil {
			return fmt.Errorf("option -%s: invalid argument %q", def.name, val)
		}
		if n <= 0 || n&(n-1) != 0 {
			return fmt.Errorf("option -%s: %q is not a power of 2", def.name, val)
		}
		b := bits.TrailingZeros64(uint64(n))
		if b < loBits || b > hiBits {
			return fmt.Errorf("option -%s: value %d out of range %d..%d",
				def.name, n, int64(1)<<loBits, int64(1)<<hiBits)
		}
		if prev, ok := slot(st.cfg).Set(b); !ok {
			return fmt.Errorf("option -%s: conflicting values %d and %d",
				def.name, int64(1)<<prev, n)
		}
		return nil
	}
}

// set builds the apply function for a rangeset option. Repeats accumulate
// by union, so "-f0 -f5" and "-f0,5" are equivalent.
func set(mask rangeset.Set, sel func(*config.Config) *rangeset.Set) applyFunc {
	return func(st *resolveState, def *optionDef, val string) error {
		s, err := rangeset.Parse(val, mask)
		if err != nil {
			return fmt.Errorf("option -%s: invalid argument %q: %w", def.name, val, err)
		}
		p := sel(st.cfg)
		*p = p.Union(s)
		return nil
	}
}

// str builds the apply function for a string-valued option, which may be
// given at most once.
func str(sel func(*config.Config) *string) applyFunc {
	return func(st *resolveState, def *optionDef, val string) error {
		p := sel(st.cfg)
		if *p != "" {
			return fmt.Errorf("option -%s set more than once", def.name)
		}
		*p = val
		return nil
	}
}

func applyStrip(st *resolveState, _ *optionDef, val string) error {
	if !strings.EqualFold(val, "all") {
		return fmt.Errorf("option -strip: unknown action %q", val)
	}
	st.cfg.StripAll = true
	return nil
}
