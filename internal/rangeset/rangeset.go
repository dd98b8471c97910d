// Package rangeset implements the compact range notation used on the
// command line for sets of small integers ("0,3-5,9"), backed by a
// single-word bitset, plus the multiplier-aware numeric parser shared by
// size-like option values ("32k").
package rangeset

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Set is a fixed-width bitset over the domain 0..MaxValue. The zero value
// is the empty set. Sets are combined by union and never negated.
type Set uint32

// MaxValue is the sanity ceiling for set members. Option domains are far
// smaller; anything above this is rejected outright during parsing.
const MaxValue = 30

// FromValues builds a set containing the given values. Values outside the
// domain are ignored.
func FromValues(vs ...int) Set {
	var s Set
	for _, v := range vs {
		if v >= 0 && v <= MaxValue {
			s |= 1 << uint(v)
		}
	}
	return s
}

// FromRange builds the set {lo..hi} inclusive. An empty or invalid range
// yields the empty set.
func FromRange(lo, hi int) Set {
	var s Set
	if lo < 0 {
		lo = 0
	}
	if hi > MaxValue {
		hi = MaxValue
	}
	for v := lo; v <= hi; v++ {
		s |= 1 << uint(v)
	}
	return s
}

// Has reports whether v is a member of the set.
func (s Set) Has(v int) bool {
	if v < 0 || v > MaxValue {
		return false
	}
	return s&(1<<uint(v)) != 0
}

// Union returns s ∪ t.
func (s Set) Union(t Set) Set { return s | t }

// Intersect returns s ∩ t.
func (s Set) Intersect(t Set) Set { return s & t }

// Empty reports whether no values are set.
func (s Set) Empty() bool { return s == 0 }

// Count returns the number of members.
func (s Set) Count() int {
	n := 0
	for v := 0; v <= MaxValue; v++ {
		if s.Has(v) {
			n++
		}
	}
	return n
}

// Values returns the members in ascending order.
func (s Set) Values() []int {
	vs := make([]int, 0, s.Count())
	for v := 0; v <= MaxValue; v++ {
		if s.Has(v) {
			vs = append(vs, v)
		}
	}
	return vs
}

// String renders the set back into range notation, e.g. "0-2,5".
func (s Set) String() string {
	if s.Empty() {
		return ""
	}
	var b strings.Builder
	v := 0
	for v <= MaxValue {
		if !s.Has(v) {
			v++
			continue
		}
		lo := v
		for v <= MaxValue && s.Has(v) {
			v++
		}
		hi := v - 1
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		switch {
		case lo == hi:
			fmt.Fprintf(&b, "%d", lo)
		case hi == lo+1:
			fmt.Fprintf(&b, "%d,%d", lo, hi)
		default:
			fmt.Fprintf(&b, "%d-%d", lo, hi)
		}
	}
	return b.String()
}

// Parse interprets a comma-separated list of single values and ascending
// "lo-hi" ranges, then intersects the result with mask, the set of values
// admissible for the option at hand. It fails if any item is malformed, a
// range descends, a value exceeds the sanity ceiling, or the intersection
// comes out empty. Callers are expected to quote the raw text verbatim in
// their diagnostics; the returned error only carries the reason.
func Parse(text string, mask Set) (Set, error) {
	if text == "" {
		return 0, errors.New("empty range list")
	}
	var s Set
	for _, item := range strings.Split(text, ",") {
		lo, rest, err := parseUint(item)
		if err != nil {
			return 0, err
		}
		hi := lo
		if rest != "" {
			if rest[0] != '-' {
				return 0, fmt.Errorf("unexpected %q in range list", rest)
			}
			hi, rest, err = parseUint(rest[1:])
			if err != nil {
				return 0, err
			}
			if rest != "" {
				return 0, fmt.Errorf("unexpected %q in range list", rest)
			}
			if hi < lo {
				return 0, fmt.Errorf("descending range %d-%d", lo, hi)
			}
		}
		if hi > MaxValue {
			return 0, fmt.Errorf("value %d out of range", hi)
		}
		s = s.Union(FromRange(int(lo), int(hi)))
	}
	s = s.Intersect(mask)
	if s.Empty() {
		return 0, errors.New("no value in the admissible range")
	}
	return s, nil
}

// ParseScaled parses a non-negative decimal number with an optional binary
// multiplier suffix: k/K (x2^10), m/M (x2^20), g/G (x2^30). A product that
// would overflow int64 saturates to math.MaxInt64 rather than wrapping.
// This mode serves size-like option values, not range lists.
func ParseScaled(text string) (int64, error) {
	v, rest, err := parseUint(text)
	if err != nil {
		return 0, err
	}
	var shift uint
	switch rest {
	case "":
		return v, nil
	case "k", "K":
		shift = 10
	case "m", "M":
		shift = 20
	case "g", "G":
		shift = 30
	default:
		return 0, fmt.Errorf("unrecognized suffix %q", rest)
	}
	if v > math.MaxInt64>>shift {
		return math.MaxInt64, nil
	}
	return v << shift, nil
}

// parseUint consumes a leading run of decimal digits and returns its value
// and the unconsumed remainder. Accumulation saturates at MaxInt64 instead
// of wrapping; the domain checks of the callers reject such values anyway.
func parseUint(text string) (int64, string, error) {
	i := 0
	var v int64
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		d := int64(text[i] - '0')
		if v > (math.MaxInt64-d)/10 {
			v = math.MaxInt64
		} else {
			v = v*10 + d
		}
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("expected a number, got %q", text)
	}
	return v, text[i:], nil
}
