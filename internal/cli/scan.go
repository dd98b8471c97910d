package cli

import "strings"

// maxKeyLen bounds the canonical key buffer. An absurdly long option name
// is truncated, which may change the matching outcome (it will simply not
// match anything) but can never corrupt adjacent state.
const maxKeyLen = 31

// tokenKind classifies one raw command-line token.
type tokenKind int

const (
	tokenFile tokenKind = iota
	tokenOption
	tokenStop
)

// scannedToken is the decomposition of one raw token: its kind, the
// canonical (lowercased, bounded) option key, and an inline value when one
// was attached to the option itself.
type scannedToken struct {
	kind     tokenKind
	key      string
	value    string
	hasValue bool
}

// scanToken classifies tok without consulting the option table. Everything
// that does not look like an option introducer, including the bare "-"
// placeholder, is a filename candidate and is left untouched. A token made
// of nothing but dashes is the stop switch.
func scanToken(tok string) scannedToken {
	if len(tok) < 2 || tok[0] != '-' {
		return scannedToken{kind: tokenFile}
	}

	// Collapse the run of leading dashes into a single marker.
	i := 0
	for i < len(tok) && tok[i] == '-' {
		i++
	}
	if i == len(tok) {
		return scannedToken{kind: tokenStop}
	}
	rest := tok[i:]

	// The key ends at an explicit "=", at embedded whitespace, or at a
	// digit in the positions where a juxtaposed value is documented:
	// one of the single-letter options f, i, o directly followed by the
	// digit ("-o3"), or a z-family pair followed by it ("-zc3-9").
	keyEnd := len(rest)
	for j := 0; j < len(rest); j++ {
		c := rest[j]
		if c == '=' || c == ' ' || c == '\t' {
			keyEnd = j
			break
		}
		if c >= '0' && c <= '9' && juxtaposedAt(rest, j) {
			keyEnd = j
			break
		}
	}

	key := rest[:keyEnd]
	if len(key) > maxKeyLen {
		key = key[:maxKeyLen]
	}
	key = strings.ToLower(key)

	sc := scannedToken{kind: tokenOption, key: key}
	switch tail := rest[keyEnd:]; {
	case tail == "":
	case tail[0] == '=':
		sc.value = tail[1:]
		sc.hasValue = true
	case tail[0] == ' ' || tail[0] == '\t':
		if trimmed := strings.TrimLeft(tail, " \t"); trimmed != "" {
			sc.value = trimmed
			sc.hasValue = true
		}
	default: // digit run and whatever follows it
		sc.value = tail
		sc.hasValue = true
	}
	return sc
}

// juxtaposedAt reports whether a digit at position j of the dash-stripped
// token starts a juxtaposed value rather than being part of the key.
func juxtaposedAt(rest string, j int) bool {
	switch j {
	case 1:
		c := lowerByte(rest[0])
		return c == 'f' || c == 'i' || c == 'o'
	case 2:
		return lowerByte(rest[0]) == 'z' && isLetter(rest[1])
	default:
		return false
	}
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
