// Package report implements the dual-sink status reporter: every piece of
// user-visible text is written to an interactive console sink and to an
// optional append-only log sink, while a single shared line-state drives
// the carriage-control semantics used for in-place progress updates.
package report

import (
	"fmt"
	"io"
	"strings"
)

// Control codes understood by Reporter.Control. Negative codes in
// (-EraseLimit, 0) blank that many columns of the console line.
const (
	// Reset returns the console cursor to the start of the current line so
	// the next write overwrites it; the log, which has no cursor, receives
	// a line break instead.
	Reset = '\r'

	// LineBreak emits a newline only when the last emission left the line
	// open. Issuing it repeatedly is idempotent.
	LineBreak = '\n'

	// EraseLimit bounds the magnitude of an erase request.
	EraseLimit = 80
)

// Reporter fans text out to up to two sinks. A nil console means quiet
// mode; a nil log means no log destination was configured. Reporter is
// not safe for concurrent use; the run loop is single-threaded and engine
// callbacks re-enter it from that same thread only.
type Reporter struct {
	console     io.Writer
	log         io.Writer
	atLineStart bool
}

// New returns a Reporter over the given sinks, either of which may be nil.
func New(console, log io.Writer) *Reporter {
	return &Reporter{console: console, log: log, atLineStart: true}
}

// Write emits text verbatim to every active sink and records whether the
// emission left the cursor at the start of a line. Empty text is a no-op.
func (r *Reporter) Write(text string) {
	if text == "" {
		return
	}
	if r.console != nil {
		io.WriteString(r.console, text)
	}
	if r.log != nil {
		io.WriteString(r.log, text)
	}
	r.atLineStart = strings.HasSuffix(text, "\n")
}

// Control performs one of the carriage-control operations: Reset,
// LineBreak, or erase (a negative code). Any other code is a programming
// error and produces a visible marker on the sinks instead of failing
// silently.
func (r *Reporter) Control(code int) {
	switch {
	case code == Reset:
		if r.console != nil {
			io.WriteString(r.console, "\r")
		}
		if r.log != nil {
			io.WriteString(r.log, "\n")
		}
		r.atLineStart = true
	case code == LineBreak:
		if r.atLineStart {
			return
		}
		if r.console != nil {
			io.WriteString(r.console, "\n")
		}
		if r.log != nil {
			io.WriteString(r.log, "\n")
		}
		r.atLineStart = true
	case code < 0 && code > -EraseLimit:
		// Blanking stale progress output is only meaningful at the start
		// of a line, and only the console has a cursor to rewind.
		if r.atLineStart && r.console != nil {
			io.WriteString(r.console, strings.Repeat(" ", -code)+"\r")
		}
	default:
		r.Write(fmt.Sprintf("[reporter: invalid control %d]", code))
	}
}

// Flush flushes the console sink, if it buffers, so that feedback is on
// screen before a long computation starts. The log sink is deliberately
// left to its own buffering.
func (r *Reporter) Flush() {
	if f, ok := r.console.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}
