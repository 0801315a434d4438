// Package diag implements the severity tiers and error taxonomy of the
// mailcheck error handling design: notices and warnings are reported and
// counted but never abort a run, while fatal conditions propagate as a
// plain error for the caller (cmd/mailcheck) to turn into an exit code.
package diag

import (
	"fmt"
	"log"
	"sync/atomic"
)

// Severity is one of the three tiers a diagnostic can carry.
type Severity int

const (
	Notice Severity = iota
	Warning
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Notice:
		return "notice"
	case Warning:
		return "warning"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind names a taxonomy of error kinds. None of these map onto a Go
// stdlib error type; they are carried alongside a Severity to let callers
// decide how to react without type-asserting on error values.
type Kind int

const (
	// ParseError: bytes do not match the expected grammar at some cursor
	// position. Downgraded to a warning with context when possible;
	// fatal only when the whole mailbox is unreadable.
	ParseError Kind = iota
	// IntegrityError: an invariant of the data model failed. Reported,
	// and optionally repaired by the Checker/Repairer.
	IntegrityError
	// ResourceError: I/O, memory, or lock-timeout failure. Fatal for
	// memory, recoverable (up to a timeout) for lock contention.
	ResourceError
	// UserAbort: interactive cancellation, e.g. via SIGINT unwinding to
	// the command prompt.
	UserAbort
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse error"
	case IntegrityError:
		return "integrity error"
	case ResourceError:
		return "resource error"
	case UserAbort:
		return "user abort"
	default:
		return "error"
	}
}

// Diagnostic is a single reported condition.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	// Context is an optional location hint, e.g. a message tag like
	// "#3 {@4096}" or a byte offset description.
	Context string
}

func (d Diagnostic) Error() string {
	if d.Context != "" {
		return fmt.Sprintf("%s: %s: %s", d.Kind, d.Context, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// New builds a Diagnostic.
func New(sev Severity, kind Kind, context, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: sev, Kind: kind, Message: fmt.Sprintf(format, args...), Context: context}
}

// Counter accumulates warnings seen during a run, the way the original
// tool reports a single warning count on exit.
type Counter struct {
	warnings int64
	notices  int64
}

func (c *Counter) Add(d Diagnostic) {
	switch d.Severity {
	case Warning:
		atomic.AddInt64(&c.warnings, 1)
	case Notice:
		atomic.AddInt64(&c.notices, 1)
	}
}

func (c *Counter) Warnings() int { return int(atomic.LoadInt64(&c.warnings)) }
func (c *Counter) Notices() int  { return int(atomic.LoadInt64(&c.notices)) }

// Logger routes Diagnostics to a stdlib *log.Logger, the same ambient
// logging mechanism the teacher CLI uses (log.Printf gated by a
// verbose/quiet bool) rather than adopting a structured logging library.
type Logger struct {
	out     *log.Logger
	Quiet   bool
	Verbose bool
	Counter *Counter
}

// NewLogger wraps l (typically log.Default(), or one built with
// log.New(os.Stderr, "", 0)).
func NewLogger(l *log.Logger, counter *Counter) *Logger {
	if counter == nil {
		counter = &Counter{}
	}
	return &Logger{out: l, Counter: counter}
}

// Report prints d unless it is suppressed by quiet mode, and always
// updates the counter.
func (lg *Logger) Report(d Diagnostic) {
	lg.Counter.Add(d)
	if lg.Quiet && d.Severity != Fatal {
		return
	}
	if d.Severity == Notice && !lg.Verbose {
		return
	}
	lg.out.Print(d.Error())
}

// Reportf is a convenience wrapper around Report+New.
func (lg *Logger) Reportf(sev Severity, kind Kind, context, format string, args ...any) {
	lg.Report(New(sev, kind, context, format, args...))
}
