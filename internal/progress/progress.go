// Package progress adapts the teacher's internal/syncer event-channel
// pattern (EventType/Event, non-blocking emit) into a generic progress
// reporter; cmd/mailcheck wraps the repair and duplicate-detection passes
// with one to drive the Bubble Tea spinner in
// cmd/mailcheck/progress_tui.go.
package progress

// EventType enumerates emitted progress events.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventDone     EventType = "done"
)

// Event carries progress about one phase of work (checking, writing,
// deduplicating) over a mailbox.
type Event struct {
	Type    EventType
	Phase   string
	Mailbox string
	Total   int
	Done    int
	Err     error
}

// Reporter emits Events on a buffered channel, dropping events rather
// than blocking the producer when the consumer falls behind — the same
// non-blocking-send policy as the teacher's syncer.emit.
type Reporter struct {
	events chan Event
}

// NewReporter returns a Reporter with the given channel buffer size.
func NewReporter(buffer int) *Reporter {
	if buffer <= 0 {
		buffer = 16
	}
	return &Reporter{events: make(chan Event, buffer)}
}

// Events returns the channel progress consumers should range over.
func (r *Reporter) Events() <-chan Event { return r.events }

// Start announces the beginning of a phase covering total units of work.
func (r *Reporter) Start(phase, mailbox string, total int) {
	r.emit(Event{Type: EventStart, Phase: phase, Mailbox: mailbox, Total: total})
}

// Step announces that done units of work have completed so far.
func (r *Reporter) Step(phase string, done, total int) {
	r.emit(Event{Type: EventProgress, Phase: phase, Done: done, Total: total})
}

// Done announces the end of a phase, with err non-nil on failure.
func (r *Reporter) Done(phase string, err error) {
	r.emit(Event{Type: EventDone, Phase: phase, Err: err})
}

// Close closes the event channel. Callers must not emit after Close.
func (r *Reporter) Close() { close(r.events) }

func (r *Reporter) emit(e Event) {
	select {
	case r.events <- e:
	default:
		// Drop the event rather than block the producer; the TUI only
		// needs the latest state, not every intermediate tick.
	}
}
