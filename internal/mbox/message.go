// Package mbox implements the Message and Mailbox model of SPEC_FULL
// §3/§4.5: a singly-linked list of Messages over a single immutable byte
// slice, with dirty-bit propagation from Header mutation up through the
// owning Mailbox.
package mbox

import (
	"github.com/lenlo/mailcheck/internal/boundary"
	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/header"
)

// Message is one parsed unit of an mbox file.
type Message struct {
	Number int
	// Tag is assigned from a per-mailbox counter when a message is parsed
	// or split off; unlike Number, Renumber never changes it.
	Tag int

	Raw          []byte // the full verbatim message, envelope through body
	EnvelopeLine []byte
	Envelope     boundary.Envelope

	Headers *header.List
	// Body carries its own provenance (Shared = read verbatim from the
	// mailbox's backing storage, Owned = synthesized by a repair), per
	// SPEC_FULL §3/§9.
	Body byteio.Bytes

	CachedMessageID string

	Deleted bool
	dirty   bool

	DovecotBugMask boundary.DovecotBugMask

	next *Message
	box  *Mailbox
}

// Dirty reports whether this message (or any of its headers) has been
// mutated since it was parsed.
func (m *Message) Dirty() bool { return m.dirty }

// MarkDirty flags the message (and its owning mailbox) as modified. It is
// registered as the header.List's OnDirty callback for this message.
func (m *Message) MarkDirty() {
	m.dirty = true
	if m.box != nil {
		m.box.markDirty()
	}
}

// MarkDeleted flags the message for removal on the next write and marks
// it (and the mailbox) dirty.
func (m *Message) MarkDeleted() {
	if !m.Deleted {
		m.Deleted = true
		m.MarkDirty()
	}
}

// MarkUndeleted clears a prior deletion.
func (m *Message) MarkUndeleted() {
	if m.Deleted {
		m.Deleted = false
		m.MarkDirty()
	}
}

// Next returns the following message in file order, or nil at the tail.
func (m *Message) Next() *Message { return m.next }

// attachHeaders wires m as the dirty-propagation target for list.
func (m *Message) attachHeaders(list *header.List) {
	m.Headers = list
	list.OnDirty(m.MarkDirty)
}
