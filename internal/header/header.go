// Package header implements the Header/HeaderList model and the RFC-822
// header parser of SPEC_FULL §4.3, grounded on the folding-line reader in
// derat-rendmail's messageReader.readFoldedLine and the
// key/value-splitting shape of its parseHeaderField.
package header

import "strings"

// Header is a (key, value, original_line) triple. OriginalLine holds the
// verbatim folded header text as read from disk, including continuation
// lines and the trailing newline; it is cleared by SetValue so the writer
// knows to reconstruct "<key>: <value>\n" instead of re-emitting bytes
// that no longer match Value.
type Header struct {
	Key          string
	Value        string
	OriginalLine []byte

	list *List
}

// SetValue mutates the header's value, clearing OriginalLine and
// propagating a dirty notification to the owning list (and, through it,
// to the owning Message and Mailbox).
func (h *Header) SetValue(v string) {
	h.Value = v
	h.OriginalLine = nil
	if h.list != nil {
		h.list.markDirty()
	}
}

// Dirty reports whether h has been mutated since it was parsed.
func (h *Header) Dirty() bool { return h.OriginalLine == nil }

// List is an ordered sequence of Headers. Duplicate keys are permitted
// and preserved in order.
type List struct {
	headers []*Header
	onDirty func()
}

// NewList returns an empty header list.
func NewList() *List { return &List{} }

// OnDirty registers the callback invoked whenever the list (or one of its
// headers) is mutated. This stands in for the owning-Message back-pointer
// SPEC_FULL §9 calls out as a cycle a flat-arena or index-based design
// would avoid: a callback serves the same "propagate the dirty bit"
// purpose without an actual reference cycle.
func (l *List) OnDirty(f func()) { l.onDirty = f }

func (l *List) markDirty() {
	if l.onDirty != nil {
		l.onDirty()
	}
}

// Append adds h to the end of the list, taking ownership of its
// back-reference.
func (l *List) Append(h *Header) {
	h.list = l
	l.headers = append(l.headers, h)
}

// All returns the headers in file order. Callers must not retain the
// slice across a mutation of l.
func (l *List) All() []*Header { return l.headers }

// Len returns the number of headers.
func (l *List) Len() int { return len(l.headers) }

// FindFirst returns the first header named key (case-insensitive), or
// nil.
func (l *List) FindFirst(key string) *Header {
	for _, h := range l.headers {
		if strings.EqualFold(h.Key, key) {
			return h
		}
	}
	return nil
}

// FindLast returns the last header named key (case-insensitive), or nil.
func (l *List) FindLast(key string) *Header {
	for i := len(l.headers) - 1; i >= 0; i-- {
		if strings.EqualFold(l.headers[i].Key, key) {
			return l.headers[i]
		}
	}
	return nil
}

// ValueOf returns the value of the first header named key, or "".
func (l *List) ValueOf(key string) string {
	if h := l.FindFirst(key); h != nil {
		return h.Value
	}
	return ""
}

// Set assigns value to the first header named key, appending a new
// header if none exists yet, and returns it.
func (l *List) Set(key, value string) *Header {
	if h := l.FindFirst(key); h != nil {
		h.SetValue(value)
		return h
	}
	h := &Header{Key: key, Value: value}
	l.Append(h)
	l.markDirty()
	return h
}

// Delete removes the first header named key, reporting whether one was
// found.
func (l *List) Delete(key string) bool {
	for i, h := range l.headers {
		if strings.EqualFold(h.Key, key) {
			l.headers = append(l.headers[:i], l.headers[i+1:]...)
			l.markDirty()
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy of l whose headers are detached from
// l; Mailbox.Split uses it to give the split-off tail message its own
// header list.
func (l *List) Clone() *List {
	out := NewList()
	for _, h := range l.headers {
		cp := *h
		cp.list = nil
		out.Append(&cp)
	}
	return out
}
