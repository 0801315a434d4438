package byteio

// Kind records where a Bytes value's backing storage came from, so a
// writer can tell original on-disk bytes (re-emitted verbatim) apart from
// bytes synthesized by a repair (SPEC_FULL §3, §9 "String provenance").
type Kind int

const (
	// Shared references a slice of the Mailbox's single backing byte
	// slice (whether that slice was produced by mmap or by slurping the
	// file) without copying. Zero-copy views returned by Cursor are
	// always Shared.
	Shared Kind = iota
	// Owned is a heap allocation produced by a repair, replacing a
	// Shared view on just the Message it belongs to.
	Owned
	// Static names a compile-time literal the model needed to
	// synthesize on the fly, e.g. a reconstructed envelope line.
	Static
)

// Bytes is a tagged byte-slice-with-provenance, per the design note's
// recommendation to keep the four provenances (here collapsed to three:
// mmap-owned and shared-borrowed are indistinguishable once both are just
// slices of the same backing array in Go) distinguishable as a value type
// rather than scattering *bool flags through the model.
type Bytes struct {
	kind Kind
	data []byte
}

// Borrow wraps a zero-copy slice of the Mailbox's backing storage.
func Borrow(b []byte) Bytes { return Bytes{kind: Shared, data: b} }

// Own wraps a heap allocation created by a repair.
func Own(b []byte) Bytes { return Bytes{kind: Owned, data: b} }

// StaticLit wraps a literal string built on the fly (e.g. a reconstructed
// "From " line) that was never part of the on-disk mailbox.
func StaticLit(s string) Bytes { return Bytes{kind: Static, data: []byte(s)} }

// Data returns the underlying bytes. Callers must not mutate the result
// of a Shared Bytes value, since it may alias other Messages' views.
func (b Bytes) Data() []byte { return b.data }

// Len returns len(b.Data()).
func (b Bytes) Len() int { return len(b.data) }

// IsOwned reports whether b was synthesized rather than read from disk.
func (b Bytes) IsOwned() bool { return b.kind != Shared }

func (b Bytes) Kind() Kind { return b.kind }

func (b Bytes) String() string { return string(b.data) }
