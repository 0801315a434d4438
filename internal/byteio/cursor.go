package byteio

import "bytes"

// Cursor is a position-tracking reader over an immutable byte slice, per
// SPEC_FULL §4.2. It never allocates on the fast path: every slice it
// returns is a zero-copy view into base.
type Cursor struct {
	base []byte
	pos  int
}

// NewCursor returns a Cursor positioned at the start of base.
func NewCursor(base []byte) *Cursor {
	return &Cursor{base: base}
}

// Base returns the full underlying byte slice.
func (c *Cursor) Base() []byte { return c.base }

// Pos returns the current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// SetPos repositions the cursor, clamped to [0, len(base)].
func (c *Cursor) SetPos(pos int) {
	c.pos = clamp(pos, 0, len(c.base))
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// AtEnd reports whether the cursor has consumed all of base.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.base) }

// Peek returns the byte at the current position without consuming it.
func (c *Cursor) Peek() (byte, bool) {
	if c.AtEnd() {
		return 0, false
	}
	return c.base[c.pos], true
}

// PeekAt returns the byte at pos without moving the cursor.
func (c *Cursor) PeekAt(pos int) (byte, bool) {
	if pos < 0 || pos >= len(c.base) {
		return 0, false
	}
	return c.base[pos], true
}

// Advance moves the cursor by n bytes (n may be negative), clamped to
// [0, len(base)].
func (c *Cursor) Advance(n int) {
	c.SetPos(c.pos + n)
}

// TakeChar consumes and returns one byte.
func (c *Cursor) TakeChar() (byte, bool) {
	b, ok := c.Peek()
	if !ok {
		return 0, false
	}
	c.pos++
	return b, true
}

// TakeLiteral advances past expected if base[pos:] has it as a prefix,
// comparing case-insensitively when caseInsensitive is true.
func (c *Cursor) TakeLiteral(expected []byte, caseInsensitive bool) bool {
	end := c.pos + len(expected)
	if end > len(c.base) {
		return false
	}
	candidate := c.base[c.pos:end]
	var match bool
	if caseInsensitive {
		match = bytes.EqualFold(candidate, expected)
	} else {
		match = bytes.Equal(candidate, expected)
	}
	if match {
		c.pos = end
	}
	return match
}

// TakeSpaces consumes one or more ' '/'\t' bytes, reporting whether any
// were consumed.
func (c *Cursor) TakeSpaces() bool {
	start := c.pos
	for c.pos < len(c.base) && (c.base[c.pos] == ' ' || c.base[c.pos] == '\t') {
		c.pos++
	}
	return c.pos > start
}

// TakeNewline consumes a single "\r\n" or "\n", reporting success.
func (c *Cursor) TakeNewline() bool {
	if c.pos < len(c.base) && c.base[c.pos] == '\r' && c.pos+1 < len(c.base) && c.base[c.pos+1] == '\n' {
		c.pos += 2
		return true
	}
	if c.pos < len(c.base) && c.base[c.pos] == '\n' {
		c.pos++
		return true
	}
	return false
}

// TakeUntil searches forward for target, leaves the cursor positioned AT
// the match (not past it), and returns the intervening bytes. An empty
// target matches at the current position (the degenerate case named in
// SPEC_FULL §4.2).
func (c *Cursor) TakeUntil(target []byte, caseInsensitive bool) ([]byte, bool) {
	rest := c.base[c.pos:]
	var idx int
	if len(target) == 0 {
		idx = 0
	} else if caseInsensitive {
		idx = indexFold(rest, target)
	} else {
		idx = bytes.Index(rest, target)
	}
	if idx == -1 {
		return nil, false
	}
	between := rest[:idx]
	c.pos += idx
	return between, true
}

func indexFold(haystack, needle []byte) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if bytes.EqualFold(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// TakeLine consumes up to and including the next newline, or to the end
// of base if none remains.
func (c *Cursor) TakeLine() []byte {
	start := c.pos
	for c.pos < len(c.base) && c.base[c.pos] != '\n' {
		c.pos++
	}
	if c.pos < len(c.base) {
		c.pos++ // include the newline
	}
	return c.base[start:c.pos]
}

// TakeInteger consumes one or more decimal digits and returns their
// value.
func (c *Cursor) TakeInteger() (int, bool) {
	start := c.pos
	for c.pos < len(c.base) && c.base[c.pos] >= '0' && c.base[c.pos] <= '9' {
		c.pos++
	}
	if c.pos == start {
		return 0, false
	}
	n := 0
	for _, d := range c.base[start:c.pos] {
		n = n*10 + int(d-'0')
	}
	return n, true
}

// BackOverNewline moves the cursor left over a preceding "\r?\n", if
// present, without consuming anything forward.
func (c *Cursor) BackOverNewline() {
	if c.pos > 0 && c.base[c.pos-1] == '\n' {
		c.pos--
		if c.pos > 0 && c.base[c.pos-1] == '\r' {
			c.pos--
		}
	}
}
