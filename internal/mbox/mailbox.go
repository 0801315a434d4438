package mbox

import (
	"strconv"
	"strings"

	"github.com/lenlo/mailcheck/internal/boundary"
	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/diag"
	"github.com/lenlo/mailcheck/internal/header"
)

// Mailbox is a parsed mbox file: a singly-linked list of Messages over a
// single immutable byte slice owned by src.
type Mailbox struct {
	Path        string
	DisplayName string

	src *byteio.Source

	head  *Message
	tail  *Message
	count int

	dirty bool

	nextTag int
}

// Head returns the first message, or nil if the mailbox is empty.
func (b *Mailbox) Head() *Message { return b.head }

// Count returns the number of messages currently in the mailbox,
// including ones marked Deleted but not yet written out.
func (b *Mailbox) Count() int { return b.count }

// Dirty reports whether the mailbox (or any message within it) has been
// mutated since it was loaded.
func (b *Mailbox) Dirty() bool { return b.dirty }

func (b *Mailbox) markDirty() { b.dirty = true }

// Bytes returns the mailbox's original backing byte slice.
func (b *Mailbox) Bytes() []byte { return b.src.Bytes() }

// Close releases the underlying byte source (unmapping and releasing its
// dotlock).
func (b *Mailbox) Close() error { return b.src.Close() }

// Load opens path and parses it into a Mailbox, per SPEC_FULL §4.1/§4.5.
// Parse failures downgrade to diagnostics rather than aborting the load,
// consistent with the "keep partial parse" propagation policy of
// SPEC_FULL §7; the returned diagnostics should be surfaced by the
// caller's diag.Logger.
func Load(path string, opts byteio.Options) (*Mailbox, []diag.Diagnostic, error) {
	src, err := byteio.Open(path, opts)
	if err != nil {
		return nil, nil, err
	}
	box := &Mailbox{Path: path, DisplayName: path, src: src, nextTag: 1}
	diags := box.parse()
	return box, diags, nil
}

func (b *Mailbox) parse() []diag.Diagnostic {
	base := b.src.Bytes()
	cur := byteio.NewCursor(base)
	var diags []diag.Diagnostic

	num := 1
	for !cur.AtEnd() {
		msgStart := cur.Pos()
		env, ok := boundary.ValidateFromLine(cur)
		if !ok {
			diags = append(diags, diag.New(diag.Fatal, diag.ParseError, "",
				"expected \"From \" envelope line at offset %d", cur.Pos()))
			break
		}
		envLine := env.Line

		headers, hdiags := header.Parse(cur)
		diags = append(diags, hdiags...)
		bodyStart := cur.Pos()

		contentLength, hasCL := 0, false
		if cl := headers.FindFirst("Content-Length"); cl != nil {
			if n, err := strconv.Atoi(cl.Value); err == nil {
				contentLength, hasCL = n, true
			}
		}
		mimeBoundary := ""
		if ct := headers.FindFirst("Content-Type"); ct != nil {
			mimeBoundary = extractBoundaryParam(ct.Value)
		}

		res := boundary.FindBoundary(cur, bodyStart, contentLength, hasCL, mimeBoundary, false)
		diags = append(diags, res.Diagnostics...)

		msg := &Message{
			Number:       num,
			Tag:          b.nextTag,
			Raw:          base[msgStart:res.BodyEnd],
			EnvelopeLine: envLine,
			Envelope:     env,
			Body:         byteio.Borrow(base[bodyStart:res.BodyEnd]),
			box:          b,
		}
		msg.attachHeaders(headers)
		msg.DovecotBugMask = res.DovecotMask

		b.append(msg)
		b.nextTag++
		num++

		if res.Strategy == boundary.StrategyEOF {
			cur.SetPos(len(base))
			break
		}
		cur.SetPos(res.BodyEnd)
	}

	return diags
}

func (b *Mailbox) append(m *Message) {
	if b.tail == nil {
		b.head = m
		b.tail = m
	} else {
		b.tail.next = m
		b.tail = m
	}
	b.count++
}

// Renumber reassigns sequential Number fields in file order; callers
// invoke this after join/split operations change the message list's
// shape. Deleting a message leaves the numbering unchanged.
func (b *Mailbox) Renumber() {
	n := 1
	for m := b.head; m != nil; m = m.next {
		m.Number = n
		n++
	}
}

// MessageByNumber returns the message with the given 1-based Number, or
// nil.
func (b *Mailbox) MessageByNumber(n int) *Message {
	for m := b.head; m != nil; m = m.next {
		if m.Number == n {
			return m
		}
	}
	return nil
}

// extractBoundaryParam pulls the boundary="..." (or boundary=...) param
// out of a Content-Type header value, returning "" if absent.
func extractBoundaryParam(contentType string) string {
	const key = "boundary="
	idx := indexFold(contentType, key)
	if idx == -1 {
		return ""
	}
	rest := contentType[idx+len(key):]
	if len(rest) == 0 {
		return ""
	}
	if rest[0] == '"' {
		rest = rest[1:]
		if end := strings.IndexByte(rest, '"'); end != -1 {
			return rest[:end]
		}
		return rest
	}
	end := len(rest)
	for i, c := range rest {
		if c == ';' || c == ' ' || c == '\t' {
			end = i
			break
		}
	}
	return rest[:end]
}

// indexFold locates substr within s case-insensitively.
func indexFold(s, substr string) int {
	ls, lsub := len(s), len(substr)
	for i := 0; i+lsub <= ls; i++ {
		if strings.EqualFold(s[i:i+lsub], substr) {
			return i
		}
	}
	return -1
}
