package header

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/diag"
)

// ErrFromBoundary is returned by parseOne when it encounters a bare
// "From " line where a header was expected. This marks the end of the
// current message's header block in malformed mailboxes — the caller
// rewinds to the line start (already done by parseOne) and stops.
var ErrFromBoundary = errors.New("header: From boundary")

// ErrMalformed is returned when a header line's key can't be parsed
// (control byte, bare colon, or missing colon before the line ends).
var ErrMalformed = errors.New("header: malformed header line")

// Parse consumes headers from cur until a blank line is reached (which is
// itself consumed), an EOF is hit, or a From-boundary line is found. It
// never returns an error: failures downgrade to a diag.Warning and the
// partial list parsed so far is returned, per SPEC_FULL §7's
// "keep the partial parse" propagation policy.
func Parse(cur *byteio.Cursor) (*List, []diag.Diagnostic) {
	list := NewList()
	var diags []diag.Diagnostic
	for {
		if cur.AtEnd() {
			diags = append(diags, diag.New(diag.Warning, diag.ParseError, "",
				"unexpected end of input while parsing headers"))
			return list, diags
		}
		lineStart := cur.Pos()
		if cur.TakeNewline() {
			return list, diags // blank line: end of header block
		}
		cur.SetPos(lineStart)

		h, err := parseOne(cur)
		switch {
		case err == nil:
			if h.Key == ">From " {
				diags = append(diags, diag.New(diag.Warning, diag.ParseError, "",
					"accepting stray \">From \" line as a pseudo-header"))
			}
			list.Append(h)
		case errors.Is(err, ErrFromBoundary):
			return list, diags // cursor already rewound by parseOne
		case errors.Is(err, io.EOF):
			diags = append(diags, diag.New(diag.Warning, diag.ParseError, "",
				"unexpected end of input while parsing headers"))
			return list, diags
		default:
			diags = append(diags, diag.New(diag.Warning, diag.ParseError, "",
				"malformed header line: %v", err))
			return list, diags
		}
	}
}

func isControl(b byte) bool {
	return (b < 0x20 && b != '\t') || b == 0x7f
}

// parseOne parses a single (possibly folded) header starting at cur's
// current position, which must be the start of a line.
func parseOne(cur *byteio.Cursor) (*Header, error) {
	lineStart := cur.Pos()
	cur.TakeSpaces()
	keyStart := cur.Pos()

	b, ok := cur.Peek()
	if !ok {
		return nil, io.EOF
	}
	if isControl(b) || b == ':' {
		cur.SetPos(lineStart)
		return nil, ErrMalformed
	}

	for {
		b, ok := cur.Peek()
		if !ok {
			return nil, io.EOF
		}
		if b == ':' {
			break
		}
		if b == '\n' {
			cur.SetPos(lineStart)
			return nil, ErrMalformed
		}
		if b == ' ' {
			accumulated := string(cur.Base()[keyStart:cur.Pos()])
			switch accumulated {
			case "From":
				cur.SetPos(lineStart)
				return nil, ErrFromBoundary
			case ">From":
				cur.Advance(1) // consume the separating space
				rest := cur.TakeLine()
				value := strings.TrimRight(string(rest), "\r\n")
				original := cur.Base()[lineStart:cur.Pos()]
				return &Header{Key: ">From ", Value: value, OriginalLine: original}, nil
			}
		}
		cur.Advance(1)
	}

	key := strings.TrimSpace(string(cur.Base()[keyStart:cur.Pos()]))
	cur.Advance(1) // consume ':'
	cur.TakeSpaces()

	var raw bytes.Buffer
	for {
		line := cur.TakeLine()
		raw.Write(line)
		b, ok := cur.Peek()
		if !ok || !(b == ' ' || b == '\t') {
			break
		}
	}
	value := strings.TrimSpace(raw.String())
	original := cur.Base()[lineStart:cur.Pos()]
	return &Header{Key: key, Value: value, OriginalLine: original}, nil
}
