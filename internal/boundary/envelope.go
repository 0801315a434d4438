// Package boundary implements the message boundary engine of SPEC_FULL
// §4.4: the envelope "From " line validator, the Content-Length/Dovecot
// bug/MIME-boundary/From-line-search/EOF strategy ladder, and Dovecot
// From-space bug repair.
package boundary

import (
	"time"

	"github.com/lenlo/mailcheck/internal/byteio"
)

// Envelope is the parsed form of a "From <sender> <ctime>" line.
type Envelope struct {
	Sender string
	Date   time.Time
	// Line is the full verbatim envelope line, including its trailing
	// newline.
	Line []byte
}

var weekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
var months = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ValidateFromLine attempts to parse a "From <sender> <ctime>\n" line
// starting at cur's current position. On success the cursor is left just
// past the consumed newline; on failure the cursor is rewound to its
// starting position.
func ValidateFromLine(cur *byteio.Cursor) (Envelope, bool) {
	start := cur.Pos()

	if !cur.TakeLiteral([]byte("From "), false) {
		cur.SetPos(start)
		return Envelope{}, false
	}

	senderStart := cur.Pos()
	for {
		b, ok := cur.Peek()
		if !ok || b == ' ' || b == '\n' {
			break
		}
		cur.Advance(1)
	}
	if cur.Pos() == senderStart {
		cur.SetPos(start)
		return Envelope{}, false
	}
	sender := string(cur.Base()[senderStart:cur.Pos()])

	if !cur.TakeSpaces() {
		cur.SetPos(start)
		return Envelope{}, false
	}

	when, ok := parseCtime(cur)
	if !ok {
		cur.SetPos(start)
		return Envelope{}, false
	}
	dateEnd := cur.Pos()
	_ = dateEnd

	// Trailing garbage (e.g. "remote from foo") is skipped up to the
	// newline, per SPEC_FULL §4.4's validator description.
	for {
		b, ok := cur.Peek()
		if !ok || b == '\n' {
			break
		}
		cur.Advance(1)
	}
	hadNewline := cur.TakeNewline()
	if !hadNewline && !cur.AtEnd() {
		cur.SetPos(start)
		return Envelope{}, false
	}

	line := cur.Base()[start:cur.Pos()]
	return Envelope{Sender: sender, Date: when, Line: line}, true
}

// parseCtime parses "Www Mmm DD HH:MM[:SS] [ZONE ]YYYY[ ZONE]", starting
// at the weekday (the caller has already consumed the spaces before
// it). On success the cursor sits just
// past the year (and optional trailing zone); on failure it is left
// wherever it stopped (the caller is responsible for the full rewind).
func parseCtime(cur *byteio.Cursor) (time.Time, bool) {
	if _, ok := matchOneOfFold(cur, weekdays[:]); !ok {
		return time.Time{}, false
	}
	if !cur.TakeSpaces() {
		return time.Time{}, false
	}
	monthIdx, ok := matchOneOfFold(cur, months[:])
	if !ok {
		return time.Time{}, false
	}
	if !cur.TakeSpaces() {
		return time.Time{}, false
	}

	// Day: one or two digits, optionally padded with a leading space
	// instead of a leading zero (e.g. " 5").
	if b, ok := cur.Peek(); ok && b == ' ' {
		cur.Advance(1)
	}
	day, ok := cur.TakeInteger()
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}

	if !cur.TakeSpaces() {
		return time.Time{}, false
	}

	hour, ok := cur.TakeInteger()
	if !ok {
		return time.Time{}, false
	}
	if !cur.TakeLiteral([]byte(":"), false) {
		return time.Time{}, false
	}
	minute, ok := cur.TakeInteger()
	if !ok {
		return time.Time{}, false
	}
	second := 0
	save := cur.Pos()
	if cur.TakeLiteral([]byte(":"), false) {
		if s, ok := cur.TakeInteger(); ok {
			second = s
		} else {
			cur.SetPos(save)
		}
	}

	if !cur.TakeSpaces() {
		return time.Time{}, false
	}

	zoneName, zoneOffset, hadZone := tryZone(cur)
	if hadZone {
		if !cur.TakeSpaces() {
			return time.Time{}, false
		}
	}

	year, ok := cur.TakeInteger()
	if !ok || year < 1000 || year > 9999 {
		return time.Time{}, false
	}

	if !hadZone {
		save := cur.Pos()
		if cur.TakeSpaces() {
			if n, off, ok := tryZone(cur); ok {
				zoneName, zoneOffset = n, off
				hadZone = true
			} else {
				cur.SetPos(save)
			}
		}
	}

	loc := time.UTC
	if hadZone {
		loc = time.FixedZone(zoneName, zoneOffset)
	}
	t := time.Date(year, time.Month(monthIdx+1), day, hour, minute, second, 0, loc)
	return t, true
}

// matchOneOfFold advances past the first of options that matches
// case-insensitively, returning its index.
func matchOneOfFold(cur *byteio.Cursor, options []string) (int, bool) {
	for i, o := range options {
		if cur.TakeLiteral([]byte(o), true) {
			return i, true
		}
	}
	return -1, false
}

// tryZone attempts to consume a timezone token: either a signed 4-digit
// numeric offset ("+0000"/"-0700") or a 2-5 letter named zone
// abbreviation ("GMT", "PST"). Named zones are resolved to a zero offset
// (SPEC_FULL doesn't require exact UTC-offset fidelity for envelope
// dates; see DESIGN.md).
func tryZone(cur *byteio.Cursor) (name string, offsetSeconds int, ok bool) {
	start := cur.Pos()
	if b, peeked := cur.Peek(); peeked && (b == '+' || b == '-') {
		sign := 1
		if b == '-' {
			sign = -1
		}
		cur.Advance(1)
		digitsStart := cur.Pos()
		for i := 0; i < 4; i++ {
			d, ok := cur.Peek()
			if !ok || d < '0' || d > '9' {
				cur.SetPos(start)
				return "", 0, false
			}
			cur.Advance(1)
		}
		raw := string(cur.Base()[digitsStart:cur.Pos()])
		hh := int(raw[0]-'0')*10 + int(raw[1]-'0')
		mm := int(raw[2]-'0')*10 + int(raw[3]-'0')
		return string(cur.Base()[start:cur.Pos()]), sign * (hh*3600 + mm*60), true
	}

	letterStart := cur.Pos()
	for {
		b, peeked := cur.Peek()
		if !peeked || !isZoneLetter(b) {
			break
		}
		cur.Advance(1)
	}
	n := cur.Pos() - letterStart
	if n < 2 || n > 5 {
		cur.SetPos(start)
		return "", 0, false
	}
	// A named zone must be immediately followed by whitespace or a
	// newline; otherwise it's just the start of some other token (e.g.
	// trailing-garbage text), and tryZone should not claim it.
	if b, peeked := cur.Peek(); peeked && b != ' ' && b != '\t' && b != '\n' {
		cur.SetPos(start)
		return "", 0, false
	}
	return string(cur.Base()[letterStart:cur.Pos()]), 0, true
}

func isZoneLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
