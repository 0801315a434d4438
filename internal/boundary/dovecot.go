package boundary

import (
	"bytes"

	"github.com/lenlo/mailcheck/internal/byteio"
)

// DovecotBugMask records which variant of the Dovecot "From -space" bug
// (SPEC_FULL §4.4 Strategy B) was detected in a message's body: wherever a
// genuine body line happened to start with "From ", Dovecot's mbox
// importer has historically injected a subset of X-UID/X-Keywords,
// Content-Length, and Status headers (and possibly an extra blank line)
// right after that line. Zero means no bug was detected.
type DovecotBugMask uint8

const (
	// XUIDKeys marks an injected X-UID and/or X-Keywords line.
	XUIDKeys DovecotBugMask = 1 << iota
	// ContentLength marks an injected Content-Length line.
	ContentLength
	// Status marks an injected Status line.
	Status
	// Newline marks an extra blank line beyond the one mandatory blank
	// line that always terminates the injected header block.
	Newline
)

// dovecotPrefixes maps each injectable header bit to the line prefixes
// that count toward it.
var dovecotPrefixes = []struct {
	prefix string
	bit    DovecotBugMask
}{
	{"X-UID:", XUIDKeys},
	{"X-Keywords:", XUIDKeys},
	{"Content-Length:", ContentLength},
	{"Status:", Status},
}

// maxDovecotSlop bounds how far past the declared Content-Length
// detection searches for the injected block, since its exact size isn't
// known until a candidate is matched.
const maxDovecotSlop = 512

// DovecotDetection describes a confirmed Strategy B match within a
// message body.
type DovecotDetection struct {
	Mask DovecotBugMask
	// InjectStart/InjectEnd bound the injected header-block-plus-blank-
	// line span (the genuine "From " line that triggered the bug is NOT
	// included — it is real message content and must survive repair).
	InjectStart int
	InjectEnd   int
	// BodyEnd is the true on-disk end of the body once the injected span
	// is accounted for.
	BodyEnd int
}

type dovecotLine struct {
	bit DovecotBugMask
	end int
}

// classifyInjectedLine reports whether base[pos:] begins with one of the
// recognized injected-header prefixes, returning the bit it counts
// toward and the position just past its line.
func classifyInjectedLine(base []byte, pos int) (DovecotBugMask, int, bool) {
	rest := base[pos:]
	for _, p := range dovecotPrefixes {
		if bytes.HasPrefix(rest, []byte(p.prefix)) {
			nl := bytes.IndexByte(rest, '\n')
			if nl == -1 {
				return 0, 0, false
			}
			return p.bit, pos + nl + 1, true
		}
	}
	return 0, 0, false
}

// DetectDovecotBug implements SPEC_FULL §4.4 Strategy B during message
// parsing: it looks within [bodyStart, bodyStart+contentLength+slop) for
// a genuine "From " line followed by an injected header/blank-line block
// such that skipping the block lands the declared Content-Length on a
// valid next message boundary (or EOF).
func DetectDovecotBug(base []byte, bodyStart, contentLength int) (DovecotDetection, bool) {
	return scanForInjection(base, bodyStart, contentLength, func(end int) bool {
		return isPlausibleBoundary(base, end)
	})
}

// RepairDovecotBug re-locates the injected span within an already-sliced
// message body (whose declared Content-Length is contentLength) and
// returns the body with it elided, plus the new declared length implicit
// in len(result). It is the inverse operation SPEC_FULL §4.4 calls for:
// collect the body segments excluding the injected bytes.
func RepairDovecotBug(body []byte, contentLength int) ([]byte, bool) {
	det, ok := scanForInjection(body, 0, contentLength, func(end int) bool {
		return end == len(body)
	})
	if !ok {
		return nil, false
	}
	out := make([]byte, 0, len(body)-(det.InjectEnd-det.InjectStart))
	out = append(out, body[:det.InjectStart]...)
	out = append(out, body[det.InjectEnd:]...)
	return out, true
}

// scanForInjection walks base for candidate injected-From lines within
// the declared-content-length window, trying accept(end) for each
// pattern it can match at that candidate until one succeeds.
func scanForInjection(base []byte, bodyStart, contentLength int, accept func(end int) bool) (DovecotDetection, bool) {
	if contentLength < 0 {
		return DovecotDetection{}, false
	}
	limit := bodyStart + contentLength + maxDovecotSlop
	if limit > len(base) {
		limit = len(base)
	}
	if limit <= bodyStart {
		return DovecotDetection{}, false
	}

	for search := bodyStart; search < limit; {
		rel := bytes.Index(base[search:limit], []byte("\nFrom "))
		if rel == -1 {
			return DovecotDetection{}, false
		}
		at := search + rel + 1
		cur := byteio.NewCursor(base)
		cur.SetPos(at)
		if _, ok := ValidateFromLine(cur); ok {
			if det, ok := tryDovecotPatterns(base, cur.Pos(), bodyStart, contentLength, accept); ok {
				return det, true
			}
		}
		search = search + rel + 1
	}
	return DovecotDetection{}, false
}

// tryDovecotPatterns enumerates the injected header/blank-line
// combinations that could follow a genuine "From " line, most-specific
// (every recognized header present) to least, per SPEC_FULL §4.4's
// bitmask-over-{XUIDKeys,ContentLength,Status,Newline} description.
func tryDovecotPatterns(base []byte, afterFromLine, bodyStart, contentLength int, accept func(int) bool) (DovecotDetection, bool) {
	var lines []dovecotLine
	pos := afterFromLine
	for len(lines) < 4 {
		bit, end, ok := classifyInjectedLine(base, pos)
		if !ok {
			break
		}
		lines = append(lines, dovecotLine{bit, end})
		pos = end
	}

	for keep := len(lines); keep >= 0; keep-- {
		blankPos := afterFromLine
		var mask DovecotBugMask
		if keep > 0 {
			blankPos = lines[keep-1].end
			for _, l := range lines[:keep] {
				mask |= l.bit
			}
		}
		for _, extra := range [2]bool{false, true} {
			if blankPos >= len(base) || base[blankPos] != '\n' {
				continue
			}
			injectEnd := blankPos + 1
			m := mask
			if extra {
				if injectEnd >= len(base) || base[injectEnd] != '\n' {
					continue
				}
				injectEnd++
				m |= Newline
			}

			extraBytes := injectEnd - afterFromLine
			end := bodyStart + contentLength + extraBytes
			if end < 0 || end > len(base) || !accept(end) {
				continue
			}
			return DovecotDetection{
				Mask:        m,
				InjectStart: afterFromLine,
				InjectEnd:   injectEnd,
				BodyEnd:     end,
			}, true
		}
	}
	return DovecotDetection{}, false
}
