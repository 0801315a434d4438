package boundary

import (
	"bytes"

	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/diag"
)

// Strategy identifies which of SPEC_FULL §4.4's ladder of techniques
// located a message's end.
type Strategy int

const (
	// StrategyContentLength trusted the Content-Length header outright.
	StrategyContentLength Strategy = iota
	// StrategyFuzzyNewline accepted Content-Length plus a small
	// byte-before-fuzz correction (see SPEC_FULL §13's Open Question
	// decision: only when the byte immediately preceding the fuzz
	// position is '\n').
	StrategyFuzzyNewline
	// StrategyDovecotBug confirmed the Dovecot "From -space" bug: the
	// declared Content-Length plus a detected injected-header span lands
	// on a valid next boundary.
	StrategyDovecotBug
	// StrategyMIMEBoundary found a MIME multipart closing delimiter
	// ("--boundary--") instead of trusting Content-Length.
	StrategyMIMEBoundary
	// StrategyFromSearch fell back to scanning forward for the next
	// valid "From " envelope line.
	StrategyFromSearch
	// StrategyEOF reached end of file with no further envelope line.
	StrategyEOF
)

// Result describes where a message's body ends and how that was
// determined.
type Result struct {
	BodyEnd  int
	Strategy Strategy
	// DovecotMask is non-zero when Strategy == StrategyDovecotBug,
	// recording which header variants were found injected.
	DovecotMask DovecotBugMask
	// Diagnostics accumulated while resolving the boundary (truncation
	// warnings, oversized-by-K-bytes warnings, and similar).
	Diagnostics []diag.Diagnostic
}

// FindBoundary locates the end of the message body that starts at
// bodyStart, given the (possibly absent) declared Content-Length and the
// message's MIME boundary token (empty if the message isn't known to be
// multipart). strict controls whether a 1-byte-off Content-Length is
// silently accepted (non-strict) or reported (strict), per SPEC_FULL
// §4.4 Strategy D.
func FindBoundary(cur *byteio.Cursor, bodyStart int, contentLength int, hasContentLength bool, mimeBoundary string, strict bool) Result {
	base := cur.Base()

	if hasContentLength {
		declaredEnd := bodyStart + contentLength
		if declaredEnd >= 0 && declaredEnd <= len(base) {
			if isPlausibleBoundary(base, declaredEnd) {
				return Result{BodyEnd: declaredEnd, Strategy: StrategyContentLength}
			}
			// Strategy A: fuzzy newline acceptance. Only within a small
			// window, and only when the byte right before the candidate
			// position is itself a newline (SPEC_FULL §13).
			for _, fuzz := range []int{-1, 1, -2, 2} {
				cand := declaredEnd + fuzz
				if cand < 0 || cand > len(base) {
					continue
				}
				if cand > 0 && base[cand-1] == '\n' && isPlausibleBoundary(base, cand) {
					return Result{
						BodyEnd:  cand,
						Strategy: StrategyFuzzyNewline,
						Diagnostics: []diag.Diagnostic{diag.New(diag.Warning, diag.IntegrityError, "",
							"Content-Length off by %d bytes, corrected", fuzz)},
					}
				}
			}
		}
	}

	if hasContentLength {
		if det, ok := DetectDovecotBug(base, bodyStart, contentLength); ok {
			return Result{
				BodyEnd:     det.BodyEnd,
				Strategy:    StrategyDovecotBug,
				DovecotMask: det.Mask,
				Diagnostics: []diag.Diagnostic{diag.New(diag.Warning, diag.IntegrityError, "",
					"Dovecot From-space bug detected (mask=%#x)", det.Mask)},
			}
		}
	}

	if mimeBoundary != "" {
		closing := []byte("--" + mimeBoundary + "--")
		if idx := bytes.Index(base[bodyStart:], closing); idx != -1 {
			end := bodyStart + idx + len(closing)
			// consume through the end of that line
			lc := byteio.NewCursor(base)
			lc.SetPos(end)
			lc.TakeLine()
			return Result{BodyEnd: lc.Pos(), Strategy: StrategyMIMEBoundary}
		}
	}

	// Strategy D: search forward for the next valid From-line.
	search := byteio.NewCursor(base)
	search.SetPos(bodyStart)
	for !search.AtEnd() {
		lineStart := search.Pos()
		if _, ok := ValidateFromLine(search); ok {
			var diags []diag.Diagnostic
			if hasContentLength {
				actual := lineStart - bodyStart
				delta := actual - contentLength
				if delta != 0 && !(abs(delta) <= 1 && !strict) {
					sev := diag.Warning
					diags = append(diags, diag.New(sev, diag.IntegrityError, "",
						"message body is %d bytes, Content-Length declared %d", actual, contentLength))
				}
			}
			return Result{BodyEnd: lineStart, Strategy: StrategyFromSearch, Diagnostics: diags}
		}
		search.SetPos(lineStart)
		search.TakeLine()
	}

	// Strategy E: EOF, minus one trailing newline if present.
	end := len(base)
	if end > bodyStart && base[end-1] == '\n' {
		end--
		if end > bodyStart && end > 0 && base[end-1] == '\r' {
			// keep CR as part of body; only the bare \n is the
			// separator being trimmed
		}
	}
	return Result{BodyEnd: end, Strategy: StrategyEOF}
}

// isPlausibleBoundary reports whether pos in base looks like the start
// of either a new "From " envelope line or end-of-file — the two shapes
// a message body is allowed to end before.
func isPlausibleBoundary(base []byte, pos int) bool {
	if pos == len(base) {
		return true
	}
	if pos > 0 && base[pos-1] != '\n' {
		return false
	}
	cur := byteio.NewCursor(base)
	cur.SetPos(pos)
	_, ok := ValidateFromLine(cur)
	return ok
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
