package boundary

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenlo/mailcheck/internal/byteio"
)

func TestFindBoundaryContentLengthExact(t *testing.T) {
	msg := "From a Mon Jan  1 00:00:00 2001\nContent-Length: 6\n\nhello\nFrom b Mon Jan  1 00:00:00 2001\n"
	data := []byte(msg)
	bodyStart := len("From a Mon Jan  1 00:00:00 2001\nContent-Length: 6\n\n")
	cur := byteio.NewCursor(data)
	res := FindBoundary(cur, bodyStart, 6, true, "", false)
	assert.Equal(t, StrategyContentLength, res.Strategy)
	assert.Equal(t, "hello\n", string(data[bodyStart:res.BodyEnd]))
}

func TestFindBoundaryFromSearchFallback(t *testing.T) {
	msg := "From a Mon Jan  1 00:00:00 2001\n\nhello world\nFrom b Mon Jan  1 00:00:00 2001\n"
	data := []byte(msg)
	bodyStart := len("From a Mon Jan  1 00:00:00 2001\n\n")
	cur := byteio.NewCursor(data)
	res := FindBoundary(cur, bodyStart, 0, false, "", false)
	require.Equal(t, StrategyFromSearch, res.Strategy)
	assert.Equal(t, "hello world\n", string(data[bodyStart:res.BodyEnd]))
}

func TestFindBoundaryEOF(t *testing.T) {
	msg := "From a Mon Jan  1 00:00:00 2001\n\nlast message body\n"
	data := []byte(msg)
	bodyStart := len("From a Mon Jan  1 00:00:00 2001\n\n")
	cur := byteio.NewCursor(data)
	res := FindBoundary(cur, bodyStart, 0, false, "", false)
	assert.Equal(t, StrategyEOF, res.Strategy)
	assert.Equal(t, "last message body", string(data[bodyStart:res.BodyEnd]))
}

func TestFindBoundaryMIMEBoundary(t *testing.T) {
	msg := "From a Mon Jan  1 00:00:00 2001\n\n--XYZ\ncontent\n--XYZ--\nFrom b Mon Jan  1 00:00:00 2001\n"
	data := []byte(msg)
	bodyStart := len("From a Mon Jan  1 00:00:00 2001\n\n")
	cur := byteio.NewCursor(data)
	res := FindBoundary(cur, bodyStart, 0, false, "XYZ", false)
	assert.Equal(t, StrategyMIMEBoundary, res.Strategy)
}

// TestDetectAndRepairDovecotBug reproduces SPEC_FULL's S3 scenario: a
// genuine body line starting with "From " trips Dovecot's importer, which
// injects an X-UID line, a Content-Length line, and a blank line right
// after it without adjusting the real message's declared Content-Length.
func TestDetectAndRepairDovecotBug(t *testing.T) {
	realBeforeFrom := "line one\n"
	fromLine := "From foo@x Mon Jan  1 00:00:00 2001\n"
	injected := "X-UID: 42\nContent-Length: 200\n\n"
	realAfter := "more real content\n"

	bodyWithBug := realBeforeFrom + fromLine + injected + realAfter
	declared := len(realBeforeFrom) + len(fromLine) + len(realAfter)

	envelope := "From a Mon Jan  1 00:00:00 2001\n"
	headers := "Content-Length: " + strconv.Itoa(declared) + "\n"
	full := envelope + headers + "\n" + bodyWithBug
	bodyStart := len(envelope + headers + "\n")

	det, ok := DetectDovecotBug([]byte(full), bodyStart, declared)
	require.True(t, ok)
	assert.Equal(t, XUIDKeys|ContentLength, det.Mask)
	assert.Equal(t, len(full), det.BodyEnd)

	repaired, ok := RepairDovecotBug([]byte(bodyWithBug), declared)
	require.True(t, ok)
	assert.Equal(t, realBeforeFrom+fromLine+realAfter, string(repaired))
	assert.Equal(t, declared, len(repaired))
}
