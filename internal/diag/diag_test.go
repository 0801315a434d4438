package diag

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterTracksSeverity(t *testing.T) {
	c := &Counter{}
	c.Add(New(Warning, ParseError, "", "oops"))
	c.Add(New(Notice, IntegrityError, "", "fyi"))
	c.Add(New(Warning, ResourceError, "", "oops again"))

	assert.Equal(t, 2, c.Warnings())
	assert.Equal(t, 1, c.Notices())
}

func TestLoggerQuietSuppressesNotices(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(log.New(&buf, "", 0), &Counter{})
	lg.Quiet = true

	lg.Report(New(Notice, IntegrityError, "msg 1", "just a notice"))
	assert.Empty(t, buf.String())

	lg.Report(New(Fatal, ParseError, "msg 1", "this is bad"))
	assert.Contains(t, buf.String(), "this is bad")
}

func TestDiagnosticErrorIncludesContext(t *testing.T) {
	d := New(Warning, IntegrityError, "message 3", "Content-Length mismatch")
	assert.Contains(t, d.Error(), "message 3")
	assert.Contains(t, d.Error(), "Content-Length mismatch")
}
