package check

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/diag"
	"github.com/lenlo/mailcheck/internal/mbox"
)

func loadBox(t *testing.T, contents string) *mbox.Mailbox {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spool.mbox")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	box, _, err := mbox.Load(path, byteio.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { box.Close() })
	return box
}

func newTestLogger() *diag.Logger {
	return diag.NewLogger(log.New(os.Stderr, "", 0), &diag.Counter{})
}

func TestCheckerReportModeDoesNotMutate(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\n\nbody\n")
	logger := newTestLogger()
	c := NewChecker(box, logger, Options{Mode: ModeReport, Strict: true})
	c.Run()

	assert.False(t, box.Dirty())
	assert.Greater(t, logger.Counter.Warnings(), 0)
}

func TestCheckerRepairModeSynthesizesMessageID(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nSubject: hi\n\nbody\n")
	logger := newTestLogger()
	c := NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true})
	c.Run()

	m := box.MessageByNumber(1)
	assert.NotEmpty(t, m.Headers.ValueOf("Message-Id"))
	assert.True(t, box.Dirty())
}

func TestCheckerRepairIsIdempotent(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nSubject: hi\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()
	id := box.MessageByNumber(1).Headers.ValueOf("Message-Id")

	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Equal(t, id, box.MessageByNumber(1).Headers.ValueOf("Message-Id"))
}

func TestCheckerRemovesStrayFromHeader(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nSubject: hi\n>From stuffed\n\nbody\n")
	logger := newTestLogger()
	m := box.MessageByNumber(1)
	require.NotNil(t, m.Headers.FindFirst(">From "))

	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Nil(t, m.Headers.FindFirst(">From "))
}

func TestCheckerInteractiveApplyAll(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\n\nbody one\n"+
		"From b@x Tue Jan  2 00:00:00 2001\n\nbody two\n")
	logger := newTestLogger()
	calls := 0
	c := NewChecker(box, logger, Options{
		Mode:        ModeRepair,
		Strict:      true,
		Interactive: true,
		Prompt: func(rule Rule, m *mbox.Message, detail string) Decision {
			calls++
			if rule == RuleMessageID {
				return DecisionApplyAll
			}
			return DecisionSkip
		},
	})
	c.Run()

	assert.NotEmpty(t, box.MessageByNumber(1).Headers.ValueOf("Message-Id"))
	assert.NotEmpty(t, box.MessageByNumber(2).Headers.ValueOf("Message-Id"))
}

func TestCheckerNonStrictSkipsAllButContentLengthMismatch(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: false}).Run()

	m := box.MessageByNumber(1)
	assert.Empty(t, m.Headers.ValueOf("Message-Id"))
	assert.Empty(t, m.Headers.ValueOf("Content-Length"))
	assert.False(t, box.Dirty())
}

func TestCheckerStrictFlagsMissingContentLength(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()

	assert.Equal(t, "4", box.MessageByNumber(1).Headers.ValueOf("Content-Length"))
}

func TestSynthesizeMessageIDFormat(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nSubject: hi\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()

	id := box.MessageByNumber(1).Headers.ValueOf("Message-Id")
	assert.Regexp(t, `^<[0-9a-f]{32}@synthesized-by-mfck>$`, id)
}

func TestCheckMessageIDSubstitutesXMessageID(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nX-Message-ID: <already@there>\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()

	assert.Equal(t, "<already@there>", box.MessageByNumber(1).Headers.ValueOf("Message-Id"))
}

func TestCheckFromPresencePrefersXFrom(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nX-From: xfrom@x\nSender: sender@x\nReturn-Path: rp@x\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()

	assert.Equal(t, "xfrom@x", box.MessageByNumber(1).Headers.ValueOf("From"))
}

func TestCheckFromPresenceFallsBackToSenderThenReturnPathThenEnvelope(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nSender: sender@x\nReturn-Path: rp@x\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Equal(t, "sender@x", box.MessageByNumber(1).Headers.ValueOf("From"))

	box2 := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nReturn-Path: rp@x\n\nbody\n")
	logger2 := newTestLogger()
	NewChecker(box2, logger2, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Equal(t, "rp@x", box2.MessageByNumber(1).Headers.ValueOf("From"))

	box3 := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\n\nbody\n")
	logger3 := newTestLogger()
	NewChecker(box3, logger3, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Equal(t, "a@x", box3.MessageByNumber(1).Headers.ValueOf("From"))
}

func TestCheckDatePresencePrefersXDateThenReceivedThenEnvelope(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nX-Date: Wed, 01 Jan 2001 00:00:00 +0000\n"+
		"Received: from x by y; Thu, 02 Jan 2001 00:00:00 +0000\n\nbody\n")
	logger := newTestLogger()
	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Equal(t, "Wed, 01 Jan 2001 00:00:00 +0000", box.MessageByNumber(1).Headers.ValueOf("Date"))

	box2 := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\n"+
		"Received: from x by y; Thu, 02 Jan 2001 00:00:00 +0000\n\nbody\n")
	logger2 := newTestLogger()
	NewChecker(box2, logger2, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Equal(t, "Thu, 02 Jan 2001 00:00:00 +0000", box2.MessageByNumber(1).Headers.ValueOf("Date"))

	box3 := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\n\nbody\n")
	logger3 := newTestLogger()
	NewChecker(box3, logger3, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.NotEmpty(t, box3.MessageByNumber(1).Headers.ValueOf("Date"))
}

func TestCheckIllegalBytesPreservesFoldedHeaderNewlines(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nSubject: foo\n bar\n\nbody\n")
	logger := newTestLogger()
	m := box.MessageByNumber(1)
	require.False(t, hasIllegalByte(m.Headers.ValueOf("Subject")))

	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.Equal(t, "foo\n bar", m.Headers.ValueOf("Subject"))
}

func TestCheckIllegalBytesStripsHighBitBytes(t *testing.T) {
	box := loadBox(t, "From a@x Mon Jan  1 00:00:00 2001\nX-Weird: abc\x80def\n\nbody\n")
	logger := newTestLogger()
	require.True(t, hasIllegalByte(box.MessageByNumber(1).Headers.ValueOf("X-Weird")))

	NewChecker(box, logger, Options{Mode: ModeRepair, Strict: true}).Run()
	assert.False(t, hasIllegalByte(box.MessageByNumber(1).Headers.ValueOf("X-Weird")))
	assert.Equal(t, "abcdef", box.MessageByNumber(1).Headers.ValueOf("X-Weird"))
}
