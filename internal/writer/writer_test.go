package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/mbox"
)

func loadBox(t *testing.T, contents string) (*mbox.Mailbox, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spool.mbox")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	box, _, err := mbox.Load(path, byteio.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { box.Close() })
	return box, path
}

func TestWriteRoundTripsUnmodifiedMailbox(t *testing.T) {
	contents := "From a@x Mon Jan  1 00:00:00 2001\nSubject: hi\n\nhello\n"
	box, path := loadBox(t, contents)

	require.NoError(t, Write(box, Options{}))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, contents, string(out))
}

func TestWriteSkipsDeletedMessages(t *testing.T) {
	contents := "From a@x Mon Jan  1 00:00:00 2001\n\none\n" +
		"From b@x Tue Jan  2 00:00:00 2001\n\ntwo\n"
	box, path := loadBox(t, contents)
	box.MessageByNumber(1).MarkDeleted()

	require.NoError(t, Write(box, Options{}))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "a@x")
	assert.Contains(t, string(out), "b@x")
}

func TestWriteEmitsBodyVerbatimMboxoStyle(t *testing.T) {
	contents := "From a@x Mon Jan  1 00:00:00 2001\n\nFrom the desk of someone\n"
	box, path := loadBox(t, contents)
	box.MessageByNumber(1).MarkDirty() // force rewrite path

	require.NoError(t, Write(box, Options{}))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, contents, string(out))
}

func TestWriteSanitizeIMAPMigratesBaseToSurvivor(t *testing.T) {
	contents := "From a@x Mon Jan  1 00:00:00 2001\nX-IMAP: 0001 0000000000\nX-IMAPbase: 1234 5678\n\none\n" +
		"From b@x Tue Jan  2 00:00:00 2001\n\ntwo\n"
	box, path := loadBox(t, contents)
	box.DeleteSet(mustSet(t, "1"))

	require.NoError(t, Write(box, Options{SanitizeIMAP: true}))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "a@x")
	assert.Contains(t, string(out), "b@x")
	assert.Contains(t, string(out), "X-IMAPbase: 1234 5678")
	assert.NotContains(t, string(out), "X-IMAP:")
}

func mustSet(t *testing.T, s string) *mbox.Set {
	t.Helper()
	set, err := mbox.ParseSet(s)
	require.NoError(t, err)
	return set
}

func TestWriteBackupPreservesOriginal(t *testing.T) {
	contents := "From a@x Mon Jan  1 00:00:00 2001\n\nhello\n"
	box, path := loadBox(t, contents)
	box.MessageByNumber(1).Headers.Set("Subject", "changed")

	require.NoError(t, Write(box, Options{Backup: true}))

	backup, err := os.ReadFile(path + "~")
	require.NoError(t, err)
	assert.Equal(t, contents, string(backup))
}
