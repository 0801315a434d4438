package mbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenlo/mailcheck/internal/byteio"
)

func writeTempMbox(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spool.mbox")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const twoMessages = "From a@x Mon Jan  1 00:00:00 2001\n" +
	"Subject: one\n" +
	"Content-Length: 6\n" +
	"\n" +
	"hello\n" +
	"From b@x Tue Jan  2 00:00:00 2001\n" +
	"Subject: two\n" +
	"\n" +
	"world\n"

func TestLoadParsesMessages(t *testing.T) {
	path := writeTempMbox(t, twoMessages)
	box, diags, err := Load(path, byteio.Options{})
	require.NoError(t, err)
	defer box.Close()
	assert.Empty(t, diags)
	assert.Equal(t, 2, box.Count())

	first := box.MessageByNumber(1)
	require.NotNil(t, first)
	assert.Equal(t, "one", first.Headers.ValueOf("Subject"))
	assert.Equal(t, "hello\n", first.Body.String())

	second := box.MessageByNumber(2)
	require.NotNil(t, second)
	assert.Equal(t, "two", second.Headers.ValueOf("Subject"))
	assert.Equal(t, "world", second.Body.String())
}

func TestMessageDirtyPropagatesToMailbox(t *testing.T) {
	path := writeTempMbox(t, twoMessages)
	box, _, err := Load(path, byteio.Options{})
	require.NoError(t, err)
	defer box.Close()

	assert.False(t, box.Dirty())
	first := box.MessageByNumber(1)
	first.Headers.Set("Subject", "changed")
	assert.True(t, first.Dirty())
	assert.True(t, box.Dirty())
}

func TestDeleteSetMarksMessages(t *testing.T) {
	path := writeTempMbox(t, twoMessages)
	box, _, err := Load(path, byteio.Options{})
	require.NoError(t, err)
	defer box.Close()

	s, err := ParseSet("1")
	require.NoError(t, err)
	n := box.DeleteSet(s)
	assert.Equal(t, 1, n)
	assert.True(t, box.MessageByNumber(1).Deleted)
	assert.False(t, box.MessageByNumber(2).Deleted)
}
