package dedup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenlo/mailcheck/internal/byteio"
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

const dupMailbox = "From a@x Mon Jan  1 00:00:00 2001\n" +
	"Message-Id: <dup@x>\nSubject: one\n\nbody one\n" +
	"From b@x Tue Jan  2 00:00:00 2001\n" +
	"Message-Id: <dup@x>\nSubject: one\n\nbody one\n" +
	"From c@x Wed Jan  3 00:00:00 2001\n" +
	"Message-Id: <unique@x>\nSubject: three\n\nbody three\n"

// mismatchMailbox's first pair shares a Message-Id but disagrees on
// Subject, so FindCandidates reports a non-empty DifferingFields and
// Resolve must actually consult the prompt rather than auto-deleting.
const mismatchMailbox = "From a@x Mon Jan  1 00:00:00 2001\n" +
	"Message-Id: <dup@x>\nSubject: one\n\nbody one\n" +
	"From b@x Tue Jan  2 00:00:00 2001\n" +
	"Message-Id: <dup@x>\nSubject: two\n\nbody one\n"

func TestFindCandidatesGroupsByMessageID(t *testing.T) {
	box := loadBox(t, dupMailbox)
	pairs := FindCandidates(box)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1, pairs[0].A.Number)
	assert.Equal(t, 2, pairs[0].B.Number)
	assert.Empty(t, pairs[0].DifferingFields)
}

func TestResolveAutoDeletesExactDuplicateWithoutPrompting(t *testing.T) {
	box := loadBox(t, dupMailbox)
	pairs := FindCandidates(box)
	calls := 0
	Resolve(pairs, func(p Pair) Decision {
		calls++
		return DecisionKeepBoth
	})

	assert.Zero(t, calls)
	assert.False(t, box.MessageByNumber(1).Deleted)
	assert.True(t, box.MessageByNumber(2).Deleted)
}

func TestResolveKeepFirstDeletesSecondOnMismatch(t *testing.T) {
	box := loadBox(t, mismatchMailbox)
	pairs := FindCandidates(box)
	require.NotEmpty(t, pairs[0].DifferingFields)
	Resolve(pairs, func(p Pair) Decision { return DecisionKeepFirst })

	assert.False(t, box.MessageByNumber(1).Deleted)
	assert.True(t, box.MessageByNumber(2).Deleted)
}

func TestResolveShowDiffRepromptsOnMismatch(t *testing.T) {
	box := loadBox(t, mismatchMailbox)
	pairs := FindCandidates(box)
	calls := 0
	Resolve(pairs, func(p Pair) Decision {
		calls++
		if calls == 1 {
			return DecisionShowDiff
		}
		return DecisionKeepBoth
	})
	assert.Equal(t, 2, calls)
	assert.False(t, box.MessageByNumber(1).Deleted)
	assert.False(t, box.MessageByNumber(2).Deleted)
}
