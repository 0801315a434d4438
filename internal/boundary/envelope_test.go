package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenlo/mailcheck/internal/byteio"
)

func TestValidateFromLineBasic(t *testing.T) {
	cur := byteio.NewCursor([]byte("From alice@example.com Mon Jan  1 00:00:00 2001\nSubject: hi\n"))
	env, ok := ValidateFromLine(cur)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", env.Sender)
	assert.Equal(t, 2001, env.Date.Year())
	assert.Equal(t, 1, int(env.Date.Month()))
	assert.Equal(t, 1, env.Date.Day())
	assert.Equal(t, "Subject: hi\n", string(cur.Base()[cur.Pos():]))
}

func TestValidateFromLineWithZoneBeforeYear(t *testing.T) {
	cur := byteio.NewCursor([]byte("From bob Tue Feb 20 10:20:30 PST 2002\n"))
	env, ok := ValidateFromLine(cur)
	require.True(t, ok)
	assert.Equal(t, 2002, env.Date.Year())
}

func TestValidateFromLineWithNumericZoneAfterYear(t *testing.T) {
	cur := byteio.NewCursor([]byte("From bob Tue Feb 20 10:20:30 2002 +0000\n"))
	env, ok := ValidateFromLine(cur)
	require.True(t, ok)
	assert.Equal(t, 2002, env.Date.Year())
}

func TestValidateFromLineWithTrailingGarbage(t *testing.T) {
	cur := byteio.NewCursor([]byte("From bob Tue Feb 20 10:20:30 2002 remote from foo\n"))
	_, ok := ValidateFromLine(cur)
	assert.True(t, ok)
}

func TestValidateFromLineRejectsMalformed(t *testing.T) {
	cur := byteio.NewCursor([]byte("From \nrest\n"))
	_, ok := ValidateFromLine(cur)
	assert.False(t, ok)
	assert.Equal(t, 0, cur.Pos())
}

func TestValidateFromLineRejectsNonFrom(t *testing.T) {
	cur := byteio.NewCursor([]byte("Subject: hi\n"))
	_, ok := ValidateFromLine(cur)
	assert.False(t, ok)
	assert.Equal(t, 0, cur.Pos())
}
