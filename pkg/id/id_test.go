package id_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/id"
)

func TestNewULID(t *testing.T) {
	t.Parallel()

	a, b := id.NewULID(), id.NewULID()
	require.Len(t, a, 26)
	require.Regexp(t, regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`), a)
	require.NotEqual(t, a, b)
	require.True(t, id.IsULID(a))
	require.False(t, id.IsULID("not-a-ulid"))
}

func TestNewUUID(t *testing.T) {
	t.Parallel()

	u := id.NewUUID()
	require.True(t, id.IsUUID(u))
	require.False(t, id.IsUUID("123"))
}

func TestToken(t *testing.T) {
	t.Parallel()

	t.Run("base64", func(t *testing.T) {
		t.Parallel()
		tok := id.Token(32)
		require.Len(t, tok, 43)
		require.NotContains(t, tok, "=")
		require.NotEqual(t, tok, id.Token(32))
	})

	t.Run("hex", func(t *testing.T) {
		t.Parallel()
		tok := id.HexToken(16)
		require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), tok)
	})
}
