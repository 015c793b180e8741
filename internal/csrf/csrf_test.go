package csrf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeIsIdempotent(t *testing.T) {
	g := NewGuard()
	tok, err := g.Initialize()
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	tok2, err := g.Initialize()
	require.NoError(t, err)
	require.Equal(t, tok, tok2, "second Initialize must keep the first token")
}

func TestSetTokenOverridesGenerated(t *testing.T) {
	g := NewGuard()
	_, err := g.Initialize()
	require.NoError(t, err)

	g.SetToken("server-supplied")
	require.Equal(t, "server-supplied", g.Token())

	// empty set is ignored
	g.SetToken("")
	require.Equal(t, "server-supplied", g.Token())
}

func TestClearIsIdempotent(t *testing.T) {
	g := NewGuard()
	g.SetToken("x")
	g.Clear()
	require.Empty(t, g.Token())
	g.Clear()
	require.Empty(t, g.Token())
}
