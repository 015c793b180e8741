package tokens

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileVaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault", "tokens.json")
	v := NewFileVault(path)

	pair := TokenPair{AccessToken: "A1", RefreshToken: "R1", ExpiresAt: time.Now().Add(time.Hour).UTC()}
	require.NoError(t, v.Put(pair))

	got, ok, err := v.Get()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pair.AccessToken, got.AccessToken)
	require.Equal(t, pair.RefreshToken, got.RefreshToken)
	require.WithinDuration(t, pair.ExpiresAt, got.ExpiresAt, time.Second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm(), "vault file must not be world readable")
}

func TestFileVaultMissingFile(t *testing.T) {
	v := NewFileVault(filepath.Join(t.TempDir(), "absent.json"))
	_, ok, err := v.Get()
	require.NoError(t, err)
	require.False(t, ok)

	// deleting an absent vault is not an error
	require.NoError(t, v.Delete())
}

func TestStoreLoadsFromVault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	v := NewFileVault(path)
	require.NoError(t, v.Put(TokenPair{AccessToken: "A1", RefreshToken: "R1", ExpiresAt: time.Now().Add(time.Hour)}))

	// a fresh store over the same vault sees the persisted pair
	s := NewStore(NewFileVault(path))
	require.Equal(t, "A1", s.AccessToken())
}
