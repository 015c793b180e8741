package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSnapshot()))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "u1", got.User.ID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, repo.Delete(ctx))
	got2, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got2)

	// deleting again is fine
	require.NoError(t, repo.Delete(ctx))
}
