package session

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		User:         models.User{ID: "u1", Email: "a@b.com", Role: models.RoleAdmin},
		SessionID:    "s1",
		MFAVerified:  true,
		LastActivity: time.Now().UTC(),
		SavedAt:      time.Now().UTC(),
	}
}

func TestRedisRepositorySaveLoadDelete(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepository(client, "test:authsnap:", "tab-1")

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, testSnapshot()))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "u1", got.User.ID)
	require.Equal(t, "s1", got.SessionID)

	require.NoError(t, repo.Delete(ctx))
	got2, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got2)
}

func TestRedisRepositoryTTLExpiry(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepository(client, "test:authsnap:", "tab-2")

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, testSnapshot()))

	// advance miniredis past the inactivity TTL
	m.FastForward(Timeout + time.Second)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got, "snapshot must age out of redis with the session window")
}

func TestRedisRepositoryClientsAreIsolated(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	a := NewRedisRepository(client, "test:authsnap:", "tab-a")
	b := NewRedisRepository(client, "test:authsnap:", "tab-b")

	ctx := context.Background()
	require.NoError(t, a.Save(ctx, testSnapshot()))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got, "snapshots must be keyed per client id")
}
