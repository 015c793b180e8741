package stub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSessionServiceLifecycle(t *testing.T) {
	svc := NewSessionService(NewMemorySessionRepository())
	ctx := context.Background()

	token, err := svc.Create(ctx, "tech@netpanel.example", time.Hour)
	require.NoError(t, err)
	require.Len(t, token, 64)

	sess, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "tech@netpanel.example", sess.Email)

	rotated, err := svc.Rotate(ctx, sess, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, token, rotated)

	dead, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.Nil(t, dead)

	require.NoError(t, svc.Delete(ctx, rotated))
	dead, err = svc.Validate(ctx, rotated)
	require.NoError(t, err)
	require.Nil(t, dead)
}

func TestSessionServiceExpiredTokenRemoved(t *testing.T) {
	repo := NewMemorySessionRepository()
	svc := NewSessionService(repo)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &RefreshSession{
		RefreshToken: "expired-token",
		Email:        "tech@netpanel.example",
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}))

	sess, err := svc.Validate(ctx, "expired-token")
	require.NoError(t, err)
	require.Nil(t, sess)

	// lazily deleted on the failed validate
	stored, err := repo.GetByToken(ctx, "expired-token")
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestRedisSessionRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewRedisSessionRepository(client, "")
	ctx := context.Background()

	sess := &RefreshSession{
		RefreshToken: "tok-1",
		Email:        "tech@netpanel.example",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, sess))

	got, err := repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "tech@netpanel.example", got.Email)

	missing, err := repo.GetByToken(ctx, "no-such")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.Delete(ctx, "tok-1"))
	gone, err := repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestRedisSessionRepositoryTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewRedisSessionRepository(client, "")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &RefreshSession{
		RefreshToken: "tok-ttl",
		Email:        "tech@netpanel.example",
		ExpiresAt:    time.Now().UTC().Add(30 * time.Minute),
		CreatedAt:    time.Now().UTC(),
	}))

	mr.FastForward(31 * time.Minute)

	gone, err := repo.GetByToken(ctx, "tok-ttl")
	require.NoError(t, err)
	require.Nil(t, gone)
}
