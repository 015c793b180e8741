package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores the snapshot as JSON under "<prefix><clientID>"
// with TTL = the session inactivity window, so abandoned sessions age out
// of Redis on their own. Suited to server-side deployments where several
// workers share one logical session per end user.
type RedisRepository struct {
	client   *redis.Client
	prefix   string
	clientID string
}

// NewRedisRepository creates a Redis-backed snapshot repository. Prefix may
// be empty; clientID distinguishes independent sessions sharing one Redis.
func NewRedisRepository(client *redis.Client, prefix, clientID string) *RedisRepository {
	if prefix == "" {
		prefix = "authsnap:"
	}
	if clientID == "" {
		clientID = "default"
	}
	return &RedisRepository{client: client, prefix: prefix, clientID: clientID}
}

func (r *RedisRepository) key() string {
	return r.prefix + r.clientID
}

func (r *RedisRepository) Save(ctx context.Context, s *Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(), b, Timeout).Err()
}

func (r *RedisRepository) Load(ctx context.Context) (*Snapshot, error) {
	b, err := r.client.Get(ctx, r.key()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	// treat a snapshot past its inactivity window as missing
	if s.Stale(time.Now().UTC()) {
		_ = r.client.Del(ctx, r.key()).Err()
		return nil, nil
	}
	return &s, nil
}

func (r *RedisRepository) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}
