package stub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RefreshSession is one server-side refresh grant: an opaque token bound to
// a user until it expires or is revoked.
type RefreshSession struct {
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	Email        string    `bson:"email" json:"email"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// SessionRepository persists refresh sessions. GetByToken returns (nil, nil)
// for unknown tokens.
type SessionRepository interface {
	Create(ctx context.Context, s *RefreshSession) error
	GetByToken(ctx context.Context, token string) (*RefreshSession, error)
	Delete(ctx context.Context, token string) error
}

// SessionService mints, validates and rotates refresh sessions over a
// repository.
type SessionService struct {
	repo SessionRepository
}

func NewSessionService(r SessionRepository) *SessionService { return &SessionService{repo: r} }

// Create stores a new refresh session and returns its opaque token.
func (s *SessionService) Create(ctx context.Context, email string, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	sess := &RefreshSession{
		RefreshToken: token,
		Email:        email,
		ExpiresAt:    time.Now().UTC().Add(ttl),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the session for token, or nil when unknown/expired.
// Expired sessions are removed on the way out.
func (s *SessionService) Validate(ctx context.Context, token string) (*RefreshSession, error) {
	sess, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		_ = s.repo.Delete(ctx, token)
		return nil, nil
	}
	return sess, nil
}

// Rotate invalidates the old token and mints a replacement with a fresh TTL.
func (s *SessionService) Rotate(ctx context.Context, old *RefreshSession, ttl time.Duration) (string, error) {
	if err := s.repo.Delete(ctx, old.RefreshToken); err != nil {
		return "", err
	}
	return s.Create(ctx, old.Email, ttl)
}

// Delete revokes a refresh session; deleting an unknown token is not an
// error.
func (s *SessionService) Delete(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}

// MemorySessionRepository keeps refresh sessions in process memory.
type MemorySessionRepository struct {
	mu    sync.Mutex
	store map[string]*RefreshSession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{store: map[string]*RefreshSession{}}
}

func (r *MemorySessionRepository) Create(ctx context.Context, s *RefreshSession) error {
	cp := *s
	r.mu.Lock()
	r.store[s.RefreshToken] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) GetByToken(ctx context.Context, token string) (*RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	delete(r.store, token)
	r.mu.Unlock()
	return nil
}

// RedisSessionRepository stores sessions as JSON under "<prefix><token>"
// with TTL = expiresAt - now, so revocation is a DEL and expiry is free.
type RedisSessionRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionRepository(client *redis.Client, prefix string) *RedisSessionRepository {
	if prefix == "" {
		prefix = "refresh:"
	}
	return &RedisSessionRepository{client: client, prefix: prefix}
}

func (r *RedisSessionRepository) key(token string) string { return r.prefix + token }

func (r *RedisSessionRepository) Create(ctx context.Context, s *RefreshSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(s.RefreshToken), b, ttl).Err()
}

func (r *RedisSessionRepository) GetByToken(ctx context.Context, token string) (*RefreshSession, error) {
	b, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var s RefreshSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		_ = r.client.Del(ctx, r.key(token)).Err()
		return nil, nil
	}
	return &s, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}

// MongoSessionRepository implements SessionRepository over a collection.
type MongoSessionRepository struct {
	col *mongo.Collection
}

func NewMongoSessionRepository(col *mongo.Collection) *MongoSessionRepository {
	return &MongoSessionRepository{col: col}
}

func (r *MongoSessionRepository) Create(ctx context.Context, s *RefreshSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoSessionRepository) GetByToken(ctx context.Context, token string) (*RefreshSession, error) {
	var s RefreshSession
	if err := r.col.FindOne(ctx, bson.M{"refreshToken": token}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoSessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"refreshToken": token})
	return err
}
