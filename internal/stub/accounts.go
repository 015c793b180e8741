package stub

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
)

// Account is a platform login backed by the stub: the user record plus a
// bcrypt password hash.
type Account struct {
	User         models.User `bson:",inline"`
	PasswordHash []byte      `bson:"passwordHash" json:"-"`
}

// CheckPassword compares the candidate against the stored hash.
func (a *Account) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) == nil
}

// AccountRepository provides account persistence. GetByEmail returns
// (nil, nil) when no account matches.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Upsert(ctx context.Context, a *Account) error
}

// MemoryAccountRepository is the in-process fallback used when MongoDB is
// not configured; cmd/authstub seeds it with dev accounts.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by lowercased email
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: map[string]*Account{}}
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAccountRepository) Upsert(ctx context.Context, a *Account) error {
	cp := *a
	r.mu.Lock()
	r.accounts[strings.ToLower(a.User.Email)] = &cp
	r.mu.Unlock()
	return nil
}

// Seed registers a dev account with a plaintext password, hashing it on the
// way in. Intended for cmd/authstub startup only.
func (r *MemoryAccountRepository) Seed(user models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return r.Upsert(context.Background(), &Account{User: user, PasswordHash: hash})
}

// MongoAccountRepository implements AccountRepository over a collection.
type MongoAccountRepository struct {
	col *mongo.Collection
}

func NewMongoAccountRepository(col *mongo.Collection) *MongoAccountRepository {
	return &MongoAccountRepository{col: col}
}

func (r *MongoAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	if err := r.col.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&a); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoAccountRepository) Upsert(ctx context.Context, a *Account) error {
	now := time.Now().UTC()
	if a.User.CreatedAt.IsZero() {
		a.User.CreatedAt = now
	}
	a.User.UpdatedAt = now

	filter := bson.M{"email": strings.ToLower(a.User.Email)}
	update := bson.M{"$set": bson.M{
		"email":        strings.ToLower(a.User.Email),
		"name":         a.User.Name,
		"role":         a.User.Role,
		"permissions":  a.User.Permissions,
		"tenantId":     a.User.TenantID,
		"mfaEnabled":   a.User.MFAEnabled,
		"passwordHash": a.PasswordHash,
		"updatedAt":    a.User.UpdatedAt,
		"createdAt":    a.User.CreatedAt,
	}}
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, filter, update, opts)
	return err
}
