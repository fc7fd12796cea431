package users

import (
	"context"
	"sync"
	"time"

	"github.com/pdfmarker/pdfmarker/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	UpsertBySub(ctx context.Context, u *models.User) (*models.User, error)
	GetBySub(ctx context.Context, sub string) (*models.User, error)
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	filter := bson.M{"sub": u.Sub}
	repl := bson.M{"$set": bson.M{
		"email":     u.Email,
		"name":      u.Name,
		"role":      u.Role,
		"updatedAt": u.UpdatedAt,
	}, "$setOnInsert": bson.M{
		"createdAt": u.CreatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, filter, repl, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			// Shouldn't happen because of upsert, but handle gracefully
			return u, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"sub": sub}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// MemoryUserRepository keeps users in memory, keyed by subject.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	bySub map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{bySub: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) UpsertBySub(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if cur, ok := r.bySub[u.Sub]; ok {
		cur.Email, cur.Name, cur.Role = u.Email, u.Name, u.Role
		cur.UpdatedAt = now
		cp := *cur
		return &cp, nil
	}
	cp := *u
	cp.ID = u.Sub
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.bySub[u.Sub] = &cp
	out := cp
	return &out, nil
}

func (r *MemoryUserRepository) GetBySub(_ context.Context, sub string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.bySub[sub]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
