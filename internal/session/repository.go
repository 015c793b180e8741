package session

import (
	"context"
	"sync"
)

// Repository persists the sanitized session snapshot so a restarted process
// can rehydrate. Load returns (nil, nil) when no snapshot is stored.
type Repository interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Delete(ctx context.Context) error
}

// MemoryRepository keeps the snapshot in process memory; useful for tests
// and for callers that opt out of persistence.
type MemoryRepository struct {
	mu   sync.Mutex
	snap *Snapshot
}

func NewMemoryRepository() *MemoryRepository { return &MemoryRepository{} }

func (r *MemoryRepository) Save(ctx context.Context, s *Snapshot) error {
	cp := *s
	r.mu.Lock()
	r.snap = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Load(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap == nil {
		return nil, nil
	}
	cp := *r.snap
	return &cp, nil
}

func (r *MemoryRepository) Delete(ctx context.Context) error {
	r.mu.Lock()
	r.snap = nil
	r.mu.Unlock()
	return nil
}
