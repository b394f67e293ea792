package vision

import (
	"context"
	"sync"
)

// Repository stores completed analyses.
type Repository interface {
	Save(ctx context.Context, a Analysis) error
	Get(ctx context.Context, id string) (Analysis, bool, error)
	Latest(ctx context.Context) (Analysis, bool, error)
}

// MemoryRepository is the in-process store. Analyses are advisory context for
// call prompts, not durable records, so memory is the production shape too.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]Analysis
	ordered []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]Analysis)}
}

func (r *MemoryRepository) Save(_ context.Context, a Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID]; !exists {
		r.ordered = append(r.ordered, a.ID)
	}
	r.byID[a.ID] = a
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Analysis, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	return a, ok, nil
}

func (r *MemoryRepository) Latest(_ context.Context) (Analysis, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ordered) == 0 {
		return Analysis{}, false, nil
	}
	return r.byID[r.ordered[len(r.ordered)-1]], true, nil
}
