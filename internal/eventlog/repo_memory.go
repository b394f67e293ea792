package eventlog

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests
// and local development without Postgres.

type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" || rec.CallID == "" {
		return ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRepo) Since(ctx context.Context, since time.Time, callID string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Record{}
	for _, rec := range r.records {
		if !rec.ReceivedAt.After(since) {
			continue
		}
		if callID != "" && rec.CallID != callID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
