package progress

import (
	"context"
	"sync"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
)

const DefaultTTL = 24 * time.Hour

// Store keeps the latest progress snapshot of each import job.
type Store interface {
	Save(ctx context.Context, p bookmark.Progress) error
	// Get returns nil when the job is unknown or expired.
	Get(ctx context.Context, jobID string) (*bookmark.Progress, error)
	Close() error
}

type memoryEntry struct {
	progress  bookmark.Progress
	expiresAt time.Time
}

// MemoryStore is the single-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, p bookmark.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}

	p.FailedGroups = append([]bookmark.GroupFailure(nil), p.FailedGroups...)
	s.entries[p.JobID] = memoryEntry{progress: p, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*bookmark.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[jobID]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	p := e.progress
	return &p, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
