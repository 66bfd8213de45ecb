package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

// MemoryStore keeps records in process. It serves single-instance
// deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]engine.Record
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{records: make(map[string]engine.Record), now: now}
}

// live returns the record for id, dropping it first if it has expired.
// Callers hold mu.
func (s *MemoryStore) live(id string) (engine.Record, bool) {
	rec, ok := s.records[id]
	if !ok {
		return engine.Record{}, false
	}
	if !s.now().Before(rec.Queue.ExpiresAt) {
		delete(s.records, id)
		return engine.Record{}, false
	}
	return rec, true
}

func (s *MemoryStore) Create(ctx context.Context, rec engine.Record, maxPerOwner int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(rec.Queue.ID); ok {
		return ErrSlugTaken
	}
	if maxPerOwner > 0 {
		owned := 0
		for id := range s.records {
			if r, ok := s.live(id); ok && r.Queue.OwnerID == rec.Queue.OwnerID {
				owned++
			}
		}
		if owned >= maxPerOwner {
			return quotaError(rec.Queue.OwnerID, maxPerOwner)
		}
	}
	s.records[rec.Queue.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (engine.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		return engine.Record{}, engine.ErrQueueNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]engine.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]engine.Record, 0, len(s.records))
	for id := range s.records {
		if rec, ok := s.live(id); ok {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue.CreatedAt.Before(out[j].Queue.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (engine.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		return engine.Record{}, engine.ErrQueueNotFound
	}
	next, err := fn(rec.Clone())
	if err != nil {
		return engine.Record{}, err
	}
	s.records[id] = next.Clone()
	return next, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string, check func(engine.Record) error) (engine.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		return engine.Record{}, engine.ErrQueueNotFound
	}
	if check != nil {
		if err := check(rec.Clone()); err != nil {
			return engine.Record{}, err
		}
	}
	delete(s.records, id)
	return rec, nil
}
