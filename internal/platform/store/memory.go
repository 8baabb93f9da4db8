package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryCollection struct {
	records map[string]Record
	deleted map[string]bool
	// ordered ids for deterministic list results
	order []string
}

// MemoryStore is a thread-safe in-memory Store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*memoryCollection
	now     func() time.Time
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]map[string]*memoryCollection),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) collection(tenant, name string) *memoryCollection {
	cols, ok := s.tenants[tenant]
	if !ok {
		cols = make(map[string]*memoryCollection)
		s.tenants[tenant] = cols
	}
	col, ok := cols[name]
	if !ok {
		col = &memoryCollection{
			records: make(map[string]Record),
			deleted: make(map[string]bool),
		}
		cols[name] = col
	}
	return col
}

func (s *MemoryStore) Create(_ context.Context, collection, tenant string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := rec.Clone()
	if stored == nil {
		stored = Record{}
	}
	stored[KeyID] = uuid.New().String()
	stored[KeyVersion] = int64(1)
	stored[KeyCreatedAt] = s.now().Format(time.RFC3339)
	stored[KeyUpdatedAt] = stored[KeyCreatedAt]

	col := s.collection(tenant, collection)
	col.records[stored.ID()] = stored
	col.order = append(col.order, stored.ID())

	return stored.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, collection, tenant, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.lookup(tenant, collection)
	if col == nil || col.deleted[id] {
		return nil, ErrNotFound
	}
	rec, ok := col.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, collection, tenant string, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.lookup(tenant, collection)
	if col == nil {
		return nil, nil
	}
	var out []Record
	for _, id := range col.order {
		if col.deleted[id] {
			continue
		}
		rec := col.records[id]
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, tenant, id string, expectedVersion int64, patch Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.lookup(tenant, collection)
	if col == nil || col.deleted[id] {
		return nil, ErrNotFound
	}
	rec, ok := col.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Version() != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := rec.Clone()
	for k, v := range patch {
		if k == KeyID || k == KeyVersion || k == KeyCreatedAt {
			continue
		}
		next[k] = deepCopyValue(v)
	}
	next[KeyVersion] = expectedVersion + 1
	next[KeyUpdatedAt] = s.now().Format(time.RFC3339)
	col.records[id] = next

	return next.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, tenant, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.lookup(tenant, collection)
	if col == nil || col.deleted[id] {
		return ErrNotFound
	}
	if _, ok := col.records[id]; !ok {
		return ErrNotFound
	}
	col.deleted[id] = true
	return nil
}

func (s *MemoryStore) lookup(tenant, collection string) *memoryCollection {
	cols, ok := s.tenants[tenant]
	if !ok {
		return nil
	}
	return cols[collection]
}
