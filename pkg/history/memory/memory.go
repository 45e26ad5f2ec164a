// Package memory provides an in-memory history.Store for development and
// single-replica deployments. Records are lost when the process restarts.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/rhuss/tradelens/pkg/history"
)

// DefaultMaxSize bounds the store when no size is configured.
const DefaultMaxSize = 1000

type entry struct {
	rec  *history.Record
	elem *list.Element
}

// Store is a bounded in-memory history.Store. When full, the oldest
// record is evicted.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   *list.List // front = newest
	maxSize int
}

// Ensure Store implements history.Store at compile time.
var _ history.Store = (*Store)(nil)

// New creates a store holding at most maxSize records. A non-positive
// maxSize selects DefaultMaxSize.
func New(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		entries: make(map[string]*entry),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Save stores a copy of rec under the context tenant.
func (s *Store) Save(ctx context.Context, rec *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return history.ErrConflict
	}

	for len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	cp := *rec
	cp.TenantID = history.GetTenant(ctx)
	s.entries[cp.ID] = &entry{rec: &cp, elem: s.order.PushFront(cp.ID)}
	return nil
}

// Get returns the record with id if it belongs to the context tenant.
func (s *Store) Get(ctx context.Context, id string) (*history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.rec.TenantID != history.GetTenant(ctx) {
		return nil, history.ErrNotFound
	}
	cp := *e.rec
	return &cp, nil
}

// List returns the context tenant's records, newest first.
func (s *Store) List(ctx context.Context, opts history.ListOptions) ([]*history.Record, error) {
	opts = opts.Normalize()
	tenant := history.GetTenant(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*history.Record, 0, opts.Limit)
	for el := s.order.Front(); el != nil && len(out) < opts.Limit; el = el.Next() {
		rec := s.entries[el.Value.(string)].rec
		if rec.TenantID != tenant {
			continue
		}
		if opts.Namespace != "" && rec.Namespace != opts.Namespace {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// Len returns the number of stored records across all tenants.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// evictOldest removes the least recent record. Caller must hold s.mu.
func (s *Store) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	s.order.Remove(back)
	delete(s.entries, back.Value.(string))
}
