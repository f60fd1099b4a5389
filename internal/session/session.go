// Package session caches per-session analysis state: the built index, the
// segments it was built from, and the guardrail-validated analysis result.
// The cache is a bounded LRU with TTL rather than an unbounded
// process-lifetime map, so long-running deployments do not leak sessions.
//
// Concurrent writes to the same session race with last-write-wins
// semantics; the mutex protects map integrity only, not read-after-write
// consistency across callers.
package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/brightfield-ai/scout/internal/index"
	"github.com/brightfield-ai/scout/internal/model"
)

// DefaultID is used when a caller omits the session identifier. A shared
// default is convenient for single-caller deployments and a documented
// collision risk for everything else.
const DefaultID = "default"

// Entry is one cached session.
type Entry struct {
	ID          string
	Index       index.Index
	Segments    []model.Segment
	Analysis    model.AnalysisResult
	CompanyInfo string
	Raw         string
	CreatedAt   time.Time
}

// Store is a fixed-capacity LRU cache with per-entry TTL.
type Store struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	ll    *list.List // front = most recently used
	items map[string]*list.Element

	now func() time.Time // injectable clock for tests
}

type lruItem struct {
	entry    Entry
	touchedAt time.Time
}

// New creates a store holding at most capacity entries, each valid for ttl
// after its last access. capacity must be positive.
func New(capacity int, ttl time.Duration) *Store {
	return &Store{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached entry and refreshes its recency. Expired entries
// are evicted lazily on access.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[id]
	if !ok {
		return Entry{}, false
	}
	item := el.Value.(*lruItem)
	if s.ttl > 0 && s.now().Sub(item.touchedAt) > s.ttl {
		s.removeLocked(el)
		return Entry{}, false
	}
	item.touchedAt = s.now()
	s.ll.MoveToFront(el)
	return item.entry, true
}

// Put inserts or replaces the entry for its session ID, evicting the least
// recently used entry when over capacity.
func (s *Store) Put(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[e.ID]; ok {
		item := el.Value.(*lruItem)
		item.entry = e
		item.touchedAt = s.now()
		s.ll.MoveToFront(el)
		return
	}

	el := s.ll.PushFront(&lruItem{entry: e, touchedAt: s.now()})
	s.items[e.ID] = el

	for s.ll.Len() > s.capacity {
		oldest := s.ll.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest)
	}
}

// Len returns the number of live entries, expired ones included until
// their next access.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

func (s *Store) removeLocked(el *list.Element) {
	item := el.Value.(*lruItem)
	delete(s.items, item.entry.ID)
	s.ll.Remove(el)
}
