package storage

import (
	"sync"
	"time"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/metrics"
)

// MemoryStore guards its entities and indexes with a single reader/writer lock.
// Uniqueness checks and index maintenance run in the same writer critical
// section as the entity write.
type MemoryStore[T Object] struct {
	core[T]

	mu      sync.RWMutex
	items   map[string]T
	indexes []map[Key]string
}

// NewMemoryStore creates an empty lock-guarded store for kind
func NewMemoryStore[T Object](kind Kind[T], opts ...Option) *MemoryStore[T] {
	s := &MemoryStore[T]{
		core:    newCore(kind, opts),
		items:   make(map[string]T),
		indexes: make([]map[Key]string, len(kind.Indexes)),
	}
	for i := range s.indexes {
		s.indexes[i] = make(map[Key]string)
	}
	return s
}

// Create implements Store
func (s *MemoryStore[T]) Create(obj T) (T, error) {
	timer := metrics.NewTimer()
	out, err := s.create(obj)
	s.observe("create", timer, err)
	return out, err
}

func (s *MemoryStore[T]) create(obj T) (T, error) {
	var zero T

	item, err := s.prepareCreate(obj)
	if err != nil {
		return zero, err
	}
	meta := item.GetObjectMeta()
	keys := s.kind.keysOf(item)

	s.mu.Lock()
	if _, exists := s.items[meta.ID]; exists {
		s.mu.Unlock()
		return zero, idConflict(s.kind.Name, meta.ID)
	}
	for i, key := range keys {
		if _, taken := s.indexes[i][key]; taken {
			s.mu.Unlock()
			return zero, keyConflict(s.kind.Name, s.kind.Indexes[i].Name, key)
		}
	}
	for i, key := range keys {
		s.indexes[i][key] = meta.ID
	}
	s.items[meta.ID] = item
	s.recordCount(len(s.items))
	s.mu.Unlock()

	s.committed(events.ActionCreated, meta.ID, meta.UpdatedAt)
	return s.clone(item), nil
}

// Get implements Store
func (s *MemoryStore[T]) Get(id string) (T, error) {
	var zero T

	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()

	if !ok {
		return zero, notFound(s.kind.Name, id)
	}
	// Stored entities are never mutated in place, so copying outside the lock is safe.
	return s.clone(item), nil
}

// Update implements Store
func (s *MemoryStore[T]) Update(obj T) (T, error) {
	timer := metrics.NewTimer()
	out, err := s.update(obj)
	s.observe("update", timer, err)
	return out, err
}

func (s *MemoryStore[T]) update(obj T) (T, error) {
	var zero T

	item, err := s.prepareReplace(obj)
	if err != nil {
		return zero, err
	}
	id := item.GetObjectMeta().ID

	s.mu.Lock()
	prev, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return zero, notFound(s.kind.Name, id)
	}
	if err := s.replaceLocked(prev, item); err != nil {
		s.mu.Unlock()
		return zero, err
	}
	s.mu.Unlock()

	s.committed(events.ActionUpdated, id, item.GetObjectMeta().UpdatedAt)
	return s.clone(item), nil
}

// Patch implements Store
func (s *MemoryStore[T]) Patch(id string, mutate func(T)) (T, error) {
	timer := metrics.NewTimer()
	out, err := s.patch(id, mutate)
	s.observe("patch", timer, err)
	return out, err
}

func (s *MemoryStore[T]) patch(id string, mutate func(T)) (T, error) {
	var zero T

	item, err := s.patchLocked(id, mutate)
	if err != nil {
		return zero, err
	}

	s.committed(events.ActionUpdated, id, item.GetObjectMeta().UpdatedAt)
	return s.clone(item), nil
}

func (s *MemoryStore[T]) patchLocked(id string, mutate func(T)) (T, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.items[id]
	if !ok {
		return zero, notFound(s.kind.Name, id)
	}
	work := s.clone(prev)
	mutate(work)
	// mutate may keep a reference to work; store a copy it cannot reach
	item := s.clone(work)
	if err := s.replaceLocked(prev, item); err != nil {
		return zero, err
	}
	return item, nil
}

// replaceLocked swaps prev for next, moving any changed index entries. Nothing
// is modified when a changed key belongs to another entity. Caller holds mu.
func (s *MemoryStore[T]) replaceLocked(prev, next T) error {
	s.carryOver(prev, next)
	id := prev.GetObjectMeta().ID

	oldKeys := s.kind.keysOf(prev)
	newKeys := s.kind.keysOf(next)
	for i := range newKeys {
		if newKeys[i] == oldKeys[i] {
			continue
		}
		if owner, taken := s.indexes[i][newKeys[i]]; taken && owner != id {
			return keyConflict(s.kind.Name, s.kind.Indexes[i].Name, newKeys[i])
		}
	}
	for i := range newKeys {
		if newKeys[i] == oldKeys[i] {
			continue
		}
		delete(s.indexes[i], oldKeys[i])
		s.indexes[i][newKeys[i]] = id
	}
	s.items[id] = next
	return nil
}

// Delete implements Store
func (s *MemoryStore[T]) Delete(id string) error {
	timer := metrics.NewTimer()
	err := s.delete(id)
	s.observe("delete", timer, err)
	return err
}

func (s *MemoryStore[T]) delete(id string) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return notFound(s.kind.Name, id)
	}
	for i, key := range s.kind.keysOf(item) {
		if s.indexes[i][key] == id {
			delete(s.indexes[i], key)
		}
	}
	delete(s.items, id)
	s.recordCount(len(s.items))
	s.mu.Unlock()

	s.committed(events.ActionDeleted, id, time.Time{})
	return nil
}

// Lookup implements Store
func (s *MemoryStore[T]) Lookup(index string, key Key) (T, error) {
	var zero T

	pos, err := s.kind.indexPosition(index)
	if err != nil {
		return zero, err
	}

	s.mu.RLock()
	id, ok := s.indexes[pos][key]
	var item T
	if ok {
		item, ok = s.items[id]
	}
	s.mu.RUnlock()

	if !ok {
		return zero, keyNotFound(s.kind.Name, index, key)
	}
	return s.clone(item), nil
}

// List implements Store
func (s *MemoryStore[T]) List(match Predicate[T]) []T {
	s.mu.RLock()
	matched := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if match == nil || match(item) {
			matched = append(matched, item)
		}
	}
	s.mu.RUnlock()

	sortByCreation(matched)
	return s.cloneAll(matched)
}

// Len implements Store
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
