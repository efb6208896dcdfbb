package storage

import (
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/metrics"
)

// ConcurrentStore keeps entities and index entries in sharded concurrent maps.
// Reads take no store-wide lock. Writers serialize on a writer mutex so that
// multi-key sequences (claim keys then insert, rename) are atomic with respect
// to each other; index claims use SetIfAbsent. Index reads re-check the
// entity's current key so a reader never sees an entity under a stale key.
type ConcurrentStore[T Object] struct {
	core[T]

	writeMu sync.Mutex
	items   cmap.ConcurrentMap[string, T]
	indexes []cmap.ConcurrentMap[string, string]
}

// NewConcurrentStore creates an empty store with lock-free reads for kind
func NewConcurrentStore[T Object](kind Kind[T], opts ...Option) *ConcurrentStore[T] {
	s := &ConcurrentStore[T]{
		core:    newCore(kind, opts),
		items:   cmap.New[T](),
		indexes: make([]cmap.ConcurrentMap[string, string], len(kind.Indexes)),
	}
	for i := range s.indexes {
		s.indexes[i] = cmap.New[string]()
	}
	return s
}

// Create implements Store
func (s *ConcurrentStore[T]) Create(obj T) (T, error) {
	timer := metrics.NewTimer()
	out, err := s.create(obj)
	s.observe("create", timer, err)
	return out, err
}

func (s *ConcurrentStore[T]) create(obj T) (T, error) {
	var zero T

	item, err := s.prepareCreate(obj)
	if err != nil {
		return zero, err
	}
	meta := item.GetObjectMeta()
	keys := s.kind.keysOf(item)

	s.writeMu.Lock()
	if s.items.Has(meta.ID) {
		s.writeMu.Unlock()
		return zero, idConflict(s.kind.Name, meta.ID)
	}
	claimed := make([]int, 0, len(keys))
	for i, key := range keys {
		if !s.indexes[i].SetIfAbsent(key.encode(), meta.ID) {
			s.release(claimed, keys)
			s.writeMu.Unlock()
			return zero, keyConflict(s.kind.Name, s.kind.Indexes[i].Name, key)
		}
		claimed = append(claimed, i)
	}
	if !s.items.SetIfAbsent(meta.ID, item) {
		s.release(claimed, keys)
		s.writeMu.Unlock()
		return zero, idConflict(s.kind.Name, meta.ID)
	}
	s.recordCount(s.items.Count())
	s.writeMu.Unlock()

	s.committed(events.ActionCreated, meta.ID, meta.UpdatedAt)
	return s.clone(item), nil
}

// release drops index entries claimed by a failed create
func (s *ConcurrentStore[T]) release(claimed []int, keys []Key) {
	for _, i := range claimed {
		s.indexes[i].Remove(keys[i].encode())
	}
}

// Get implements Store
func (s *ConcurrentStore[T]) Get(id string) (T, error) {
	var zero T

	item, ok := s.items.Get(id)
	if !ok {
		return zero, notFound(s.kind.Name, id)
	}
	return s.clone(item), nil
}

// Update implements Store
func (s *ConcurrentStore[T]) Update(obj T) (T, error) {
	timer := metrics.NewTimer()
	out, err := s.update(obj)
	s.observe("update", timer, err)
	return out, err
}

func (s *ConcurrentStore[T]) update(obj T) (T, error) {
	var zero T

	item, err := s.prepareReplace(obj)
	if err != nil {
		return zero, err
	}
	id := item.GetObjectMeta().ID

	s.writeMu.Lock()
	prev, ok := s.items.Get(id)
	if !ok {
		s.writeMu.Unlock()
		return zero, notFound(s.kind.Name, id)
	}
	if err := s.replaceLocked(prev, item); err != nil {
		s.writeMu.Unlock()
		return zero, err
	}
	s.writeMu.Unlock()

	s.committed(events.ActionUpdated, id, item.GetObjectMeta().UpdatedAt)
	return s.clone(item), nil
}

// Patch implements Store
func (s *ConcurrentStore[T]) Patch(id string, mutate func(T)) (T, error) {
	timer := metrics.NewTimer()
	out, err := s.patch(id, mutate)
	s.observe("patch", timer, err)
	return out, err
}

func (s *ConcurrentStore[T]) patch(id string, mutate func(T)) (T, error) {
	var zero T

	item, err := s.patchLocked(id, mutate)
	if err != nil {
		return zero, err
	}

	s.committed(events.ActionUpdated, id, item.GetObjectMeta().UpdatedAt)
	return s.clone(item), nil
}

func (s *ConcurrentStore[T]) patchLocked(id string, mutate func(T)) (T, error) {
	var zero T

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, ok := s.items.Get(id)
	if !ok {
		return zero, notFound(s.kind.Name, id)
	}
	work := s.clone(prev)
	mutate(work)
	item := s.clone(work)
	if err := s.replaceLocked(prev, item); err != nil {
		return zero, err
	}
	return item, nil
}

// replaceLocked claims changed keys, publishes next, then drops the old keys.
// On conflict every claim made so far is released. Caller holds writeMu.
func (s *ConcurrentStore[T]) replaceLocked(prev, next T) error {
	s.carryOver(prev, next)
	id := prev.GetObjectMeta().ID

	oldKeys := s.kind.keysOf(prev)
	newKeys := s.kind.keysOf(next)

	claimed := make([]int, 0, len(newKeys))
	for i := range newKeys {
		if newKeys[i] == oldKeys[i] {
			continue
		}
		if !s.indexes[i].SetIfAbsent(newKeys[i].encode(), id) {
			s.release(claimed, newKeys)
			return keyConflict(s.kind.Name, s.kind.Indexes[i].Name, newKeys[i])
		}
		claimed = append(claimed, i)
	}

	s.items.Set(id, next)

	for _, i := range claimed {
		s.indexes[i].RemoveCb(oldKeys[i].encode(), func(_ string, owner string, exists bool) bool {
			return exists && owner == id
		})
	}
	return nil
}

// Delete implements Store
func (s *ConcurrentStore[T]) Delete(id string) error {
	timer := metrics.NewTimer()
	err := s.delete(id)
	s.observe("delete", timer, err)
	return err
}

func (s *ConcurrentStore[T]) delete(id string) error {
	s.writeMu.Lock()
	item, ok := s.items.Pop(id)
	if !ok {
		s.writeMu.Unlock()
		return notFound(s.kind.Name, id)
	}
	for i, key := range s.kind.keysOf(item) {
		s.indexes[i].RemoveCb(key.encode(), func(_ string, owner string, exists bool) bool {
			return exists && owner == id
		})
	}
	s.recordCount(s.items.Count())
	s.writeMu.Unlock()

	s.committed(events.ActionDeleted, id, time.Time{})
	return nil
}

// Lookup implements Store
func (s *ConcurrentStore[T]) Lookup(index string, key Key) (T, error) {
	var zero T

	pos, err := s.kind.indexPosition(index)
	if err != nil {
		return zero, err
	}

	id, ok := s.indexes[pos].Get(key.encode())
	if !ok {
		return zero, keyNotFound(s.kind.Name, index, key)
	}
	item, ok := s.items.Get(id)
	if !ok || s.kind.Indexes[pos].Key(item) != key {
		// Claimed by a create that has not committed, or mid-rename.
		return zero, keyNotFound(s.kind.Name, index, key)
	}
	return s.clone(item), nil
}

// List implements Store
func (s *ConcurrentStore[T]) List(match Predicate[T]) []T {
	matched := make([]T, 0, s.items.Count())
	s.items.IterCb(func(_ string, item T) {
		if match == nil || match(item) {
			matched = append(matched, item)
		}
	})

	sortByCreation(matched)
	return s.cloneAll(matched)
}

// Len implements Store
func (s *ConcurrentStore[T]) Len() int {
	return s.items.Count()
}
