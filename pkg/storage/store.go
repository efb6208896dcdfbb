package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/rs/zerolog"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/metrics"
)

// Store holds the entities of one kind. Every value passed in or returned is
// an independent deep copy; callers never share memory with the store.
type Store[T Object] interface {
	// Kind returns the kind name
	Kind() string

	// Create assigns an ID when empty, stamps CreatedAt and UpdatedAt, applies
	// defaults and stores the entity. ErrAlreadyExists if the ID or any unique key is taken.
	Create(obj T) (T, error)

	// Get returns the entity or ErrNotFound
	Get(id string) (T, error)

	// Update replaces the entity, keeping CreatedAt and refreshing UpdatedAt.
	// ErrNotFound if absent, ErrAlreadyExists if a changed unique key is taken.
	Update(obj T) (T, error)

	// Patch applies mutate to a copy of the stored entity and stores the result.
	// ID and CreatedAt are restored after mutate runs. mutate must not call the store.
	Patch(id string, mutate func(T)) (T, error)

	// Delete removes the entity or returns ErrNotFound
	Delete(id string) error

	// Lookup returns the entity owning key in the named index, or ErrNotFound
	Lookup(index string, key Key) (T, error)

	// List returns matching entities ordered by CreatedAt then ID. A nil predicate matches all.
	List(match Predicate[T]) []T

	// Len returns the number of stored entities
	Len() int
}

// core holds what both store implementations share: kind metadata, copies,
// timestamps, and post-commit bookkeeping
type core[T Object] struct {
	kind      Kind[T]
	clock     func() time.Time
	newID     func() (string, error)
	publisher Publisher
	logger    zerolog.Logger
}

func newCore[T Object](kind Kind[T], opts []Option) core[T] {
	cfg := NewConfig(opts...)
	return core[T]{
		kind:      kind,
		clock:     cfg.Clock,
		newID:     cfg.IDGenerator,
		publisher: cfg.Publisher,
		logger:    cfg.logger(kind.Name),
	}
}

func (c *core[T]) Kind() string {
	return c.kind.Name
}

func (c *core[T]) clone(obj T) T {
	return deepcopy.Copy(obj).(T)
}

// prepareCreate copies obj and fills ID, defaults and timestamps on the copy
func (c *core[T]) prepareCreate(obj T) (T, error) {
	var zero T
	if isNil(obj) {
		return zero, fmt.Errorf("%s: nil entity", c.kind.Name)
	}

	item := c.clone(obj)
	meta := item.GetObjectMeta()
	if meta.ID == "" {
		id, err := c.newID()
		if err != nil {
			return zero, fmt.Errorf("%s: failed to generate id: %w", c.kind.Name, err)
		}
		meta.ID = id
	}
	if c.kind.Defaults != nil {
		c.kind.Defaults(item)
	}

	now := c.clock()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	return item, nil
}

// prepareReplace copies obj for an update, checks it is usable and fills
// fields the replacement left unset
func (c *core[T]) prepareReplace(obj T) (T, error) {
	var zero T
	if isNil(obj) {
		return zero, fmt.Errorf("%s: nil entity", c.kind.Name)
	}
	item := c.clone(obj)
	if c.kind.Defaults != nil {
		c.kind.Defaults(item)
	}
	return item, nil
}

// carryOver restores identity from prev and advances UpdatedAt strictly past it
func (c *core[T]) carryOver(prev, next T) {
	prevMeta := prev.GetObjectMeta()
	meta := next.GetObjectMeta()

	meta.ID = prevMeta.ID
	meta.CreatedAt = prevMeta.CreatedAt
	meta.UpdatedAt = nextUpdatedAt(c.clock(), prevMeta.UpdatedAt)
}

func nextUpdatedAt(now, prev time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

// committed runs after a mutation is visible: log, event and entity gauge.
// A zero at stamps the event when the broker receives it.
// recordCount publishes the entity count. Callers hold the store's write
// lock so concurrent commits cannot publish out of order.
func (c *core[T]) recordCount(n int) {
	metrics.EntitiesTotal.WithLabelValues(c.kind.Name).Set(float64(n))
}

func (c *core[T]) committed(action, id string, at time.Time) {
	c.logger.Debug().Str("id", id).Str("action", action).Msg("entity committed")

	if c.publisher != nil {
		c.publisher.Publish(&events.Event{
			Type:      events.TypeFor(c.kind.Name, action),
			Kind:      c.kind.Name,
			EntityID:  id,
			Timestamp: at,
		})
	}
}

func (c *core[T]) observe(op string, timer *metrics.Timer, err error) {
	metrics.RecordStoreOperation(c.kind.Name, op, resultOf(err), timer)
}

// sortByCreation orders entities by CreatedAt ascending, then ID ascending
func sortByCreation[T Object](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].GetObjectMeta(), items[j].GetObjectMeta()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// cloneAll deep copies stored entities into a caller-owned slice
func (c *core[T]) cloneAll(items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = c.clone(item)
	}
	return out
}
