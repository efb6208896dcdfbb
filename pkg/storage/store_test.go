package storage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/metrics"
	"github.com/cuemby/virtplane/pkg/types"
)

type widget struct {
	types.ObjectMeta
	Scope  string
	Name   string
	Serial string
	Tags   []string
	Status widgetStatus
}

type widgetStatus struct {
	Phase string
	Seen  *time.Time
}

var widgetKind = Kind[*widget]{
	Name: "widget",
	Indexes: []Index[*widget]{
		{Name: "name", Key: func(w *widget) Key { return ScopedKey(w.Scope, w.Name) }},
		{Name: "serial", Key: func(w *widget) Key { return GlobalKey(w.Serial) }},
	},
	Defaults: func(w *widget) {
		if w.Status.Phase == "" {
			w.Status.Phase = "PENDING"
		}
	},
}

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(ev *events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// StoreContractSuite runs the same behavioural contract against every Store implementation
type StoreContractSuite struct {
	suite.Suite
	newStore func(opts ...Option) Store[*widget]
	clock    *fakeClock
	store    Store[*widget]
}

func (s *StoreContractSuite) SetupTest() {
	s.clock = newFakeClock(time.Second)
	s.store = s.newStore(WithClock(s.clock.Now))
}

func (s *StoreContractSuite) mustCreate(scope, name, serial string) *widget {
	w, err := s.store.Create(&widget{Scope: scope, Name: name, Serial: serial})
	s.Require().NoError(err)
	return w
}

func (s *StoreContractSuite) TestCreateAssignsIdentity() {
	w, err := s.store.Create(&widget{Scope: "p1", Name: "a", Serial: "s1"})
	s.Require().NoError(err)

	s.NotEmpty(w.ID)
	s.False(w.CreatedAt.IsZero())
	s.Equal(w.CreatedAt, w.UpdatedAt)
	s.Equal("PENDING", w.Status.Phase)
	s.Equal(1, s.store.Len())
}

func (s *StoreContractSuite) TestCreateKeepsSuppliedID() {
	w, err := s.store.Create(&widget{ObjectMeta: types.ObjectMeta{ID: "fixed"}, Name: "a", Serial: "s1"})
	s.Require().NoError(err)
	s.Equal("fixed", w.ID)

	_, err = s.store.Create(&widget{ObjectMeta: types.ObjectMeta{ID: "fixed"}, Name: "b", Serial: "s2"})
	s.ErrorIs(err, ErrAlreadyExists)
	s.Equal(1, s.store.Len())
}

func (s *StoreContractSuite) TestCreateOverwritesCallerTimestamps() {
	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	w, err := s.store.Create(&widget{ObjectMeta: types.ObjectMeta{CreatedAt: past, UpdatedAt: past}, Name: "a", Serial: "s1"})
	s.Require().NoError(err)
	s.NotEqual(past, w.CreatedAt)
	s.Equal(w.CreatedAt, w.UpdatedAt)
}

func (s *StoreContractSuite) TestUniquenessIsScoped() {
	s.mustCreate("p1", "a", "s1")

	_, err := s.store.Create(&widget{Scope: "p1", Name: "a", Serial: "s2"})
	s.ErrorIs(err, ErrAlreadyExists)

	_, err = s.store.Create(&widget{Scope: "p2", Name: "a", Serial: "s3"})
	s.NoError(err)
	s.Equal(2, s.store.Len())
}

func (s *StoreContractSuite) TestFailedCreateReleasesClaims() {
	s.mustCreate("p1", "a", "s1")

	// name is free, serial is taken: nothing may be claimed
	_, err := s.store.Create(&widget{Scope: "p1", Name: "b", Serial: "s1"})
	s.Require().ErrorIs(err, ErrAlreadyExists)

	_, err = s.store.Lookup("name", ScopedKey("p1", "b"))
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.Create(&widget{Scope: "p1", Name: "b", Serial: "s2"})
	s.NoError(err)
}

func (s *StoreContractSuite) TestKeysWithNULDoNotCollide() {
	s.mustCreate("a\x00b", "c", "s1")

	_, err := s.store.Create(&widget{Scope: "a", Name: "b\x00c", Serial: "s2"})
	s.Require().NoError(err)

	got, err := s.store.Lookup("name", ScopedKey("a", "b\x00c"))
	s.Require().NoError(err)
	s.Equal("s2", got.Serial)

	got, err = s.store.Lookup("name", ScopedKey("a\x00b", "c"))
	s.Require().NoError(err)
	s.Equal("s1", got.Serial)
}

func (s *StoreContractSuite) TestCopyIsolation() {
	in := &widget{Scope: "p1", Name: "a", Serial: "s1", Tags: []string{"x"}}
	in.Labels = map[string]string{"env": "prod"}

	out, err := s.store.Create(in)
	s.Require().NoError(err)

	in.Labels["env"] = "dev"
	in.Tags[0] = "changed"
	out.Labels["env"] = "test"
	out.Tags = append(out.Tags, "y")
	out.Name = "mutated"

	got, err := s.store.Get(out.ID)
	s.Require().NoError(err)
	s.Equal("prod", got.Labels["env"])
	s.Equal([]string{"x"}, got.Tags)
	s.Equal("a", got.Name)

	listed := s.store.List(nil)
	s.Require().Len(listed, 1)
	listed[0].Labels["env"] = "listed"

	again, err := s.store.Get(out.ID)
	s.Require().NoError(err)
	s.Equal("prod", again.Labels["env"])
}

func (s *StoreContractSuite) TestGetNotFound() {
	_, err := s.store.Get("missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreContractSuite) TestUpdatePreservesCreatedAt() {
	w := s.mustCreate("p1", "a", "s1")

	w.Tags = []string{"new"}
	w.CreatedAt = time.Time{}
	updated, err := s.store.Update(w)
	s.Require().NoError(err)

	created, err := s.store.Get(w.ID)
	s.Require().NoError(err)
	s.Equal(created.CreatedAt, updated.CreatedAt)
	s.False(updated.CreatedAt.IsZero())
	s.True(updated.UpdatedAt.After(updated.CreatedAt))
	s.Equal([]string{"new"}, created.Tags)
}

func (s *StoreContractSuite) TestUpdatedAtStrictlyIncreasesWithFrozenClock() {
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = s.newStore(WithClock(func() time.Time { return frozen }))

	w := s.mustCreate("p1", "a", "s1")
	prev := w.UpdatedAt
	for i := 0; i < 3; i++ {
		next, err := s.store.Patch(w.ID, func(w *widget) { w.Status.Phase = fmt.Sprintf("P%d", i) })
		s.Require().NoError(err)
		s.True(next.UpdatedAt.After(prev), "iteration %d", i)
		s.Equal(frozen, next.CreatedAt)
		prev = next.UpdatedAt
	}
}

func (s *StoreContractSuite) TestUpdateFillsDefaults() {
	w := s.mustCreate("p1", "a", "s1")

	w.Status.Phase = ""
	updated, err := s.store.Update(w)
	s.Require().NoError(err)
	s.Equal("PENDING", updated.Status.Phase)

	w.Status.Phase = "READY"
	updated, err = s.store.Update(w)
	s.Require().NoError(err)
	s.Equal("READY", updated.Status.Phase)
}

func (s *StoreContractSuite) TestUpdateNotFound() {
	_, err := s.store.Update(&widget{ObjectMeta: types.ObjectMeta{ID: "missing"}, Name: "a"})
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreContractSuite) TestRenameConflictLeavesStoreUntouched() {
	s.mustCreate("p1", "a", "s1")
	b := s.mustCreate("p1", "b", "s2")

	renamed := *b
	renamed.Name = "a"
	_, err := s.store.Update(&renamed)
	s.Require().ErrorIs(err, ErrAlreadyExists)

	got, err := s.store.Get(b.ID)
	s.Require().NoError(err)
	s.Equal("b", got.Name)
	s.Equal(b.UpdatedAt, got.UpdatedAt)

	byName, err := s.store.Lookup("name", ScopedKey("p1", "b"))
	s.Require().NoError(err)
	s.Equal(b.ID, byName.ID)
}

func (s *StoreContractSuite) TestRenameMovesIndexEntry() {
	w := s.mustCreate("p1", "a", "s1")

	w.Name = "z"
	w.Serial = "s9"
	_, err := s.store.Update(w)
	s.Require().NoError(err)

	_, err = s.store.Lookup("name", ScopedKey("p1", "a"))
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.Lookup("serial", GlobalKey("s1"))
	s.ErrorIs(err, ErrNotFound)

	got, err := s.store.Lookup("name", ScopedKey("p1", "z"))
	s.Require().NoError(err)
	s.Equal(w.ID, got.ID)

	// The old key is free again
	s.mustCreate("p1", "a", "s1")
}

func (s *StoreContractSuite) TestSwapKeysThroughFreeName() {
	a := s.mustCreate("p1", "a", "s1")
	b := s.mustCreate("p1", "b", "s2")

	a.Name = "tmp"
	_, err := s.store.Update(a)
	s.Require().NoError(err)
	b.Name = "a"
	_, err = s.store.Update(b)
	s.Require().NoError(err)
	a.Name = "b"
	_, err = s.store.Update(a)
	s.Require().NoError(err)

	got, err := s.store.Lookup("name", ScopedKey("p1", "a"))
	s.Require().NoError(err)
	s.Equal(b.ID, got.ID)
	got, err = s.store.Lookup("name", ScopedKey("p1", "b"))
	s.Require().NoError(err)
	s.Equal(a.ID, got.ID)
}

func (s *StoreContractSuite) TestPatchTouchesOnlyMutatedFields() {
	w := s.mustCreate("p1", "a", "s1")
	seen := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	patched, err := s.store.Patch(w.ID, func(w *widget) {
		w.Status = widgetStatus{Phase: "READY", Seen: &seen}
		w.ID = "hijacked"
		w.CreatedAt = time.Time{}
	})
	s.Require().NoError(err)

	s.Equal(w.ID, patched.ID)
	s.Equal(w.CreatedAt, patched.CreatedAt)
	s.Equal("READY", patched.Status.Phase)

	want := *w
	want.Status = patched.Status
	want.UpdatedAt = patched.UpdatedAt
	s.Empty(cmp.Diff(&want, patched))

	_, err = s.store.Get("hijacked")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreContractSuite) TestPatchRetainedReferenceCannotReachStore() {
	w := s.mustCreate("p1", "a", "s1")

	var kept *widget
	_, err := s.store.Patch(w.ID, func(w *widget) {
		w.Tags = []string{"one"}
		kept = w
	})
	s.Require().NoError(err)

	kept.Tags[0] = "leaked"
	got, err := s.store.Get(w.ID)
	s.Require().NoError(err)
	s.Equal([]string{"one"}, got.Tags)
}

func (s *StoreContractSuite) TestPatchNotFound() {
	called := false
	_, err := s.store.Patch("missing", func(*widget) { called = true })
	s.ErrorIs(err, ErrNotFound)
	s.False(called)
}

func (s *StoreContractSuite) TestDelete() {
	w := s.mustCreate("p1", "a", "s1")

	s.Require().NoError(s.store.Delete(w.ID))
	_, err := s.store.Get(w.ID)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.store.Delete(w.ID), ErrNotFound)
	s.Equal(0, s.store.Len())

	_, err = s.store.Lookup("name", ScopedKey("p1", "a"))
	s.ErrorIs(err, ErrNotFound)
	s.mustCreate("p1", "a", "s1")
}

func (s *StoreContractSuite) TestLookupUnknownIndex() {
	_, err := s.store.Lookup("nope", GlobalKey("x"))
	s.Require().Error(err)
	s.False(errors.Is(err, ErrNotFound))
}

func (s *StoreContractSuite) TestListOrderAndFilter() {
	c := s.mustCreate("p1", "c", "s3")
	a := s.mustCreate("p2", "a", "s1")
	b := s.mustCreate("p1", "b", "s2")

	all := s.store.List(nil)
	s.Require().Len(all, 3)
	s.Equal([]string{c.ID, a.ID, b.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	p1 := s.store.List(func(w *widget) bool { return w.Scope == "p1" })
	s.Require().Len(p1, 2)
	s.Equal(c.ID, p1[0].ID)
	s.Equal(b.ID, p1[1].ID)
}

func (s *StoreContractSuite) TestListTieBreaksOnID() {
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = s.newStore(WithClock(func() time.Time { return frozen }))

	for _, id := range []string{"c", "a", "b"} {
		_, err := s.store.Create(&widget{ObjectMeta: types.ObjectMeta{ID: id}, Name: id, Serial: id})
		s.Require().NoError(err)
	}

	all := s.store.List(nil)
	s.Require().Len(all, 3)
	s.Equal("a", all[0].ID)
	s.Equal("b", all[1].ID)
	s.Equal("c", all[2].ID)
}

func (s *StoreContractSuite) TestIDGeneratorFailurePropagates() {
	boom := errors.New("entropy exhausted")
	s.store = s.newStore(WithIDGenerator(func() (string, error) { return "", boom }))

	_, err := s.store.Create(&widget{Name: "a", Serial: "s1"})
	s.ErrorIs(err, boom)
	s.False(errors.Is(err, ErrAlreadyExists))
	s.Equal(0, s.store.Len())
}

func (s *StoreContractSuite) TestNilEntityRejected() {
	_, err := s.store.Create(nil)
	s.Error(err)
	_, err = s.store.Update(nil)
	s.Error(err)
}

func (s *StoreContractSuite) TestEventsPublishedOnCommitOnly() {
	pub := &recordingPublisher{}
	s.store = s.newStore(WithPublisher(pub))

	w := s.mustCreate("p1", "a", "s1")
	_, err := s.store.Create(&widget{Scope: "p1", Name: "a", Serial: "s2"})
	s.Require().Error(err)
	_, err = s.store.Patch(w.ID, func(w *widget) { w.Status.Phase = "READY" })
	s.Require().NoError(err)
	s.Require().NoError(s.store.Delete(w.ID))
	s.Require().Error(s.store.Delete(w.ID))

	s.Equal([]events.EventType{"widget.created", "widget.updated", "widget.deleted"}, pub.types())
}

func (s *StoreContractSuite) TestConcurrentDuplicateCreates() {
	const workers = 64
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := s.store.Create(&widget{Scope: "p1", Name: "same", Serial: fmt.Sprintf("s%d", i)})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyExists):
				conflicts.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(workers-1), conflicts.Load())
	s.Equal(1, s.store.Len())

	// Losers must not leave serial claims behind
	for i := 0; i < workers; i++ {
		_, err := s.store.Create(&widget{Scope: "p2", Name: fmt.Sprintf("n%d", i), Serial: fmt.Sprintf("s%d", i)})
		if err != nil {
			s.ErrorIs(err, ErrAlreadyExists)
		}
	}
	s.Equal(workers, s.store.Len())
}

func (s *StoreContractSuite) TestConcurrentMixedOperations() {
	seed := make([]*widget, 8)
	for i := range seed {
		seed[i] = s.mustCreate("p1", fmt.Sprintf("w%d", i), fmt.Sprintf("s%d", i))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				w := seed[(g+i)%len(seed)]
				switch i % 5 {
				case 0:
					_, _ = s.store.Patch(w.ID, func(w *widget) { w.Status.Phase = "READY" })
				case 1:
					_, _ = s.store.Get(w.ID)
				case 2:
					_ = s.store.List(func(w *widget) bool { return w.Status.Phase == "READY" })
				case 3:
					_, _ = s.store.Lookup("name", ScopedKey("p1", w.Name))
				case 4:
					_, _ = s.store.Create(&widget{Scope: "p2", Name: fmt.Sprintf("g%d-%d", g, i), Serial: fmt.Sprintf("g%d-%d", g, i)})
				}
			}
		}(g)
	}
	wg.Wait()

	for _, w := range seed {
		got, err := s.store.Lookup("name", ScopedKey("p1", w.Name))
		s.Require().NoError(err)
		s.Equal(w.ID, got.ID)
	}
}

func (s *StoreContractSuite) TestEntityGaugeTracksConcurrentWrites() {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				w, err := s.store.Create(&widget{Scope: "p1", Name: fmt.Sprintf("g%d-%d", g, i), Serial: fmt.Sprintf("g%d-%d", g, i)})
				if err == nil && i%2 == 0 {
					_ = s.store.Delete(w.ID)
				}
			}
		}(g)
	}
	wg.Wait()

	s.Equal(80, s.store.Len())
	s.Equal(float64(s.store.Len()), testutil.ToFloat64(metrics.EntitiesTotal.WithLabelValues(widgetKind.Name)))
}

func (s *StoreContractSuite) TestLookupNeverReturnsStaleKey() {
	w := s.mustCreate("p1", "a", "s1")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		names := []string{"a", "b"}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = s.store.Patch(w.ID, func(w *widget) { w.Name = names[i%2] })
		}
	}()

	for i := 0; i < 500; i++ {
		for _, name := range []string{"a", "b"} {
			got, err := s.store.Lookup("name", ScopedKey("p1", name))
			if err == nil {
				s.Equal(name, got.Name)
			} else {
				s.ErrorIs(err, ErrNotFound)
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestMemoryStoreContract(t *testing.T) {
	suite.Run(t, &StoreContractSuite{
		newStore: func(opts ...Option) Store[*widget] { return NewMemoryStore(widgetKind, opts...) },
	})
}

func TestConcurrentStoreContract(t *testing.T) {
	suite.Run(t, &StoreContractSuite{
		newStore: func(opts ...Option) Store[*widget] { return NewConcurrentStore(widgetKind, opts...) },
	})
}

func TestNextUpdatedAt(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Second), nextUpdatedAt(base.Add(time.Second), base))
	assert.Equal(t, base.Add(time.Nanosecond), nextUpdatedAt(base, base))
	assert.Equal(t, base.Add(time.Nanosecond), nextUpdatedAt(base.Add(-time.Hour), base))
}

func TestNewUUID(t *testing.T) {
	id, err := NewUUID()
	require.NoError(t, err)
	assert.Len(t, id, 36)

	other, err := NewUUID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
