package repository

import (
	"sync"
	"time"

	"github.com/cuemby/virtplane/pkg/storage"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// steppingClock advances by step on every read
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: epoch, step: time.Second}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func clockOpt() storage.Option {
	return storage.WithClock(newSteppingClock().Now)
}

func ids[T storage.Object](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.GetObjectMeta().ID
	}
	return out
}
