package manager

import (
	"sync"
	"time"

	"github.com/cuemby/virtplane/pkg/metrics"
)

// MetricsCollector periodically publishes entity counts by kind and phase
type MetricsCollector struct {
	manager  *Manager
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMetricsCollector creates a new metrics collector using the manager's MetricsInterval
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager:  mgr,
		interval: mgr.Config().MetricsInterval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Collect sets the per-phase entity gauges from the current store contents.
// Phases that no longer have entities are dropped.
func (c *MetricsCollector) Collect() {
	counts := c.manager.PhaseCounts()

	metrics.EntitiesByPhase.Reset()
	for kind, phases := range counts {
		for phase, count := range phases {
			metrics.EntitiesByPhase.WithLabelValues(kind, phase).Set(float64(count))
		}
	}
}
