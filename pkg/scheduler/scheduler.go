package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/log"
	"github.com/cuemby/virtplane/pkg/manager"
	"github.com/cuemby/virtplane/pkg/metrics"
	"github.com/cuemby/virtplane/pkg/repository"
	"github.com/cuemby/virtplane/pkg/types"
)

// ComponentName is the health registry name of the scheduler
const ComponentName = "scheduler"

// Scheduler places pending virtual machines on schedulable nodes
type Scheduler struct {
	manager  *manager.Manager
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Result summarizes one scheduling cycle
type Result struct {
	Scheduled     int
	Unschedulable int
}

// candidate is a node with the allocation the current cycle has already made on it
type candidate struct {
	node    *types.Node
	freeCPU int32
	freeMiB int64
	vmCount int
}

// NewScheduler creates a new scheduler using the manager's ScheduleInterval
func NewScheduler(mgr *manager.Manager) *Scheduler {
	return &Scheduler{
		manager:  mgr,
		interval: mgr.Config().ScheduleInterval,
		logger:   log.WithComponent(ComponentName),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	metrics.RegisterComponent(ComponentName, true, "")
	go s.run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.ScheduleOnce(); err != nil {
				s.logger.Error().Err(err).Msg("Scheduling cycle failed")
				metrics.UpdateComponent(ComponentName, false, err.Error())
				continue
			}
			metrics.UpdateComponent(ComponentName, true, "")
		case <-s.stopCh:
			return
		}
	}
}

// ScheduleOnce places every pending VM that fits somewhere, oldest first
func (s *Scheduler) ScheduleOnce() (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	s.mu.Lock()
	defer s.mu.Unlock()

	var result Result

	pending, err := s.manager.VMs().ListPending()
	if err != nil {
		return result, fmt.Errorf("failed to list pending VMs: %w", err)
	}
	if len(pending) == 0 {
		return result, nil
	}

	nodes, err := s.manager.Nodes().ListSchedulable()
	if err != nil {
		return result, fmt.Errorf("failed to list nodes: %w", err)
	}

	candidates := make([]*candidate, 0, len(nodes))
	for _, node := range nodes {
		count, err := s.manager.VMs().CountByNode(node.ID)
		if err != nil {
			return result, fmt.Errorf("failed to count VMs on node %s: %w", node.ID, err)
		}
		candidates = append(candidates, &candidate{
			node:    node,
			freeCPU: node.AvailableCPU(),
			freeMiB: node.AvailableMemory(),
			vmCount: count,
		})
	}

	for _, vm := range pending {
		c := selectNode(candidates, vm)
		if c == nil {
			result.Unschedulable++
			metrics.VMsUnschedulable.Inc()
			s.markUnschedulable(vm)
			continue
		}

		if err := s.place(vm, c.node); err != nil {
			s.logger.Warn().Err(err).Str("vm_id", vm.ID).Str("node_id", c.node.ID).Msg("Failed to place VM")
			continue
		}

		req := vm.ResourceRequest()
		c.freeCPU -= req.CPUCores
		c.freeMiB -= req.MemoryMiB
		c.vmCount++
		result.Scheduled++
		metrics.VMsScheduled.Inc()
	}

	return result, nil
}

// place reserves the VM's resources on the node, then records the placement
// on the VM. The reservation is released if the VM cannot be updated or is
// no longer pending.
func (s *Scheduler) place(vm *types.VirtualMachine, node *types.Node) error {
	req := vm.ResourceRequest()
	if _, err := s.manager.Nodes().Allocate(node.ID, vm.ID, req); err != nil {
		return fmt.Errorf("failed to allocate on node: %w", err)
	}

	_, placed, err := s.manager.VMs().Place(vm.ID, node.ID)
	if err == nil && !placed {
		err = errors.New("VM is no longer pending")
	}
	if err != nil {
		if _, relErr := s.manager.Nodes().Release(node.ID, vm.ID, req); relErr != nil {
			s.logger.Error().Err(relErr).Str("node_id", node.ID).Msg("Failed to release allocation")
		}
		return fmt.Errorf("failed to record placement: %w", err)
	}

	s.logger.Info().
		Str("vm_id", vm.ID).
		Str("vm", vm.Name).
		Str("node_id", node.ID).
		Str("hostname", node.Hostname).
		Msg("VM scheduled")
	s.manager.PublishEvent(&events.Event{
		Type:     events.EventVMScheduled,
		Kind:     repository.KindVirtualMachine,
		EntityID: vm.ID,
		Message:  fmt.Sprintf("scheduled on %s", node.Hostname),
		Metadata: map[string]string{"node_id": node.ID},
	})
	return nil
}

const unschedulableMessage = "no schedulable node has enough free capacity"

func (s *Scheduler) markUnschedulable(vm *types.VirtualMachine) {
	if vm.Status.Message == unschedulableMessage {
		return
	}
	if _, err := s.manager.VMs().MarkUnschedulable(vm.ID, unschedulableMessage); err != nil {
		s.logger.Warn().Err(err).Str("vm_id", vm.ID).Msg("Failed to record unschedulable VM")
	}
}

// selectNode picks the fitting node with the most free memory, then the
// fewest VMs, then the lowest ID
func selectNode(candidates []*candidate, vm *types.VirtualMachine) *candidate {
	req := vm.ResourceRequest()

	var best *candidate
	for _, c := range candidates {
		if !fits(c, req) || !matchesPlacement(c.node, vm.Spec.Placement) {
			continue
		}
		if best == nil || better(c, best) {
			best = c
		}
	}
	return best
}

func better(a, b *candidate) bool {
	if a.freeMiB != b.freeMiB {
		return a.freeMiB > b.freeMiB
	}
	if a.vmCount != b.vmCount {
		return a.vmCount < b.vmCount
	}
	return a.node.ID < b.node.ID
}

func fits(c *candidate, req types.Resources) bool {
	return c.freeMiB >= req.MemoryMiB && c.freeCPU >= req.CPUCores
}

// matchesPlacement checks cluster pinning and node label selection
func matchesPlacement(node *types.Node, placement *types.PlacementPolicy) bool {
	if placement == nil {
		return true
	}
	if placement.ClusterID != "" && placement.ClusterID != node.ClusterID {
		return false
	}
	for k, v := range placement.NodeSelector {
		if node.Labels[k] != v {
			return false
		}
	}
	return true
}
