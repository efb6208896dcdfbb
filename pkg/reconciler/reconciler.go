package reconciler

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/log"
	"github.com/cuemby/virtplane/pkg/manager"
	"github.com/cuemby/virtplane/pkg/metrics"
	"github.com/cuemby/virtplane/pkg/repository"
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// ComponentName is the health registry name of the reconciler
const ComponentName = "reconciler"

// Reconciler brings observed state back in line with what the stores say:
// silent nodes are marked NOT_READY, node VM lists are recomputed,
// attachments to deleted VMs are released and expired tokens are dropped
type Reconciler struct {
	manager          *manager.Manager
	interval         time.Duration
	heartbeatTimeout time.Duration
	logger           zerolog.Logger

	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Result summarizes one reconciliation cycle
type Result struct {
	NodesMarkedNotReady int
	NodesUpdated        int
	VMsRequeued         int
	VolumesDetached     int
	TokensRemoved       int
}

// NewReconciler creates a new reconciler using the manager's intervals
func NewReconciler(mgr *manager.Manager) *Reconciler {
	cfg := mgr.Config()
	return &Reconciler{
		manager:          mgr,
		interval:         cfg.ReconcileInterval,
		heartbeatTimeout: cfg.HeartbeatTimeout,
		logger:           log.WithComponent(ComponentName),
		stopCh:           make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	metrics.RegisterComponent(ComponentName, true, "")
	go r.run()
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// run is the main reconciliation loop
func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.ReconcileOnce(); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation cycle failed")
				metrics.UpdateComponent(ComponentName, false, err.Error())
				continue
			}
			metrics.UpdateComponent(ComponentName, true, "")
		case <-r.stopCh:
			return
		}
	}
}

// ReconcileOnce runs a single reconciliation cycle. Individual entity
// failures are logged and skipped; only listing failures abort the cycle.
func (r *Reconciler) ReconcileOnce() (Result, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	var result Result
	if err := r.reconcileNodes(&result); err != nil {
		return result, err
	}
	if err := r.reconcileVMs(&result); err != nil {
		return result, err
	}
	if err := r.reconcileVolumes(&result); err != nil {
		return result, err
	}

	removed, err := r.manager.TokenManager().CleanupExpiredTokens()
	if err != nil {
		return result, fmt.Errorf("failed to clean up tokens: %w", err)
	}
	result.TokensRemoved = removed

	if result != (Result{}) {
		r.logger.Info().
			Int("not_ready", result.NodesMarkedNotReady).
			Int("nodes_updated", result.NodesUpdated).
			Int("vms_requeued", result.VMsRequeued).
			Int("volumes_detached", result.VolumesDetached).
			Int("tokens_removed", result.TokensRemoved).
			Msg("Reconciliation cycle changed state")
	}
	return result, nil
}

// reconcileNodes marks nodes with stale heartbeats NOT_READY and refreshes
// each node's VM list. Both writes patch the stored node, so allocations and
// heartbeats that land after the listing are kept.
func (r *Reconciler) reconcileNodes(result *Result) error {
	nodes, err := r.manager.Nodes().List(repository.NodeFilter{})
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	now := r.manager.Now()
	cutoff := now.Add(-r.heartbeatTimeout)
	for _, node := range nodes {
		updated := false

		vms, err := r.manager.VMs().ListByNode(node.ID)
		if err != nil {
			r.logger.Warn().Err(err).Str("node_id", node.ID).Msg("Failed to list VMs for node")
			continue
		}
		vmIDs := make([]string, len(vms))
		for i, vm := range vms {
			vmIDs[i] = vm.ID
		}
		if !slices.Equal(vmIDs, node.Status.VMIDs) {
			if _, err := r.manager.Nodes().SetVMIDs(node.ID, vmIDs); err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					r.logger.Warn().Err(err).Str("node_id", node.ID).Msg("Failed to update node VM list")
				}
				continue
			}
			updated = true
		}

		if node.MissedHeartbeat(cutoff) {
			silence := now.Sub(node.LastSeen())
			_, marked, err := r.manager.Nodes().MarkNotReady(node.ID, cutoff, types.NodeCondition{
				Type:       types.NodeConditionHeartbeat,
				Status:     "False",
				Reason:     "HeartbeatTimeout",
				Message:    fmt.Sprintf("no heartbeat for %s", silence.Truncate(time.Second)),
				LastUpdate: now,
			})
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				r.logger.Warn().Err(err).Str("node_id", node.ID).Msg("Failed to mark node NOT_READY")
			}
			if marked {
				updated = true
				result.NodesMarkedNotReady++
				metrics.NodesMarkedNotReady.Inc()
				r.logger.Warn().
					Str("node_id", node.ID).
					Str("hostname", node.Hostname).
					Dur("silence", silence).
					Msg("Node missed heartbeats, marked NOT_READY")
				r.manager.PublishEvent(&events.Event{
					Type:     events.EventNodeNotReady,
					Kind:     repository.KindNode,
					EntityID: node.ID,
					Message:  fmt.Sprintf("node %s missed heartbeats", node.Hostname),
				})
			}
		}

		if updated {
			result.NodesUpdated++
		}
	}

	return nil
}

// reconcileVMs returns VMs placed on deleted nodes to the pending queue
func (r *Reconciler) reconcileVMs(result *Result) error {
	vms, _, err := r.manager.VMs().List(repository.VMFilter{}, 0, "")
	if err != nil {
		return fmt.Errorf("failed to list virtual machines: %w", err)
	}

	for _, vm := range vms {
		if vm.Status.NodeID == "" {
			continue
		}
		_, err := r.manager.Nodes().Get(vm.Status.NodeID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn().Err(err).Str("vm_id", vm.ID).Msg("Failed to look up VM node")
			continue
		}

		if _, err := r.manager.VMs().Requeue(vm.ID, vm.Status.NodeID, fmt.Sprintf("node %s no longer exists", vm.Status.NodeID)); err != nil {
			r.logger.Warn().Err(err).Str("vm_id", vm.ID).Msg("Failed to requeue VM")
			continue
		}
		result.VMsRequeued++
	}

	return nil
}

// reconcileVolumes detaches volumes whose VM has been deleted
func (r *Reconciler) reconcileVolumes(result *Result) error {
	attached, err := r.manager.Volumes().ListAttached()
	if err != nil {
		return fmt.Errorf("failed to list attached volumes: %w", err)
	}

	for _, volume := range attached {
		vmID := volume.Status.AttachedVMID
		_, err := r.manager.VMs().Get(vmID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn().Err(err).Str("volume_id", volume.ID).Msg("Failed to look up volume VM")
			continue
		}

		detached, err := r.manager.DetachOrphanedVolume(volume.ID, vmID)
		if err != nil {
			r.logger.Warn().Err(err).Str("volume_id", volume.ID).Msg("Failed to detach orphaned volume")
			continue
		}
		if detached {
			result.VolumesDetached++
			metrics.OrphanedVolumesDetached.Inc()
		}
	}

	return nil
}
