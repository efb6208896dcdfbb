package repository

import (
	"slices"
	"time"

	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// NodeFilter selects nodes for List
type NodeFilter struct {
	ClusterID    string
	Phases       []types.NodePhase
	Labels       map[string]string
	NameContains string
	ComputeOnly  bool
}

var nodeKind = storage.Kind[*types.Node]{
	Name: KindNode,
	Indexes: []storage.Index[*types.Node]{
		{Name: IndexHostname, Key: func(n *types.Node) storage.Key { return storage.GlobalKey(n.Hostname) }},
	},
	Defaults: func(n *types.Node) {
		if n.Status.Phase == "" {
			n.Status.Phase = types.NodePhasePending
		}
		if n.Status.Allocatable == (types.Resources{}) {
			n.Status.Allocatable = n.Spec.Capacity()
		}
	},
}

var nodeAccessors = storage.Accessors[*types.Node]{
	Scope:  func(n *types.Node) string { return n.ClusterID },
	Phase:  func(n *types.Node) string { return string(n.Status.Phase) },
	Labels: labelsOf[*types.Node],
	Name:   func(n *types.Node) string { return n.Hostname },
}

// NodeRepository stores hypervisor nodes, unique by hostname
type NodeRepository struct {
	store storage.Store[*types.Node]
	clock func() time.Time
}

// NewNodeRepository creates a node repository on a lock-guarded store
func NewNodeRepository(opts ...storage.Option) *NodeRepository {
	return &NodeRepository{
		store: storage.NewMemoryStore(nodeKind, opts...),
		clock: storage.NewConfig(opts...).Clock,
	}
}

// Create stores a new node
func (r *NodeRepository) Create(node *types.Node) (*types.Node, error) {
	return r.store.Create(node)
}

// Get returns a node by ID
func (r *NodeRepository) Get(id string) (*types.Node, error) {
	return r.store.Get(id)
}

// GetByHostname returns a node by hostname
func (r *NodeRepository) GetByHostname(hostname string) (*types.Node, error) {
	return r.store.Lookup(IndexHostname, storage.GlobalKey(hostname))
}

// Update replaces a node
func (r *NodeRepository) Update(node *types.Node) (*types.Node, error) {
	return r.store.Update(node)
}

// UpdateStatus replaces only the status of a node
func (r *NodeRepository) UpdateStatus(id string, status types.NodeStatus) (*types.Node, error) {
	return r.store.Patch(id, func(n *types.Node) {
		n.Status = status
	})
}

// UpdateHeartbeat records a heartbeat and the resources currently allocated on
// the node. A PENDING or NOT_READY node becomes READY; maintenance, draining
// and error phases are kept.
func (r *NodeRepository) UpdateHeartbeat(id string, allocated types.Resources) (*types.Node, error) {
	now := r.clock()
	return r.store.Patch(id, func(n *types.Node) {
		n.LastHeartbeat = &now
		n.Status.Allocated = allocated

		switch n.Status.Phase {
		case types.NodePhasePending, types.NodePhaseUnknown:
			n.Status.Phase = types.NodePhaseReady
		case types.NodePhaseNotReady:
			n.Status.Phase = types.NodePhaseReady
			n.Status.SetCondition(types.NodeCondition{
				Type:       types.NodeConditionHeartbeat,
				Status:     "True",
				Reason:     "HeartbeatRestored",
				Message:    "node reconnected",
				LastUpdate: now,
			})
		}
	})
}

// MarkNotReady moves a node to NOT_READY and records cond, unless the node
// heartbeated after cutoff or is no longer in a phase that expects
// heartbeats. It reports whether the node was marked.
func (r *NodeRepository) MarkNotReady(id string, cutoff time.Time, cond types.NodeCondition) (*types.Node, bool, error) {
	marked := false
	node, err := r.store.Patch(id, func(n *types.Node) {
		if !n.MissedHeartbeat(cutoff) {
			return
		}
		n.Status.Phase = types.NodePhaseNotReady
		n.Status.SetCondition(cond)
		marked = true
	})
	return node, marked, err
}

// SetVMIDs replaces the list of VMs recorded on a node, leaving the rest of
// its status as stored
func (r *NodeRepository) SetVMIDs(id string, vmIDs []string) (*types.Node, error) {
	return r.store.Patch(id, func(n *types.Node) {
		n.Status.VMIDs = vmIDs
	})
}

// Allocate adds resources to the node's allocation and records vmID on it
func (r *NodeRepository) Allocate(id, vmID string, res types.Resources) (*types.Node, error) {
	return r.store.Patch(id, func(n *types.Node) {
		n.Status.Allocated = addResources(n.Status.Allocated, res, 1)
		if !slices.Contains(n.Status.VMIDs, vmID) {
			n.Status.VMIDs = append(n.Status.VMIDs, vmID)
		}
	})
}

// Release returns resources from the node's allocation and forgets vmID
func (r *NodeRepository) Release(id, vmID string, res types.Resources) (*types.Node, error) {
	return r.store.Patch(id, func(n *types.Node) {
		n.Status.Allocated = addResources(n.Status.Allocated, res, -1)
		n.Status.VMIDs = slices.DeleteFunc(n.Status.VMIDs, func(v string) bool { return v == vmID })
	})
}

func addResources(a, b types.Resources, sign int) types.Resources {
	return types.Resources{
		CPUCores:   max(0, a.CPUCores+int32(sign)*b.CPUCores),
		MemoryMiB:  max(0, a.MemoryMiB+int64(sign)*b.MemoryMiB),
		StorageGiB: max(0, a.StorageGiB+int64(sign)*b.StorageGiB),
		GPUCount:   max(0, a.GPUCount+int32(sign)*b.GPUCount),
	}
}

// Delete removes a node
func (r *NodeRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns nodes matching filter in creation order
func (r *NodeRepository) List(filter NodeFilter) ([]*types.Node, error) {
	match := storage.Compile(storage.Criteria{
		Scope:        filter.ClusterID,
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, nodeAccessors)
	if filter.ComputeOnly {
		match = storage.And(match, func(n *types.Node) bool { return n.Spec.Role.Compute })
	}
	return r.store.List(match), nil
}

// ListSchedulable returns ready compute nodes
func (r *NodeRepository) ListSchedulable() ([]*types.Node, error) {
	return r.store.List(func(n *types.Node) bool { return n.IsSchedulable() }), nil
}

// ListByCluster returns the nodes of a cluster
func (r *NodeRepository) ListByCluster(clusterID string) ([]*types.Node, error) {
	return r.store.List(func(n *types.Node) bool { return n.ClusterID == clusterID }), nil
}

// Count returns the number of stored nodes
func (r *NodeRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies nodes by phase
func (r *NodeRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), nodeAccessors.Phase)
}
