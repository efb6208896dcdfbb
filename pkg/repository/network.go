package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// NetworkFilter selects virtual networks for List
type NetworkFilter struct {
	ProjectID    string
	NetworkType  types.NetworkType
	Phases       []types.NetworkPhase
	Labels       map[string]string
	NameContains string
}

var networkKind = storage.Kind[*types.VirtualNetwork]{
	Name: KindVirtualNetwork,
	Indexes: []storage.Index[*types.VirtualNetwork]{
		projectNameIndex(
			func(n *types.VirtualNetwork) string { return n.ProjectID },
			func(n *types.VirtualNetwork) string { return n.Name },
		),
	},
	Defaults: func(n *types.VirtualNetwork) {
		if n.Status.Phase == "" {
			n.Status.Phase = types.NetworkPhasePending
		}
		if n.Spec.MTU == 0 {
			n.Spec.MTU = types.DefaultMTU
		}
	},
}

var networkAccessors = storage.Accessors[*types.VirtualNetwork]{
	Scope:  func(n *types.VirtualNetwork) string { return n.ProjectID },
	Type:   func(n *types.VirtualNetwork) string { return string(n.Spec.Type) },
	Phase:  func(n *types.VirtualNetwork) string { return string(n.Status.Phase) },
	Labels: labelsOf[*types.VirtualNetwork],
	Name:   func(n *types.VirtualNetwork) string { return n.Name },
}

// VirtualNetworkRepository stores virtual networks, unique by (project, name)
type VirtualNetworkRepository struct {
	store storage.Store[*types.VirtualNetwork]
}

// NewVirtualNetworkRepository creates a network repository on a concurrent store
func NewVirtualNetworkRepository(opts ...storage.Option) *VirtualNetworkRepository {
	return &VirtualNetworkRepository{store: storage.NewConcurrentStore(networkKind, opts...)}
}

// Create stores a new network
func (r *VirtualNetworkRepository) Create(network *types.VirtualNetwork) (*types.VirtualNetwork, error) {
	return r.store.Create(network)
}

// Get returns a network by ID
func (r *VirtualNetworkRepository) Get(id string) (*types.VirtualNetwork, error) {
	return r.store.Get(id)
}

// GetByName returns a network by project and name
func (r *VirtualNetworkRepository) GetByName(projectID, name string) (*types.VirtualNetwork, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a network
func (r *VirtualNetworkRepository) Update(network *types.VirtualNetwork) (*types.VirtualNetwork, error) {
	return r.store.Update(network)
}

// UpdateStatus replaces only the status of a network
func (r *VirtualNetworkRepository) UpdateStatus(id string, status types.VirtualNetworkStatus) (*types.VirtualNetwork, error) {
	return r.store.Patch(id, func(n *types.VirtualNetwork) {
		n.Status = status
	})
}

// Delete removes a network
func (r *VirtualNetworkRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns a page of networks matching filter in creation order and the total match count
func (r *VirtualNetworkRepository) List(filter NetworkFilter, limit, offset int) ([]*types.VirtualNetwork, int, error) {
	items, total := offsetPage(r.store, storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Type:         string(filter.NetworkType),
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, networkAccessors), limit, offset)
	return items, total, nil
}

// Count returns the number of stored networks
func (r *VirtualNetworkRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies networks by phase
func (r *VirtualNetworkRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), networkAccessors.Phase)
}
