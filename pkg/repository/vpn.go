package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// VpnServiceFilter selects VPN services for List
type VpnServiceFilter struct {
	ProjectID    string
	NetworkID    string
	Type         types.VpnType
	Phases       []types.NetworkPhase
	Labels       map[string]string
	NameContains string
}

var vpnKind = storage.Kind[*types.VpnService]{
	Name: KindVpnService,
	Indexes: []storage.Index[*types.VpnService]{
		projectNameIndex(
			func(v *types.VpnService) string { return v.ProjectID },
			func(v *types.VpnService) string { return v.Name },
		),
	},
	Defaults: func(v *types.VpnService) {
		if v.Status.Phase == "" {
			v.Status.Phase = types.NetworkPhasePending
		}
		if v.Spec.Type == "" {
			v.Spec.Type = types.VpnTypeWireGuard
		}
	},
}

var vpnAccessors = storage.Accessors[*types.VpnService]{
	Scope:  func(v *types.VpnService) string { return v.ProjectID },
	Type:   func(v *types.VpnService) string { return string(v.Spec.Type) },
	Phase:  func(v *types.VpnService) string { return string(v.Status.Phase) },
	Labels: labelsOf[*types.VpnService],
	Name:   func(v *types.VpnService) string { return v.Name },
}

// VpnServiceRepository stores VPN services, unique by (project, name)
type VpnServiceRepository struct {
	store storage.Store[*types.VpnService]
}

// NewVpnServiceRepository creates a VPN repository on a concurrent store
func NewVpnServiceRepository(opts ...storage.Option) *VpnServiceRepository {
	return &VpnServiceRepository{store: storage.NewConcurrentStore(vpnKind, opts...)}
}

// Create stores a new VPN service
func (r *VpnServiceRepository) Create(vpn *types.VpnService) (*types.VpnService, error) {
	return r.store.Create(vpn)
}

// Get returns a VPN service by ID
func (r *VpnServiceRepository) Get(id string) (*types.VpnService, error) {
	return r.store.Get(id)
}

// GetByName returns a VPN service by project and name
func (r *VpnServiceRepository) GetByName(projectID, name string) (*types.VpnService, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a VPN service
func (r *VpnServiceRepository) Update(vpn *types.VpnService) (*types.VpnService, error) {
	return r.store.Update(vpn)
}

// UpdateStatus replaces only the status of a VPN service
func (r *VpnServiceRepository) UpdateStatus(id string, status types.VpnServiceStatus) (*types.VpnService, error) {
	return r.store.Patch(id, func(v *types.VpnService) {
		v.Status = status
	})
}

// AddConnection appends a remote peer connection
func (r *VpnServiceRepository) AddConnection(id string, conn types.VpnConnection) (*types.VpnService, error) {
	return r.store.Patch(id, func(v *types.VpnService) {
		v.Spec.Connections = append(v.Spec.Connections, conn)
	})
}

// RemoveConnection drops the connection with the given name
func (r *VpnServiceRepository) RemoveConnection(id, name string) (*types.VpnService, error) {
	return r.store.Patch(id, func(v *types.VpnService) {
		conns := v.Spec.Connections[:0]
		for _, c := range v.Spec.Connections {
			if c.Name != name {
				conns = append(conns, c)
			}
		}
		v.Spec.Connections = conns
	})
}

// Delete removes a VPN service
func (r *VpnServiceRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns a page of VPN services matching filter in creation order and the total match count
func (r *VpnServiceRepository) List(filter VpnServiceFilter, limit, offset int) ([]*types.VpnService, int, error) {
	match := storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Type:         string(filter.Type),
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, vpnAccessors)
	if filter.NetworkID != "" {
		networkID := filter.NetworkID
		match = storage.And(match, func(v *types.VpnService) bool { return v.NetworkID == networkID })
	}

	items, total := offsetPage(r.store, match, limit, offset)
	return items, total, nil
}

// ListByNetwork returns the VPN services on a network
func (r *VpnServiceRepository) ListByNetwork(networkID string) ([]*types.VpnService, error) {
	return r.store.List(func(v *types.VpnService) bool { return v.NetworkID == networkID }), nil
}

// Count returns the number of stored VPN services
func (r *VpnServiceRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies VPN services by phase
func (r *VpnServiceRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), vpnAccessors.Phase)
}
