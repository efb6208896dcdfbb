package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// VolumeFilter selects volumes for List
type VolumeFilter struct {
	ProjectID    string
	PoolID       string
	AttachedVMID string
	Phases       []types.VolumePhase
	Labels       map[string]string
	NameContains string
}

var volumeKind = storage.Kind[*types.Volume]{
	Name: KindVolume,
	Indexes: []storage.Index[*types.Volume]{
		projectNameIndex(
			func(v *types.Volume) string { return v.ProjectID },
			func(v *types.Volume) string { return v.Name },
		),
	},
	Defaults: func(v *types.Volume) {
		if v.Status.Phase == "" {
			v.Status.Phase = types.VolumePhasePending
		}
		if v.Spec.Provisioning == "" {
			v.Spec.Provisioning = types.ProvisioningThin
		}
		if v.Spec.AccessMode == "" {
			v.Spec.AccessMode = types.AccessModeReadWriteOnce
		}
	},
}

var volumeAccessors = storage.Accessors[*types.Volume]{
	Scope:  func(v *types.Volume) string { return v.ProjectID },
	Phase:  func(v *types.Volume) string { return string(v.Status.Phase) },
	Labels: labelsOf[*types.Volume],
	Name:   func(v *types.Volume) string { return v.Name },
}

// VolumeRepository stores volumes, unique by (project, name)
type VolumeRepository struct {
	store storage.Store[*types.Volume]
}

// NewVolumeRepository creates a volume repository on a concurrent store
func NewVolumeRepository(opts ...storage.Option) *VolumeRepository {
	return &VolumeRepository{store: storage.NewConcurrentStore(volumeKind, opts...)}
}

// Create stores a new volume
func (r *VolumeRepository) Create(volume *types.Volume) (*types.Volume, error) {
	return r.store.Create(volume)
}

// Get returns a volume by ID
func (r *VolumeRepository) Get(id string) (*types.Volume, error) {
	return r.store.Get(id)
}

// GetByName returns a volume by project and name
func (r *VolumeRepository) GetByName(projectID, name string) (*types.Volume, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a volume
func (r *VolumeRepository) Update(volume *types.Volume) (*types.Volume, error) {
	return r.store.Update(volume)
}

// UpdateStatus replaces only the status of a volume
func (r *VolumeRepository) UpdateStatus(id string, status types.VolumeStatus) (*types.Volume, error) {
	return r.store.Patch(id, func(v *types.Volume) {
		v.Status = status
	})
}

// Delete removes a volume
func (r *VolumeRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns a page of volumes matching filter in creation order and the total match count
func (r *VolumeRepository) List(filter VolumeFilter, limit, offset int) ([]*types.Volume, int, error) {
	match := storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, volumeAccessors)
	if filter.PoolID != "" {
		poolID := filter.PoolID
		match = storage.And(match, func(v *types.Volume) bool { return v.PoolID == poolID })
	}
	if filter.AttachedVMID != "" {
		vmID := filter.AttachedVMID
		match = storage.And(match, func(v *types.Volume) bool { return v.Status.AttachedVMID == vmID })
	}

	items, total := offsetPage(r.store, match, limit, offset)
	return items, total, nil
}

// ListByPoolID returns the volumes carved from a pool
func (r *VolumeRepository) ListByPoolID(poolID string) ([]*types.Volume, error) {
	return r.store.List(func(v *types.Volume) bool { return v.PoolID == poolID }), nil
}

// ListByVMID returns the volumes attached to a VM
func (r *VolumeRepository) ListByVMID(vmID string) ([]*types.Volume, error) {
	return r.store.List(func(v *types.Volume) bool { return v.Status.AttachedVMID == vmID }), nil
}

// ListAttached returns every attached volume
func (r *VolumeRepository) ListAttached() ([]*types.Volume, error) {
	return r.store.List(func(v *types.Volume) bool { return v.IsAttached() }), nil
}

// Count returns the number of stored volumes
func (r *VolumeRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies volumes by phase
func (r *VolumeRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), volumeAccessors.Phase)
}
