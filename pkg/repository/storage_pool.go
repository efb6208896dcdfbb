package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// PoolFilter selects storage pools for List
type PoolFilter struct {
	ProjectID    string
	BackendType  types.BackendType
	Phases       []types.StoragePoolPhase
	Labels       map[string]string
	NameContains string
}

var poolKind = storage.Kind[*types.StoragePool]{
	Name: KindStoragePool,
	Indexes: []storage.Index[*types.StoragePool]{
		projectNameIndex(
			func(p *types.StoragePool) string { return p.ProjectID },
			func(p *types.StoragePool) string { return p.Name },
		),
	},
	Defaults: func(p *types.StoragePool) {
		if p.Status.Phase == "" {
			p.Status.Phase = types.StoragePoolPhasePending
		}
	},
}

var poolAccessors = storage.Accessors[*types.StoragePool]{
	Scope:  func(p *types.StoragePool) string { return p.ProjectID },
	Type:   func(p *types.StoragePool) string { return string(p.Spec.Backend.Type) },
	Phase:  func(p *types.StoragePool) string { return string(p.Status.Phase) },
	Labels: labelsOf[*types.StoragePool],
	Name:   func(p *types.StoragePool) string { return p.Name },
}

// StoragePoolRepository stores storage pools, unique by (project, name)
type StoragePoolRepository struct {
	store storage.Store[*types.StoragePool]
}

// NewStoragePoolRepository creates a pool repository on a concurrent store
func NewStoragePoolRepository(opts ...storage.Option) *StoragePoolRepository {
	return &StoragePoolRepository{store: storage.NewConcurrentStore(poolKind, opts...)}
}

// Create stores a new pool
func (r *StoragePoolRepository) Create(pool *types.StoragePool) (*types.StoragePool, error) {
	return r.store.Create(pool)
}

// Get returns a pool by ID
func (r *StoragePoolRepository) Get(id string) (*types.StoragePool, error) {
	return r.store.Get(id)
}

// GetByName returns a pool by project and name
func (r *StoragePoolRepository) GetByName(projectID, name string) (*types.StoragePool, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a pool
func (r *StoragePoolRepository) Update(pool *types.StoragePool) (*types.StoragePool, error) {
	return r.store.Update(pool)
}

// UpdateStatus replaces only the status of a pool
func (r *StoragePoolRepository) UpdateStatus(id string, status types.StoragePoolStatus) (*types.StoragePool, error) {
	return r.store.Patch(id, func(p *types.StoragePool) {
		p.Status = status
	})
}

// Delete removes a pool
func (r *StoragePoolRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns a page of pools matching filter in creation order and the total match count
func (r *StoragePoolRepository) List(filter PoolFilter, limit, offset int) ([]*types.StoragePool, int, error) {
	items, total := offsetPage(r.store, storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Type:         string(filter.BackendType),
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, poolAccessors), limit, offset)
	return items, total, nil
}

// ListAssignedToNode returns the pools assigned to a node
func (r *StoragePoolRepository) ListAssignedToNode(nodeID string) ([]*types.StoragePool, error) {
	return r.store.List(func(p *types.StoragePool) bool { return p.IsAssignedTo(nodeID) }), nil
}

// Count returns the number of stored pools
func (r *StoragePoolRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies pools by phase
func (r *StoragePoolRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), poolAccessors.Phase)
}
