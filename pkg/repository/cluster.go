package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// ClusterFilter selects clusters for List
type ClusterFilter struct {
	ProjectID    string
	Phases       []types.ClusterPhase
	Labels       map[string]string
	NameContains string
}

var clusterKind = storage.Kind[*types.Cluster]{
	Name: KindCluster,
	Indexes: []storage.Index[*types.Cluster]{
		projectNameIndex(
			func(c *types.Cluster) string { return c.ProjectID },
			func(c *types.Cluster) string { return c.Name },
		),
	},
	Defaults: func(c *types.Cluster) {
		if c.Status.Phase == "" {
			c.Status.Phase = types.ClusterPhaseHealthy
		}
	},
}

var clusterAccessors = storage.Accessors[*types.Cluster]{
	Scope:  func(c *types.Cluster) string { return c.ProjectID },
	Phase:  func(c *types.Cluster) string { return string(c.Status.Phase) },
	Labels: labelsOf[*types.Cluster],
	Name:   func(c *types.Cluster) string { return c.Name },
}

// ClusterRepository stores clusters, unique by (project, name)
type ClusterRepository struct {
	store storage.Store[*types.Cluster]
}

// NewClusterRepository creates a cluster repository on a lock-guarded store
func NewClusterRepository(opts ...storage.Option) *ClusterRepository {
	return &ClusterRepository{store: storage.NewMemoryStore(clusterKind, opts...)}
}

// Create stores a new cluster
func (r *ClusterRepository) Create(cluster *types.Cluster) (*types.Cluster, error) {
	return r.store.Create(cluster)
}

// Get returns a cluster by ID
func (r *ClusterRepository) Get(id string) (*types.Cluster, error) {
	return r.store.Get(id)
}

// GetByName returns a cluster by project and name
func (r *ClusterRepository) GetByName(projectID, name string) (*types.Cluster, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a cluster
func (r *ClusterRepository) Update(cluster *types.Cluster) (*types.Cluster, error) {
	return r.store.Update(cluster)
}

// UpdateStatus replaces only the status of a cluster
func (r *ClusterRepository) UpdateStatus(id string, status types.ClusterStatus) (*types.Cluster, error) {
	return r.store.Patch(id, func(c *types.Cluster) {
		c.Status = status
	})
}

// Delete removes a cluster
func (r *ClusterRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns clusters matching filter in creation order
func (r *ClusterRepository) List(filter ClusterFilter) ([]*types.Cluster, error) {
	return r.store.List(storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, clusterAccessors)), nil
}

// Count returns the number of stored clusters
func (r *ClusterRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies clusters by phase
func (r *ClusterRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), clusterAccessors.Phase)
}
