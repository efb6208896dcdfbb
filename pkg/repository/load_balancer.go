package repository

import (
	"github.com/google/uuid"

	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// LoadBalancerFilter selects load balancers for List
type LoadBalancerFilter struct {
	ProjectID    string
	NetworkID    string
	Phases       []types.NetworkPhase
	Labels       map[string]string
	NameContains string
}

var loadBalancerKind = storage.Kind[*types.LoadBalancer]{
	Name: KindLoadBalancer,
	Indexes: []storage.Index[*types.LoadBalancer]{
		projectNameIndex(
			func(lb *types.LoadBalancer) string { return lb.ProjectID },
			func(lb *types.LoadBalancer) string { return lb.Name },
		),
	},
	Defaults: func(lb *types.LoadBalancer) {
		if lb.Status.Phase == "" {
			lb.Status.Phase = types.NetworkPhasePending
		}
		if lb.Spec.Algorithm == "" {
			lb.Spec.Algorithm = types.LBAlgorithmRoundRobin
		}
		for i := range lb.Spec.Listeners {
			defaultListener(&lb.Spec.Listeners[i])
		}
		for i := range lb.Spec.Members {
			defaultMember(&lb.Spec.Members[i])
		}
	},
}

func defaultListener(l *types.LBListener) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
}

func defaultMember(m *types.LBMember) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Weight == 0 {
		m.Weight = types.DefaultMemberWeight
	}
}

var loadBalancerAccessors = storage.Accessors[*types.LoadBalancer]{
	Scope:  func(lb *types.LoadBalancer) string { return lb.ProjectID },
	Phase:  func(lb *types.LoadBalancer) string { return string(lb.Status.Phase) },
	Labels: labelsOf[*types.LoadBalancer],
	Name:   func(lb *types.LoadBalancer) string { return lb.Name },
}

// LoadBalancerRepository stores load balancers, unique by (project, name)
type LoadBalancerRepository struct {
	store storage.Store[*types.LoadBalancer]
}

// NewLoadBalancerRepository creates a load balancer repository on a concurrent store
func NewLoadBalancerRepository(opts ...storage.Option) *LoadBalancerRepository {
	return &LoadBalancerRepository{store: storage.NewConcurrentStore(loadBalancerKind, opts...)}
}

// Create stores a new load balancer
func (r *LoadBalancerRepository) Create(lb *types.LoadBalancer) (*types.LoadBalancer, error) {
	return r.store.Create(lb)
}

// Get returns a load balancer by ID
func (r *LoadBalancerRepository) Get(id string) (*types.LoadBalancer, error) {
	return r.store.Get(id)
}

// GetByName returns a load balancer by project and name
func (r *LoadBalancerRepository) GetByName(projectID, name string) (*types.LoadBalancer, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a load balancer
func (r *LoadBalancerRepository) Update(lb *types.LoadBalancer) (*types.LoadBalancer, error) {
	return r.store.Update(lb)
}

// UpdateStatus replaces only the status of a load balancer
func (r *LoadBalancerRepository) UpdateStatus(id string, status types.LoadBalancerStatus) (*types.LoadBalancer, error) {
	return r.store.Patch(id, func(lb *types.LoadBalancer) {
		lb.Status = status
	})
}

// AddListener appends a listener, assigning its ID when empty
func (r *LoadBalancerRepository) AddListener(id string, listener types.LBListener) (*types.LoadBalancer, error) {
	defaultListener(&listener)
	return r.store.Patch(id, func(lb *types.LoadBalancer) {
		lb.Spec.Listeners = append(lb.Spec.Listeners, listener)
	})
}

// RemoveListener drops a listener and the members bound to it
func (r *LoadBalancerRepository) RemoveListener(id, listenerID string) (*types.LoadBalancer, error) {
	return r.store.Patch(id, func(lb *types.LoadBalancer) {
		listeners := lb.Spec.Listeners[:0]
		for _, l := range lb.Spec.Listeners {
			if l.ID != listenerID {
				listeners = append(listeners, l)
			}
		}
		lb.Spec.Listeners = listeners

		members := lb.Spec.Members[:0]
		for _, m := range lb.Spec.Members {
			if m.ListenerID != listenerID {
				members = append(members, m)
			}
		}
		lb.Spec.Members = members
	})
}

// AddMember appends a backend member, assigning its ID and weight when empty
func (r *LoadBalancerRepository) AddMember(id string, member types.LBMember) (*types.LoadBalancer, error) {
	defaultMember(&member)
	return r.store.Patch(id, func(lb *types.LoadBalancer) {
		lb.Spec.Members = append(lb.Spec.Members, member)
	})
}

// RemoveMember drops a backend member
func (r *LoadBalancerRepository) RemoveMember(id, memberID string) (*types.LoadBalancer, error) {
	return r.store.Patch(id, func(lb *types.LoadBalancer) {
		members := lb.Spec.Members[:0]
		for _, m := range lb.Spec.Members {
			if m.ID != memberID {
				members = append(members, m)
			}
		}
		lb.Spec.Members = members
	})
}

// Delete removes a load balancer
func (r *LoadBalancerRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns a page of load balancers matching filter in creation order and the total match count
func (r *LoadBalancerRepository) List(filter LoadBalancerFilter, limit, offset int) ([]*types.LoadBalancer, int, error) {
	match := storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, loadBalancerAccessors)
	if filter.NetworkID != "" {
		networkID := filter.NetworkID
		match = storage.And(match, func(lb *types.LoadBalancer) bool { return lb.NetworkID == networkID })
	}

	items, total := offsetPage(r.store, match, limit, offset)
	return items, total, nil
}

// ListByNetwork returns the load balancers on a network
func (r *LoadBalancerRepository) ListByNetwork(networkID string) ([]*types.LoadBalancer, error) {
	return r.store.List(func(lb *types.LoadBalancer) bool { return lb.NetworkID == networkID }), nil
}

// Count returns the number of stored load balancers
func (r *LoadBalancerRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies load balancers by phase
func (r *LoadBalancerRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), loadBalancerAccessors.Phase)
}
