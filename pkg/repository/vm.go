package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// VMFilter selects virtual machines for List
type VMFilter struct {
	ProjectID    string
	NodeID       string
	States       []types.VMState
	Labels       map[string]string
	NameContains string
}

var vmKind = storage.Kind[*types.VirtualMachine]{
	Name: KindVirtualMachine,
	Indexes: []storage.Index[*types.VirtualMachine]{
		projectNameIndex(
			func(vm *types.VirtualMachine) string { return vm.ProjectID },
			func(vm *types.VirtualMachine) string { return vm.Name },
		),
	},
	Defaults: func(vm *types.VirtualMachine) {
		if vm.Status.State == "" {
			vm.Status.State = types.VMStatePending
		}
		if vm.Spec.CPU.Sockets == 0 {
			vm.Spec.CPU.Sockets = 1
		}
		if vm.Spec.CPU.Cores == 0 {
			vm.Spec.CPU.Cores = 1
		}
	},
}

var vmAccessors = storage.Accessors[*types.VirtualMachine]{
	Scope:  func(vm *types.VirtualMachine) string { return vm.ProjectID },
	Phase:  func(vm *types.VirtualMachine) string { return string(vm.Status.State) },
	Labels: labelsOf[*types.VirtualMachine],
	Name:   func(vm *types.VirtualMachine) string { return vm.Name },
}

// VMRepository stores virtual machines, unique by (project, name).
// List pages newest first with an ID cursor.
type VMRepository struct {
	store storage.Store[*types.VirtualMachine]
}

// NewVMRepository creates a VM repository on a lock-guarded store
func NewVMRepository(opts ...storage.Option) *VMRepository {
	return &VMRepository{store: storage.NewMemoryStore(vmKind, opts...)}
}

// Create stores a new virtual machine
func (r *VMRepository) Create(vm *types.VirtualMachine) (*types.VirtualMachine, error) {
	return r.store.Create(vm)
}

// Get returns a virtual machine by ID
func (r *VMRepository) Get(id string) (*types.VirtualMachine, error) {
	return r.store.Get(id)
}

// GetByName returns a virtual machine by project and name
func (r *VMRepository) GetByName(projectID, name string) (*types.VirtualMachine, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a virtual machine
func (r *VMRepository) Update(vm *types.VirtualMachine) (*types.VirtualMachine, error) {
	return r.store.Update(vm)
}

// UpdateStatus replaces only the status of a virtual machine
func (r *VMRepository) UpdateStatus(id string, status types.VMStatus) (*types.VirtualMachine, error) {
	return r.store.Patch(id, func(vm *types.VirtualMachine) {
		vm.Status = status
	})
}

// Place records the VM as scheduled on nodeID if it is still waiting for
// placement. It reports whether the placement was recorded.
func (r *VMRepository) Place(id, nodeID string) (*types.VirtualMachine, bool, error) {
	placed := false
	vm, err := r.store.Patch(id, func(vm *types.VirtualMachine) {
		if !vm.IsPending() {
			return
		}
		vm.Status.State = types.VMStateScheduled
		vm.Status.NodeID = nodeID
		vm.Status.Message = ""
		placed = true
	})
	return vm, placed, err
}

// MarkUnschedulable records why a pending VM could not be placed. VMs that
// were placed in the meantime are left as they are.
func (r *VMRepository) MarkUnschedulable(id, message string) (*types.VirtualMachine, error) {
	return r.store.Patch(id, func(vm *types.VirtualMachine) {
		if vm.IsPending() {
			vm.Status.Message = message
		}
	})
}

// Requeue returns a VM placed on nodeID to the pending queue with message.
// A VM that has since moved to another node is left as it is.
func (r *VMRepository) Requeue(id, nodeID, message string) (*types.VirtualMachine, error) {
	return r.store.Patch(id, func(vm *types.VirtualMachine) {
		if vm.Status.NodeID != nodeID {
			return
		}
		vm.Status.State = types.VMStatePending
		vm.Status.NodeID = ""
		vm.Status.Message = message
	})
}

// Delete removes a virtual machine
func (r *VMRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns up to limit VMs matching filter, newest first, following the
// VM whose ID is cursor. total counts every match regardless of paging.
func (r *VMRepository) List(filter VMFilter, limit int, cursor string) ([]*types.VirtualMachine, int, error) {
	match := storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Phases:       phaseStrings(filter.States),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, vmAccessors)
	if filter.NodeID != "" {
		nodeID := filter.NodeID
		match = storage.And(match, func(vm *types.VirtualMachine) bool { return vm.Status.NodeID == nodeID })
	}

	matched := r.store.List(match)
	storage.SortNewestFirst(matched)
	return storage.PageAfter(matched, cursor, limit), len(matched), nil
}

// ListByNode returns the VMs placed on a node
func (r *VMRepository) ListByNode(nodeID string) ([]*types.VirtualMachine, error) {
	return r.store.List(func(vm *types.VirtualMachine) bool { return vm.Status.NodeID == nodeID }), nil
}

// ListPending returns VMs waiting for placement
func (r *VMRepository) ListPending() ([]*types.VirtualMachine, error) {
	return r.store.List(func(vm *types.VirtualMachine) bool { return vm.IsPending() }), nil
}

// CountByNode returns how many VMs are placed on a node
func (r *VMRepository) CountByNode(nodeID string) (int, error) {
	return len(r.store.List(func(vm *types.VirtualMachine) bool { return vm.Status.NodeID == nodeID })), nil
}

// CountByProject returns how many VMs belong to a project
func (r *VMRepository) CountByProject(projectID string) (int, error) {
	return len(r.store.List(func(vm *types.VirtualMachine) bool { return vm.ProjectID == projectID })), nil
}

// Count returns the number of stored VMs
func (r *VMRepository) Count() int {
	return r.store.Len()
}

// PhaseCounts tallies VMs by power state
func (r *VMRepository) PhaseCounts() map[string]int {
	return countPhases(r.store.List(nil), vmAccessors.Phase)
}
