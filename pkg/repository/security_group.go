package repository

import (
	"github.com/google/uuid"

	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// SecurityGroupFilter selects security groups for List
type SecurityGroupFilter struct {
	ProjectID    string
	Labels       map[string]string
	NameContains string
}

var securityGroupKind = storage.Kind[*types.SecurityGroup]{
	Name: KindSecurityGroup,
	Indexes: []storage.Index[*types.SecurityGroup]{
		projectNameIndex(
			func(sg *types.SecurityGroup) string { return sg.ProjectID },
			func(sg *types.SecurityGroup) string { return sg.Name },
		),
	},
	Defaults: func(sg *types.SecurityGroup) {
		for i := range sg.Spec.Rules {
			defaultRule(&sg.Spec.Rules[i])
		}
	},
}

func defaultRule(rule *types.SecurityGroupRule) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Action == "" {
		rule.Action = types.RuleActionAllow
	}
	if rule.Priority == 0 {
		rule.Priority = types.DefaultRulePriority
	}
}

var securityGroupAccessors = storage.Accessors[*types.SecurityGroup]{
	Scope:  func(sg *types.SecurityGroup) string { return sg.ProjectID },
	Labels: labelsOf[*types.SecurityGroup],
	Name:   func(sg *types.SecurityGroup) string { return sg.Name },
}

// SecurityGroupRepository stores security groups, unique by (project, name)
type SecurityGroupRepository struct {
	store storage.Store[*types.SecurityGroup]
}

// NewSecurityGroupRepository creates a security group repository on a concurrent store
func NewSecurityGroupRepository(opts ...storage.Option) *SecurityGroupRepository {
	return &SecurityGroupRepository{store: storage.NewConcurrentStore(securityGroupKind, opts...)}
}

// Create stores a new security group, filling rule defaults
func (r *SecurityGroupRepository) Create(sg *types.SecurityGroup) (*types.SecurityGroup, error) {
	return r.store.Create(sg)
}

// Get returns a security group by ID
func (r *SecurityGroupRepository) Get(id string) (*types.SecurityGroup, error) {
	return r.store.Get(id)
}

// GetByName returns a security group by project and name
func (r *SecurityGroupRepository) GetByName(projectID, name string) (*types.SecurityGroup, error) {
	return r.store.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// Update replaces a security group; rules added without an ID get one
func (r *SecurityGroupRepository) Update(sg *types.SecurityGroup) (*types.SecurityGroup, error) {
	return r.store.Update(sg)
}

// AddRule appends a rule, filling its ID, action and priority when empty
func (r *SecurityGroupRepository) AddRule(id string, rule types.SecurityGroupRule) (*types.SecurityGroup, error) {
	defaultRule(&rule)
	return r.store.Patch(id, func(sg *types.SecurityGroup) {
		sg.Spec.Rules = append(sg.Spec.Rules, rule)
	})
}

// RemoveRule drops the rule with the given ID
func (r *SecurityGroupRepository) RemoveRule(id, ruleID string) (*types.SecurityGroup, error) {
	return r.store.Patch(id, func(sg *types.SecurityGroup) {
		rules := sg.Spec.Rules[:0]
		for _, rule := range sg.Spec.Rules {
			if rule.ID != ruleID {
				rules = append(rules, rule)
			}
		}
		sg.Spec.Rules = rules
	})
}

// Delete removes a security group
func (r *SecurityGroupRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns a page of security groups matching filter in creation order and the total match count
func (r *SecurityGroupRepository) List(filter SecurityGroupFilter, limit, offset int) ([]*types.SecurityGroup, int, error) {
	items, total := offsetPage(r.store, storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, securityGroupAccessors), limit, offset)
	return items, total, nil
}

// Count returns the number of stored security groups
func (r *SecurityGroupRepository) Count() int {
	return r.store.Len()
}
