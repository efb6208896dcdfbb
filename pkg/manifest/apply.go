package manifest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/mohae/deepcopy"
	"github.com/rs/zerolog"

	"github.com/cuemby/virtplane/pkg/log"
	"github.com/cuemby/virtplane/pkg/manager"
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// Action is what applying a resource did
type Action string

const (
	ActionCreated    Action = "created"
	ActionConfigured Action = "configured"
	ActionUnchanged  Action = "unchanged"
)

// Applied records the outcome of one resource
type Applied struct {
	Kind    string `yaml:"kind"`
	Name    string `yaml:"name"`
	Project string `yaml:"project,omitempty"`
	ID      string `yaml:"id"`
	Action  Action `yaml:"action"`
}

// Spec envelopes: the entity's own spec inlined next to the fields that
// live outside it, and references to parents by name.

type clusterSpec struct {
	Description       string `yaml:"description"`
	types.ClusterSpec `yaml:",inline"`
}

type nodeSpec struct {
	Cluster        string `yaml:"cluster"`
	ManagementIP   string `yaml:"managementIP"`
	types.NodeSpec `yaml:",inline"`
}

type vmSpec struct {
	Cluster      string `yaml:"cluster"`
	Description  string `yaml:"description"`
	types.VMSpec `yaml:",inline"`
}

type poolSpec struct {
	Description           string `yaml:"description"`
	types.StoragePoolSpec `yaml:",inline"`
}

type volumeSpec struct {
	Pool             string `yaml:"pool"`
	types.VolumeSpec `yaml:",inline"`
}

type networkSpec struct {
	Description              string `yaml:"description"`
	types.VirtualNetworkSpec `yaml:",inline"`
}

type loadBalancerSpec struct {
	Network                string `yaml:"network"`
	Description            string `yaml:"description"`
	types.LoadBalancerSpec `yaml:",inline"`
}

type vpnSpec struct {
	Network              string `yaml:"network"`
	Description          string `yaml:"description"`
	types.VpnServiceSpec `yaml:",inline"`
}

type speakerSpec struct {
	Node                 string `yaml:"node"`
	types.BGPSpeakerSpec `yaml:",inline"`
}

type peerSpec struct {
	Speaker           string `yaml:"speaker"`
	types.BGPPeerSpec `yaml:",inline"`
}

type advertisementSpec struct {
	Speaker                    string `yaml:"speaker"`
	types.BGPAdvertisementSpec `yaml:",inline"`
}

type securityGroupSpec struct {
	Description             string `yaml:"description"`
	types.SecurityGroupSpec `yaml:",inline"`
}

type tokenSpec struct {
	Cluster   string        `yaml:"cluster"`
	CreatedBy string        `yaml:"createdBy"`
	MaxUses   int           `yaml:"maxUses"`
	TTL       time.Duration `yaml:"ttl"`
}

// Applier creates or updates manifest resources in a manager
type Applier struct {
	manager *manager.Manager
	project string
	logger  zerolog.Logger
}

// NewApplier creates an applier; resources without metadata.project land in
// the manager's default project
func NewApplier(mgr *manager.Manager) *Applier {
	return &Applier{
		manager: mgr,
		project: mgr.Config().DefaultProject,
		logger:  log.WithComponent("manifest"),
	}
}

// Apply applies resources in order. Name references resolve against what is
// already stored, including resources earlier in the same list. Apply stops
// at the first failure and returns what was applied before it.
func (a *Applier) Apply(resources []*Resource) ([]Applied, error) {
	applied := make([]Applied, 0, len(resources))
	for _, res := range resources {
		result, err := a.apply(res)
		if err != nil {
			return applied, fmt.Errorf("failed to apply %s: %w", res, err)
		}
		a.logger.Info().
			Str("kind", result.Kind).
			Str("name", result.Name).
			Str("id", result.ID).
			Str("action", string(result.Action)).
			Msg("Resource applied")
		applied = append(applied, result)
	}
	return applied, nil
}

// ApplyFile decodes and applies a manifest file
func (a *Applier) ApplyFile(path string) ([]Applied, error) {
	resources, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return a.Apply(resources)
}

func (a *Applier) apply(res *Resource) (Applied, error) {
	project := res.Metadata.Project
	if project == "" {
		project = a.project
	}
	result := Applied{Kind: res.Kind, Name: res.Metadata.Name, Project: project}

	var (
		obj    storage.Object
		action Action
		err    error
	)
	switch res.Kind {
	case KindCluster:
		obj, action, err = a.applyCluster(res, project)
	case KindNode:
		result.Project = ""
		obj, action, err = a.applyNode(res, project)
	case KindVirtualMachine:
		obj, action, err = a.applyVM(res, project)
	case KindStoragePool:
		obj, action, err = a.applyPool(res, project)
	case KindVolume:
		obj, action, err = a.applyVolume(res, project)
	case KindVirtualNetwork:
		obj, action, err = a.applyNetwork(res, project)
	case KindLoadBalancer:
		obj, action, err = a.applyLoadBalancer(res, project)
	case KindVpnService:
		obj, action, err = a.applyVpn(res, project)
	case KindBGPSpeaker:
		obj, action, err = a.applySpeaker(res, project)
	case KindBGPPeer:
		obj, action, err = a.applyPeer(res, project)
	case KindBGPAdvertisement:
		obj, action, err = a.applyAdvertisement(res, project)
	case KindSecurityGroup:
		obj, action, err = a.applySecurityGroup(res, project)
	case KindRegistrationToken:
		obj, action, err = a.applyToken(res, project)
	default:
		return result, fmt.Errorf("%w: %s", ErrUnknownKind, res.Kind)
	}
	if err != nil {
		return result, err
	}

	result.ID = obj.GetObjectMeta().ID
	result.Action = action
	return result, nil
}

// sameEntity compares a stored entity before and after an update
var sameEntity = cmp.Options{
	cmpopts.IgnoreFields(types.ObjectMeta{}, "UpdatedAt"),
	cmpopts.EquateEmpty(),
}

// upsert creates when lookup reports ErrNotFound, otherwise hands the stored
// copy to update. An update that changes nothing but UpdatedAt is reported
// unchanged.
func upsert[T storage.Object](lookup func() (T, error), create func() (T, error), update func(T) (T, error)) (T, Action, error) {
	current, err := lookup()
	switch {
	case err == nil:
		before := deepcopy.Copy(current).(T)
		obj, err := update(current)
		if err != nil {
			return obj, "", err
		}
		if cmp.Equal(before, obj, sameEntity) {
			return obj, ActionUnchanged, nil
		}
		return obj, ActionConfigured, nil
	case errors.Is(err, storage.ErrNotFound):
		obj, err := create()
		return obj, ActionCreated, err
	default:
		var zero T
		return zero, "", err
	}
}

func unresolved(kind, name string) error {
	return fmt.Errorf("%w: %s %q has not been applied", ErrUnresolvedReference, kind, name)
}

func (a *Applier) clusterID(project, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	cluster, err := a.manager.Clusters().GetByName(project, name)
	if err != nil {
		return "", unresolved(KindCluster, name)
	}
	return cluster.ID, nil
}

func (a *Applier) networkID(project, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: spec.network is required", ErrInvalidResource)
	}
	network, err := a.manager.Networks().GetByName(project, name)
	if err != nil {
		return "", unresolved(KindVirtualNetwork, name)
	}
	return network.ID, nil
}

func (a *Applier) speakerID(project, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: spec.speaker is required", ErrInvalidResource)
	}
	speaker, err := a.manager.BGP().GetSpeakerByName(project, name)
	if err != nil {
		return "", unresolved(KindBGPSpeaker, name)
	}
	return speaker.ID, nil
}

func (a *Applier) applyCluster(res *Resource, project string) (storage.Object, Action, error) {
	var spec clusterSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	clusters := a.manager.Clusters()
	return upsert(
		func() (*types.Cluster, error) { return clusters.GetByName(project, res.Metadata.Name) },
		func() (*types.Cluster, error) {
			return clusters.Create(&types.Cluster{
				ObjectMeta:  types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:        res.Metadata.Name,
				ProjectID:   project,
				Description: spec.Description,
				Spec:        spec.ClusterSpec,
			})
		},
		func(c *types.Cluster) (*types.Cluster, error) {
			c.Labels = res.Metadata.Labels
			c.Description = spec.Description
			c.Spec = spec.ClusterSpec
			return clusters.Update(c)
		},
	)
}

func (a *Applier) applyNode(res *Resource, project string) (storage.Object, Action, error) {
	var spec nodeSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	clusterID, err := a.clusterID(project, spec.Cluster)
	if err != nil {
		return nil, "", err
	}
	nodes := a.manager.Nodes()
	return upsert(
		func() (*types.Node, error) { return nodes.GetByHostname(res.Metadata.Name) },
		func() (*types.Node, error) {
			return a.manager.AdmitNode(&types.Node{
				ObjectMeta:   types.ObjectMeta{Labels: res.Metadata.Labels},
				Hostname:     res.Metadata.Name,
				ManagementIP: spec.ManagementIP,
				ClusterID:    clusterID,
				Spec:         spec.NodeSpec,
			})
		},
		func(n *types.Node) (*types.Node, error) {
			n.Labels = res.Metadata.Labels
			n.ManagementIP = spec.ManagementIP
			n.ClusterID = clusterID
			n.Spec = spec.NodeSpec
			n.Status.Allocatable = n.Spec.Capacity()
			return nodes.Update(n)
		},
	)
}

func (a *Applier) applyVM(res *Resource, project string) (storage.Object, Action, error) {
	var spec vmSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	if spec.Cluster != "" {
		clusterID, err := a.clusterID(project, spec.Cluster)
		if err != nil {
			return nil, "", err
		}
		if spec.Placement == nil {
			spec.Placement = &types.PlacementPolicy{}
		}
		spec.Placement.ClusterID = clusterID
	}
	vms := a.manager.VMs()
	return upsert(
		func() (*types.VirtualMachine, error) { return vms.GetByName(project, res.Metadata.Name) },
		func() (*types.VirtualMachine, error) {
			return vms.Create(&types.VirtualMachine{
				ObjectMeta:  types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:        res.Metadata.Name,
				ProjectID:   project,
				Description: spec.Description,
				Spec:        spec.VMSpec,
			})
		},
		func(vm *types.VirtualMachine) (*types.VirtualMachine, error) {
			vm.Labels = res.Metadata.Labels
			vm.Description = spec.Description
			vm.Spec = spec.VMSpec
			return vms.Update(vm)
		},
	)
}

func (a *Applier) applyPool(res *Resource, project string) (storage.Object, Action, error) {
	var spec poolSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	pools := a.manager.StoragePools()
	return upsert(
		func() (*types.StoragePool, error) { return pools.GetByName(project, res.Metadata.Name) },
		func() (*types.StoragePool, error) {
			return pools.Create(&types.StoragePool{
				ObjectMeta:  types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:        res.Metadata.Name,
				ProjectID:   project,
				Description: spec.Description,
				Spec:        spec.StoragePoolSpec,
			})
		},
		func(p *types.StoragePool) (*types.StoragePool, error) {
			p.Labels = res.Metadata.Labels
			p.Description = spec.Description
			p.Spec = spec.StoragePoolSpec
			return pools.Update(p)
		},
	)
}

func (a *Applier) applyVolume(res *Resource, project string) (storage.Object, Action, error) {
	var spec volumeSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	if spec.Pool == "" {
		return nil, "", fmt.Errorf("%w: spec.pool is required", ErrInvalidResource)
	}
	pool, err := a.manager.StoragePools().GetByName(project, spec.Pool)
	if err != nil {
		return nil, "", unresolved(KindStoragePool, spec.Pool)
	}
	volumes := a.manager.Volumes()
	return upsert(
		func() (*types.Volume, error) { return volumes.GetByName(project, res.Metadata.Name) },
		func() (*types.Volume, error) {
			return a.manager.CreateVolume(&types.Volume{
				ObjectMeta: types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:       res.Metadata.Name,
				ProjectID:  project,
				PoolID:     pool.ID,
				Spec:       spec.VolumeSpec,
			})
		},
		func(v *types.Volume) (*types.Volume, error) {
			v.Labels = res.Metadata.Labels
			v.PoolID = pool.ID
			v.Spec = spec.VolumeSpec
			return volumes.Update(v)
		},
	)
}

func (a *Applier) applyNetwork(res *Resource, project string) (storage.Object, Action, error) {
	var spec networkSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	networks := a.manager.Networks()
	return upsert(
		func() (*types.VirtualNetwork, error) { return networks.GetByName(project, res.Metadata.Name) },
		func() (*types.VirtualNetwork, error) {
			return networks.Create(&types.VirtualNetwork{
				ObjectMeta:  types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:        res.Metadata.Name,
				ProjectID:   project,
				Description: spec.Description,
				Spec:        spec.VirtualNetworkSpec,
			})
		},
		func(n *types.VirtualNetwork) (*types.VirtualNetwork, error) {
			n.Labels = res.Metadata.Labels
			n.Description = spec.Description
			n.Spec = spec.VirtualNetworkSpec
			return networks.Update(n)
		},
	)
}

func (a *Applier) applyLoadBalancer(res *Resource, project string) (storage.Object, Action, error) {
	var spec loadBalancerSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	networkID, err := a.networkID(project, spec.Network)
	if err != nil {
		return nil, "", err
	}
	lbs := a.manager.LoadBalancers()
	return upsert(
		func() (*types.LoadBalancer, error) { return lbs.GetByName(project, res.Metadata.Name) },
		func() (*types.LoadBalancer, error) {
			return a.manager.CreateLoadBalancer(&types.LoadBalancer{
				ObjectMeta:  types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:        res.Metadata.Name,
				ProjectID:   project,
				NetworkID:   networkID,
				Description: spec.Description,
				Spec:        spec.LoadBalancerSpec,
			})
		},
		func(lb *types.LoadBalancer) (*types.LoadBalancer, error) {
			lb.Labels = res.Metadata.Labels
			lb.NetworkID = networkID
			lb.Description = spec.Description
			next := spec.LoadBalancerSpec
			keepListenerIDs(lb.Spec.Listeners, next.Listeners)
			lb.Spec = next
			return lbs.Update(lb)
		},
	)
}

// keepListenerIDs carries listener IDs over by name so members keep their
// references across reapplies.
func keepListenerIDs(current, next []types.LBListener) {
	ids := make(map[string]string, len(current))
	for _, l := range current {
		ids[l.Name] = l.ID
	}
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = ids[next[i].Name]
		}
	}
}

func (a *Applier) applyVpn(res *Resource, project string) (storage.Object, Action, error) {
	var spec vpnSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	networkID, err := a.networkID(project, spec.Network)
	if err != nil {
		return nil, "", err
	}
	vpns := a.manager.VpnServices()
	return upsert(
		func() (*types.VpnService, error) { return vpns.GetByName(project, res.Metadata.Name) },
		func() (*types.VpnService, error) {
			return a.manager.CreateVpnService(&types.VpnService{
				ObjectMeta:  types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:        res.Metadata.Name,
				ProjectID:   project,
				NetworkID:   networkID,
				Description: spec.Description,
				Spec:        spec.VpnServiceSpec,
			})
		},
		func(v *types.VpnService) (*types.VpnService, error) {
			v.Labels = res.Metadata.Labels
			v.NetworkID = networkID
			v.Description = spec.Description
			v.Spec = spec.VpnServiceSpec
			return vpns.Update(v)
		},
	)
}

func (a *Applier) applySpeaker(res *Resource, project string) (storage.Object, Action, error) {
	var spec speakerSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	var nodeID string
	if spec.Node != "" {
		node, err := a.manager.Nodes().GetByHostname(spec.Node)
		if err != nil {
			return nil, "", unresolved(KindNode, spec.Node)
		}
		nodeID = node.ID
	}
	bgp := a.manager.BGP()
	return upsert(
		func() (*types.BGPSpeaker, error) { return bgp.GetSpeakerByName(project, res.Metadata.Name) },
		func() (*types.BGPSpeaker, error) {
			return bgp.CreateSpeaker(&types.BGPSpeaker{
				ObjectMeta: types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:       res.Metadata.Name,
				ProjectID:  project,
				NodeID:     nodeID,
				Spec:       spec.BGPSpeakerSpec,
			})
		},
		func(s *types.BGPSpeaker) (*types.BGPSpeaker, error) {
			s.Labels = res.Metadata.Labels
			s.NodeID = nodeID
			s.Spec = spec.BGPSpeakerSpec
			return bgp.UpdateSpeaker(s)
		},
	)
}

func (a *Applier) applyPeer(res *Resource, project string) (storage.Object, Action, error) {
	var spec peerSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	speakerID, err := a.speakerID(project, spec.Speaker)
	if err != nil {
		return nil, "", err
	}
	bgp := a.manager.BGP()
	return upsert(
		func() (*types.BGPPeer, error) { return bgp.GetPeerByAddress(speakerID, spec.PeerAddress) },
		func() (*types.BGPPeer, error) {
			return a.manager.CreateBGPPeer(&types.BGPPeer{
				ObjectMeta: types.ObjectMeta{Labels: res.Metadata.Labels},
				SpeakerID:  speakerID,
				Name:       res.Metadata.Name,
				Spec:       spec.BGPPeerSpec,
			})
		},
		func(p *types.BGPPeer) (*types.BGPPeer, error) {
			p.Labels = res.Metadata.Labels
			p.Name = res.Metadata.Name
			p.Spec = spec.BGPPeerSpec
			return bgp.UpdatePeer(p)
		},
	)
}

func (a *Applier) applyAdvertisement(res *Resource, project string) (storage.Object, Action, error) {
	var spec advertisementSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	speakerID, err := a.speakerID(project, spec.Speaker)
	if err != nil {
		return nil, "", err
	}
	bgp := a.manager.BGP()
	return upsert(
		func() (*types.BGPAdvertisement, error) { return bgp.GetAdvertisementByPrefix(speakerID, spec.Prefix) },
		func() (*types.BGPAdvertisement, error) {
			return a.manager.CreateBGPAdvertisement(&types.BGPAdvertisement{
				ObjectMeta: types.ObjectMeta{Labels: res.Metadata.Labels},
				SpeakerID:  speakerID,
				Spec:       spec.BGPAdvertisementSpec,
			})
		},
		func(adv *types.BGPAdvertisement) (*types.BGPAdvertisement, error) {
			adv.Labels = res.Metadata.Labels
			adv.Spec = spec.BGPAdvertisementSpec
			return bgp.UpdateAdvertisement(adv)
		},
	)
}

func (a *Applier) applySecurityGroup(res *Resource, project string) (storage.Object, Action, error) {
	var spec securityGroupSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	groups := a.manager.SecurityGroups()
	return upsert(
		func() (*types.SecurityGroup, error) { return groups.GetByName(project, res.Metadata.Name) },
		func() (*types.SecurityGroup, error) {
			return groups.Create(&types.SecurityGroup{
				ObjectMeta:  types.ObjectMeta{Labels: res.Metadata.Labels},
				Name:        res.Metadata.Name,
				ProjectID:   project,
				Description: spec.Description,
				Spec:        spec.SecurityGroupSpec,
			})
		},
		func(sg *types.SecurityGroup) (*types.SecurityGroup, error) {
			sg.Labels = res.Metadata.Labels
			sg.Description = spec.Description
			sg.Spec = spec.SecurityGroupSpec
			return groups.Update(sg)
		},
	)
}

// applyToken always issues a new token; metadata.name becomes its description
func (a *Applier) applyToken(res *Resource, project string) (storage.Object, Action, error) {
	var spec tokenSpec
	if err := res.decodeSpec(&spec); err != nil {
		return nil, "", err
	}
	if spec.Cluster == "" {
		return nil, "", fmt.Errorf("%w: spec.cluster is required", ErrInvalidResource)
	}
	clusterID, err := a.clusterID(project, spec.Cluster)
	if err != nil {
		return nil, "", err
	}
	token, err := a.manager.IssueToken(manager.TokenRequest{
		ClusterID:   clusterID,
		Description: res.Metadata.Name,
		CreatedBy:   spec.CreatedBy,
		MaxUses:     spec.MaxUses,
		TTL:         spec.TTL,
	})
	if err != nil {
		return nil, "", err
	}
	return token, ActionCreated, nil
}
