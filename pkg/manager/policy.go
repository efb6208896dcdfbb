package manager

import (
	"errors"
	"fmt"

	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// The stores never check references between kinds. These operations refuse
// to delete an entity that others still point at, and refuse to create an
// entity whose parent does not exist. Checks and writes touch different
// stores, so a concurrent writer can still slip between them.

func dependents(kind, id string, count int, what string) error {
	return fmt.Errorf("%s %q is referenced by %d %s: %w", kind, id, count, what, ErrHasDependents)
}

// IssueToken issues a registration token for an existing cluster
func (m *Manager) IssueToken(req TokenRequest) (*types.RegistrationToken, error) {
	if _, err := m.clusters.Get(req.ClusterID); err != nil {
		return nil, fmt.Errorf("cannot issue token: %w", err)
	}
	if req.TTL == 0 {
		req.TTL = m.cfg.TokenTTL
	}
	return m.tokenManager.Issue(req)
}

// RegisterNode admits a node presenting a registration token
func (m *Manager) RegisterNode(token string, node *types.Node) (*types.Node, error) {
	return m.tokenManager.RegisterNode(token, node)
}

// CreateNode stores a node after checking its cluster exists
func (m *Manager) CreateNode(node *types.Node) (*types.Node, error) {
	if node.ClusterID != "" {
		if _, err := m.clusters.Get(node.ClusterID); err != nil {
			return nil, fmt.Errorf("cannot create node %q: %w", node.Hostname, err)
		}
	}
	return m.nodes.Create(node)
}

// AdmitNode stores a node declared by an operator as READY, the way a token
// registration does. Its agent must heartbeat within HeartbeatTimeout or the
// reconciler marks it NOT_READY.
func (m *Manager) AdmitNode(node *types.Node) (*types.Node, error) {
	now := m.Now()
	candidate := *node
	candidate.LastHeartbeat = &now
	candidate.Status.Phase = types.NodePhaseReady
	return m.CreateNode(&candidate)
}

// CreateVolume stores a volume after checking its pool exists
func (m *Manager) CreateVolume(volume *types.Volume) (*types.Volume, error) {
	if _, err := m.pools.Get(volume.PoolID); err != nil {
		return nil, fmt.Errorf("cannot create volume %q: %w", volume.Name, err)
	}
	return m.volumes.Create(volume)
}

// CreateLoadBalancer stores a load balancer after checking its network exists
func (m *Manager) CreateLoadBalancer(lb *types.LoadBalancer) (*types.LoadBalancer, error) {
	if _, err := m.networks.Get(lb.NetworkID); err != nil {
		return nil, fmt.Errorf("cannot create load balancer %q: %w", lb.Name, err)
	}
	return m.loadBalancers.Create(lb)
}

// CreateVpnService stores a VPN service after checking its network exists
func (m *Manager) CreateVpnService(vpn *types.VpnService) (*types.VpnService, error) {
	if _, err := m.networks.Get(vpn.NetworkID); err != nil {
		return nil, fmt.Errorf("cannot create vpn service %q: %w", vpn.Name, err)
	}
	return m.vpns.Create(vpn)
}

// CreateBGPPeer stores a peer after checking its speaker exists
func (m *Manager) CreateBGPPeer(peer *types.BGPPeer) (*types.BGPPeer, error) {
	if _, err := m.bgp.GetSpeaker(peer.SpeakerID); err != nil {
		return nil, fmt.Errorf("cannot create bgp peer %q: %w", peer.Spec.PeerAddress, err)
	}
	return m.bgp.CreatePeer(peer)
}

// CreateBGPAdvertisement stores an advertisement after checking its speaker exists
func (m *Manager) CreateBGPAdvertisement(adv *types.BGPAdvertisement) (*types.BGPAdvertisement, error) {
	if _, err := m.bgp.GetSpeaker(adv.SpeakerID); err != nil {
		return nil, fmt.Errorf("cannot create bgp advertisement %q: %w", adv.Spec.Prefix, err)
	}
	return m.bgp.CreateAdvertisement(adv)
}

// DeleteCluster removes a cluster that has no nodes
func (m *Manager) DeleteCluster(id string) error {
	nodes, err := m.nodes.ListByCluster(id)
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		return dependents("cluster", id, len(nodes), "nodes")
	}
	return m.clusters.Delete(id)
}

// DeleteNode removes a node that runs no VMs
func (m *Manager) DeleteNode(id string) error {
	count, err := m.vms.CountByNode(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return dependents("node", id, count, "virtual machines")
	}
	return m.nodes.Delete(id)
}

// DeleteVM removes a virtual machine with no attached volumes and returns
// its reservation to the node it was placed on
func (m *Manager) DeleteVM(id string) error {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	vm, err := m.vms.Get(id)
	if err != nil {
		return err
	}
	attached, err := m.volumes.ListByVMID(id)
	if err != nil {
		return err
	}
	if len(attached) > 0 {
		return dependents("virtual machine", id, len(attached), "attached volumes")
	}
	if err := m.vms.Delete(id); err != nil {
		return err
	}

	if vm.Status.NodeID == "" {
		return nil
	}
	_, err = m.nodes.Release(vm.Status.NodeID, vm.ID, vm.ResourceRequest())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("virtual machine %q deleted but its reservation on node %q was not released: %w", id, vm.Status.NodeID, err)
	}
	return nil
}

// DeleteStoragePool removes a pool that holds no volumes
func (m *Manager) DeleteStoragePool(id string) error {
	volumes, err := m.volumes.ListByPoolID(id)
	if err != nil {
		return err
	}
	if len(volumes) > 0 {
		return dependents("storage pool", id, len(volumes), "volumes")
	}
	return m.pools.Delete(id)
}

// DeleteVolume removes a volume that is not attached
func (m *Manager) DeleteVolume(id string) error {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	volume, err := m.volumes.Get(id)
	if err != nil {
		return err
	}
	if volume.IsAttached() {
		return fmt.Errorf("volume %q attached to %q: %w", id, volume.Status.AttachedVMID, ErrVolumeInUse)
	}
	return m.volumes.Delete(id)
}

// DeleteVirtualNetwork removes a network with no load balancers or VPN services
func (m *Manager) DeleteVirtualNetwork(id string) error {
	lbs, err := m.loadBalancers.ListByNetwork(id)
	if err != nil {
		return err
	}
	if len(lbs) > 0 {
		return dependents("virtual network", id, len(lbs), "load balancers")
	}

	vpns, err := m.vpns.ListByNetwork(id)
	if err != nil {
		return err
	}
	if len(vpns) > 0 {
		return dependents("virtual network", id, len(vpns), "vpn services")
	}
	return m.networks.Delete(id)
}

// DeleteBGPSpeaker removes a speaker with no peers or advertisements
func (m *Manager) DeleteBGPSpeaker(id string) error {
	peers, err := m.bgp.ListPeers(id)
	if err != nil {
		return err
	}
	if len(peers) > 0 {
		return dependents("bgp speaker", id, len(peers), "peers")
	}

	advs, err := m.bgp.ListAdvertisements(id)
	if err != nil {
		return err
	}
	if len(advs) > 0 {
		return dependents("bgp speaker", id, len(advs), "advertisements")
	}
	return m.bgp.DeleteSpeaker(id)
}
