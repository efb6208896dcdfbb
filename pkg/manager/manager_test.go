package manager

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(DefaultConfig(), storage.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(mgr.Shutdown)
	return mgr, clock
}

func TestNewManager_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatTimeout = 0

	_, err := NewManager(cfg)
	assert.Error(t, err)
}

func TestManager_DeleteCluster(t *testing.T) {
	mgr, _ := newTestManager(t)

	cluster, err := mgr.Clusters().Create(&types.Cluster{Name: "prod", ProjectID: "p1"})
	require.NoError(t, err)
	node, err := mgr.CreateNode(&types.Node{Hostname: "h1", ClusterID: cluster.ID})
	require.NoError(t, err)

	err = mgr.DeleteCluster(cluster.ID)
	assert.True(t, errors.Is(err, ErrHasDependents))

	require.NoError(t, mgr.DeleteNode(node.ID))
	require.NoError(t, mgr.DeleteCluster(cluster.ID))

	_, err = mgr.Clusters().Get(cluster.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestManager_CreateNodeRequiresCluster(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateNode(&types.Node{Hostname: "h1", ClusterID: "missing"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Equal(t, 0, mgr.Nodes().Count())
}

func TestManager_DeleteNodeWithVMs(t *testing.T) {
	mgr, _ := newTestManager(t)

	node, err := mgr.CreateNode(&types.Node{Hostname: "h1"})
	require.NoError(t, err)
	vm, err := mgr.VMs().Create(&types.VirtualMachine{Name: "web", ProjectID: "p1"})
	require.NoError(t, err)
	_, err = mgr.VMs().UpdateStatus(vm.ID, types.VMStatus{State: types.VMStateRunning, NodeID: node.ID})
	require.NoError(t, err)

	err = mgr.DeleteNode(node.ID)
	assert.True(t, errors.Is(err, ErrHasDependents))

	require.NoError(t, mgr.DeleteVM(vm.ID))
	require.NoError(t, mgr.DeleteNode(node.ID))
}

func TestManager_AdmitNode(t *testing.T) {
	mgr, _ := newTestManager(t)

	node, err := mgr.AdmitNode(&types.Node{
		Hostname: "h1",
		Spec: types.NodeSpec{
			CPU:    types.NodeCPU{Sockets: 1, CoresPerSocket: 8},
			Memory: types.NodeMemory{TotalMiB: 32768},
			Role:   types.NodeRole{Compute: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.NodePhaseReady, node.Status.Phase)
	require.NotNil(t, node.LastHeartbeat)
	assert.Equal(t, types.Resources{CPUCores: 8, MemoryMiB: 32768}, node.Status.Allocatable)

	_, err = mgr.AdmitNode(&types.Node{Hostname: "h2", ClusterID: "missing"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestManager_DeleteVMReleasesReservation(t *testing.T) {
	mgr, _ := newTestManager(t)

	node, err := mgr.AdmitNode(&types.Node{Hostname: "h1", Spec: types.NodeSpec{Memory: types.NodeMemory{TotalMiB: 8192}}})
	require.NoError(t, err)
	keep, err := mgr.VMs().Create(&types.VirtualMachine{Name: "keep", ProjectID: "p1", Spec: types.VMSpec{Memory: types.VMMemory{SizeMiB: 2048}}})
	require.NoError(t, err)
	drop, err := mgr.VMs().Create(&types.VirtualMachine{Name: "drop", ProjectID: "p1", Spec: types.VMSpec{Memory: types.VMMemory{SizeMiB: 1024}}})
	require.NoError(t, err)

	for _, vm := range []*types.VirtualMachine{keep, drop} {
		_, err = mgr.Nodes().Allocate(node.ID, vm.ID, vm.ResourceRequest())
		require.NoError(t, err)
		_, placed, err := mgr.VMs().Place(vm.ID, node.ID)
		require.NoError(t, err)
		require.True(t, placed)
	}

	require.NoError(t, mgr.DeleteVM(drop.ID))

	got, err := mgr.Nodes().Get(node.ID)
	require.NoError(t, err)
	assert.Equal(t, keep.ResourceRequest(), got.Status.Allocated)
	assert.Equal(t, []string{keep.ID}, got.Status.VMIDs)

	// the node may already be gone
	_, err = mgr.VMs().UpdateStatus(keep.ID, types.VMStatus{State: types.VMStateRunning, NodeID: "gone"})
	require.NoError(t, err)
	require.NoError(t, mgr.DeleteVM(keep.ID))

	assert.True(t, errors.Is(mgr.DeleteVM("missing"), storage.ErrNotFound))
}

func TestManager_DeleteVMRacesAttach(t *testing.T) {
	for i := 0; i < 50; i++ {
		mgr, _ := newTestManager(t)
		pool, err := mgr.StoragePools().Create(&types.StoragePool{Name: "ceph", ProjectID: "p1"})
		require.NoError(t, err)
		vol, err := mgr.CreateVolume(&types.Volume{Name: "data", ProjectID: "p1", PoolID: pool.ID})
		require.NoError(t, err)
		vm, err := mgr.VMs().Create(&types.VirtualMachine{Name: "web", ProjectID: "p1"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var attachErr, deleteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, attachErr = mgr.AttachVolume(vol.ID, vm.ID)
		}()
		go func() {
			defer wg.Done()
			deleteErr = mgr.DeleteVM(vm.ID)
		}()
		wg.Wait()

		// exactly one side wins; a volume never points at a deleted VM
		got, err := mgr.Volumes().Get(vol.ID)
		require.NoError(t, err)
		if deleteErr == nil {
			assert.Error(t, attachErr)
			assert.False(t, got.IsAttached())
		} else {
			assert.NoError(t, attachErr)
			assert.True(t, errors.Is(deleteErr, ErrHasDependents))
			assert.Equal(t, vm.ID, got.Status.AttachedVMID)
		}
	}
}

func TestManager_StorageReferences(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateVolume(&types.Volume{Name: "data", ProjectID: "p1", PoolID: "missing"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	pool, err := mgr.StoragePools().Create(&types.StoragePool{Name: "ceph", ProjectID: "p1"})
	require.NoError(t, err)
	vol, err := mgr.CreateVolume(&types.Volume{Name: "data", ProjectID: "p1", PoolID: pool.ID})
	require.NoError(t, err)

	err = mgr.DeleteStoragePool(pool.ID)
	assert.True(t, errors.Is(err, ErrHasDependents))

	require.NoError(t, mgr.DeleteVolume(vol.ID))
	require.NoError(t, mgr.DeleteStoragePool(pool.ID))
}

func TestManager_AttachVolume(t *testing.T) {
	mgr, _ := newTestManager(t)

	pool, err := mgr.StoragePools().Create(&types.StoragePool{Name: "ceph", ProjectID: "p1"})
	require.NoError(t, err)
	vol, err := mgr.CreateVolume(&types.Volume{Name: "data", ProjectID: "p1", PoolID: pool.ID})
	require.NoError(t, err)
	vm1, err := mgr.VMs().Create(&types.VirtualMachine{Name: "a", ProjectID: "p1"})
	require.NoError(t, err)
	vm2, err := mgr.VMs().Create(&types.VirtualMachine{Name: "b", ProjectID: "p1"})
	require.NoError(t, err)

	_, err = mgr.AttachVolume(vol.ID, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	attached, err := mgr.AttachVolume(vol.ID, vm1.ID)
	require.NoError(t, err)
	assert.Equal(t, vm1.ID, attached.Status.AttachedVMID)
	assert.Equal(t, types.VolumePhaseInUse, attached.Status.Phase)
	assert.Equal(t, vol.Spec, attached.Spec)

	again, err := mgr.AttachVolume(vol.ID, vm1.ID)
	require.NoError(t, err)
	assert.Equal(t, attached.UpdatedAt, again.UpdatedAt)

	_, err = mgr.AttachVolume(vol.ID, vm2.ID)
	assert.True(t, errors.Is(err, ErrVolumeInUse))

	err = mgr.DeleteVolume(vol.ID)
	assert.True(t, errors.Is(err, ErrVolumeInUse))

	err = mgr.DeleteVM(vm1.ID)
	assert.True(t, errors.Is(err, ErrHasDependents))

	detached, err := mgr.DetachVolume(vol.ID)
	require.NoError(t, err)
	assert.False(t, detached.IsAttached())
	assert.Equal(t, types.VolumePhaseReady, detached.Status.Phase)

	require.NoError(t, mgr.DeleteVM(vm1.ID))
}

func TestManager_DetachOrphanedVolume(t *testing.T) {
	mgr, _ := newTestManager(t)

	pool, err := mgr.StoragePools().Create(&types.StoragePool{Name: "ceph", ProjectID: "p1"})
	require.NoError(t, err)
	vol, err := mgr.CreateVolume(&types.Volume{Name: "data", ProjectID: "p1", PoolID: pool.ID})
	require.NoError(t, err)
	_, err = mgr.Volumes().UpdateStatus(vol.ID, types.VolumeStatus{Phase: types.VolumePhaseInUse, AttachedVMID: "gone"})
	require.NoError(t, err)

	detached, err := mgr.DetachOrphanedVolume(vol.ID, "other")
	require.NoError(t, err)
	assert.False(t, detached)

	detached, err = mgr.DetachOrphanedVolume(vol.ID, "gone")
	require.NoError(t, err)
	assert.True(t, detached)

	got, err := mgr.Volumes().Get(vol.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAttached())
	assert.Contains(t, got.Status.ErrorMessage, "gone")
}

func TestManager_NetworkReferences(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateLoadBalancer(&types.LoadBalancer{Name: "web", ProjectID: "p1", NetworkID: "missing"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	network, err := mgr.Networks().Create(&types.VirtualNetwork{Name: "tenant", ProjectID: "p1"})
	require.NoError(t, err)
	lb, err := mgr.CreateLoadBalancer(&types.LoadBalancer{Name: "web", ProjectID: "p1", NetworkID: network.ID})
	require.NoError(t, err)
	vpn, err := mgr.CreateVpnService(&types.VpnService{Name: "site", ProjectID: "p1", NetworkID: network.ID})
	require.NoError(t, err)

	assert.True(t, errors.Is(mgr.DeleteVirtualNetwork(network.ID), ErrHasDependents))
	require.NoError(t, mgr.LoadBalancers().Delete(lb.ID))
	assert.True(t, errors.Is(mgr.DeleteVirtualNetwork(network.ID), ErrHasDependents))
	require.NoError(t, mgr.VpnServices().Delete(vpn.ID))
	require.NoError(t, mgr.DeleteVirtualNetwork(network.ID))
}

func TestManager_BGPReferences(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateBGPPeer(&types.BGPPeer{SpeakerID: "missing", Spec: types.BGPPeerSpec{PeerAddress: "192.0.2.1"}})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	speaker, err := mgr.BGP().CreateSpeaker(&types.BGPSpeaker{Name: "edge", ProjectID: "p1"})
	require.NoError(t, err)
	peer, err := mgr.CreateBGPPeer(&types.BGPPeer{SpeakerID: speaker.ID, Spec: types.BGPPeerSpec{PeerAddress: "192.0.2.1"}})
	require.NoError(t, err)
	adv, err := mgr.CreateBGPAdvertisement(&types.BGPAdvertisement{SpeakerID: speaker.ID, Spec: types.BGPAdvertisementSpec{Prefix: "203.0.113.0/24"}})
	require.NoError(t, err)

	assert.True(t, errors.Is(mgr.DeleteBGPSpeaker(speaker.ID), ErrHasDependents))
	require.NoError(t, mgr.BGP().DeletePeer(peer.ID))
	assert.True(t, errors.Is(mgr.DeleteBGPSpeaker(speaker.ID), ErrHasDependents))
	require.NoError(t, mgr.BGP().DeleteAdvertisement(adv.ID))
	require.NoError(t, mgr.DeleteBGPSpeaker(speaker.ID))
}

func TestManager_PublishesStoreEvents(t *testing.T) {
	mgr, _ := newTestManager(t)
	sub := mgr.GetEventBroker().Subscribe()
	defer mgr.GetEventBroker().Unsubscribe(sub)

	cluster, err := mgr.Clusters().Create(&types.Cluster{Name: "prod", ProjectID: "p1"})
	require.NoError(t, err)

	select {
	case ev := <-sub:
		assert.Equal(t, events.EventType("cluster.created"), ev.Type)
		assert.Equal(t, cluster.ID, ev.EntityID)
		assert.Equal(t, cluster.CreatedAt, ev.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
