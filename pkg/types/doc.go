/*
Package types defines the entity records managed by the virtplane control plane.

Every entity kind embeds ObjectMeta (identity, labels, timestamps), carries a
scope field, a human-facing name, a declared Spec and an observed Status.
Entity records are plain data: they hold no locks and no references into the
store that owns them.

# Architecture

	┌──────────────────── ObjectMeta ─────────────────────┐
	│ ID  Labels  CreatedAt  UpdatedAt                     │
	└──────────────────────────┬───────────────────────────┘
	                           │ embedded by
	  ┌───────────┬────────────┼────────────┬──────────────┐
	  ▼           ▼            ▼            ▼              ▼
	Cluster     Node    VirtualMachine  StoragePool     Volume
	(project)  (global)   (project)     (project)      (project)
	                           │
	  ┌───────────┬────────────┼────────────┬──────────────┐
	  ▼           ▼            ▼            ▼              ▼
	VirtualNetwork  LoadBalancer  VpnService  SecurityGroup  RegistrationToken
	(project)       (project)     (project)   (project)      (global)
	                           │
	           ┌───────────────┼────────────────┐
	           ▼               ▼                ▼
	       BGPSpeaker       BGPPeer      BGPAdvertisement
	       (project)       (speaker)        (speaker)

# Core Types

Compute:
  - Cluster: grouping of hosts with HA and DRS settings
  - Node: physical hypervisor host, phase and allocation
  - VirtualMachine: guest workload with power state and placement

Storage:
  - StoragePool: backend volumes are carved from
  - Volume: block device, optionally attached to one VM

Networking:
  - VirtualNetwork, SecurityGroup, LoadBalancer, VpnService
  - BGPSpeaker, BGPPeer, BGPAdvertisement

Admission:
  - RegistrationToken: single or multi use token admitting nodes

# Relationships

References between kinds are plain ID fields. They are not enforced by the
store; the manager package applies existence and delete policies on top.

  - VirtualMachine.Status.NodeID → Node
  - Node.Status.VMIDs (derived) ← VirtualMachine.Status.NodeID
  - Node.ClusterID → Cluster
  - Volume.PoolID → StoragePool
  - Volume.Status.AttachedVMID → VirtualMachine
  - StoragePool.Spec.AssignedNodeIDs → Node
  - LoadBalancer.NetworkID, VpnService.NetworkID → VirtualNetwork
  - BGPPeer.SpeakerID, BGPAdvertisement.SpeakerID → BGPSpeaker

# Usage

	vm := &types.VirtualMachine{
		Name:      "web-1",
		ProjectID: "default",
		Spec: types.VMSpec{
			CPU:    types.VMCPU{Sockets: 1, Cores: 2},
			Memory: types.VMMemory{SizeMiB: 2048},
		},
	}
	vm.Labels = map[string]string{"tier": "web"}

Spec structs carry yaml tags so they can be decoded directly from manifests.
Status structs are written only through status updaters.

# See Also

  - pkg/storage for the generic entity store
  - pkg/repository for the per-kind repositories
*/
package types
