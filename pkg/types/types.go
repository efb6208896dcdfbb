package types

import (
	"time"
)

// ObjectMeta holds the identity and bookkeeping fields shared by every entity kind
type ObjectMeta struct {
	ID        string
	Labels    map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetObjectMeta gives the store access to the shared fields of an entity
func (m *ObjectMeta) GetObjectMeta() *ObjectMeta {
	return m
}

// ClusterPhase represents the health of a cluster
type ClusterPhase string

const (
	ClusterPhaseHealthy     ClusterPhase = "HEALTHY"
	ClusterPhaseWarning     ClusterPhase = "WARNING"
	ClusterPhaseCritical    ClusterPhase = "CRITICAL"
	ClusterPhaseMaintenance ClusterPhase = "MAINTENANCE"
)

// DRSMode defines the automation level of the resource scheduler
type DRSMode string

const (
	DRSModeManual             DRSMode = "manual"
	DRSModePartiallyAutomated DRSMode = "partially_automated"
	DRSModeFullyAutomated     DRSMode = "fully_automated"
)

// Cluster is a logical grouping of hypervisor hosts for HA and DRS
type Cluster struct {
	ObjectMeta
	Name        string
	ProjectID   string
	Description string
	Spec        ClusterSpec
	Status      ClusterStatus
}

// ClusterSpec is the declared configuration of a cluster
type ClusterSpec struct {
	HA       HAConfig             `yaml:"ha"`
	DRS      DRSConfig            `yaml:"drs"`
	Storage  ClusterStorageConfig `yaml:"storage"`
	Networks ClusterNetworkConfig `yaml:"networks"`
}

// HAConfig controls high availability behaviour
type HAConfig struct {
	Enabled           bool `yaml:"enabled"`
	AdmissionControl  bool `yaml:"admissionControl"`
	HostMonitoring    bool `yaml:"hostMonitoring"`
	VMMonitoring      bool `yaml:"vmMonitoring"`
	FailoverCapacity  int  `yaml:"failoverCapacity"`  // Host failures to tolerate
	RestartPriority   int  `yaml:"restartPriority"`   // 1-5
	IsolationResponse int  `yaml:"isolationResponse"` // 0=none, 1=shutdown, 2=power_off
}

// DRSConfig controls distributed resource scheduling
type DRSConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Mode               DRSMode `yaml:"mode"`
	MigrationThreshold int     `yaml:"migrationThreshold"` // 1 (aggressive) to 5 (conservative)
	PowerManagement    bool    `yaml:"powerManagement"`
	DistributionPolicy string  `yaml:"distributionPolicy"` // "balanced", "packed"
}

// ClusterStorageConfig lists the storage a cluster may use
type ClusterStorageConfig struct {
	SharedStorageRequired bool     `yaml:"sharedStorageRequired"`
	DefaultPoolID         string   `yaml:"defaultPoolID"`
	PoolIDs               []string `yaml:"poolIDs"`
}

// ClusterNetworkConfig lists the networks a cluster may use
type ClusterNetworkConfig struct {
	DefaultNetworkID string   `yaml:"defaultNetworkID"`
	NetworkIDs       []string `yaml:"networkIDs"`
}

// ClusterStatus is the observed state of a cluster
type ClusterStatus struct {
	Phase   ClusterPhase
	Message string
}

// NodePhase represents the lifecycle phase of a hypervisor node
type NodePhase string

const (
	NodePhaseUnknown     NodePhase = "UNKNOWN"
	NodePhasePending     NodePhase = "PENDING"
	NodePhaseReady       NodePhase = "READY"
	NodePhaseNotReady    NodePhase = "NOT_READY"
	NodePhaseMaintenance NodePhase = "MAINTENANCE"
	NodePhaseDraining    NodePhase = "DRAINING"
	NodePhaseError       NodePhase = "ERROR"
)

// Node represents a physical hypervisor host
type Node struct {
	ObjectMeta
	Hostname      string
	ManagementIP  string
	ClusterID     string
	Spec          NodeSpec
	Status        NodeStatus
	LastHeartbeat *time.Time
}

// NodeSpec describes the hardware and role of a node
type NodeSpec struct {
	CPU      NodeCPU          `yaml:"cpu"`
	Memory   NodeMemory       `yaml:"memory"`
	Storage  []StorageDevice  `yaml:"storage"`
	Networks []NetworkAdapter `yaml:"networks"`
	Role     NodeRole         `yaml:"role"`
}

// NodeCPU describes the processor layout of a node
type NodeCPU struct {
	Model          string   `yaml:"model"`
	Sockets        int32    `yaml:"sockets"`
	CoresPerSocket int32    `yaml:"coresPerSocket"`
	ThreadsPerCore int32    `yaml:"threadsPerCore"`
	FrequencyMHz   int32    `yaml:"frequencyMHz"`
	Features       []string `yaml:"features"`
}

// TotalCores returns the number of physical cores
func (c NodeCPU) TotalCores() int32 {
	return c.Sockets * c.CoresPerSocket
}

// NodeMemory describes node memory
type NodeMemory struct {
	TotalMiB       int64 `yaml:"totalMiB"`
	AllocatableMiB int64 `yaml:"allocatableMiB"`
}

// Capacity returns the resources the scheduler may hand out on a node with
// this spec. Memory falls back to TotalMiB when AllocatableMiB is unset.
func (s NodeSpec) Capacity() Resources {
	memory := s.Memory.AllocatableMiB
	if memory == 0 {
		memory = s.Memory.TotalMiB
	}
	return Resources{
		CPUCores:  s.CPU.TotalCores(),
		MemoryMiB: memory,
	}
}

// StorageDevice is a local disk on a node
type StorageDevice struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // HDD, SSD, NVMe
	SizeGiB int64  `yaml:"sizeGiB"`
	Path    string `yaml:"path"`
}

// NetworkAdapter is a physical NIC on a node
type NetworkAdapter struct {
	Name         string `yaml:"name"`
	MACAddress   string `yaml:"macAddress"`
	SpeedMbps    int64  `yaml:"speedMbps"`
	MTU          int32  `yaml:"mtu"`
	SRIOVCapable bool   `yaml:"sriovCapable"`
}

// NodeRole defines what a node may be used for
type NodeRole struct {
	Compute      bool `yaml:"compute"`
	Storage      bool `yaml:"storage"`
	ControlPlane bool `yaml:"controlPlane"`
}

// NodeStatus is the observed state of a node
type NodeStatus struct {
	Phase       NodePhase
	Conditions  []NodeCondition
	Allocatable Resources
	Allocated   Resources
	VMIDs       []string // Derived from VirtualMachine.Status.NodeID
	SystemInfo  *SystemInfo
}

// NodeCondition records one observed condition of a node
type NodeCondition struct {
	Type       string
	Status     string // True, False, Unknown
	Reason     string
	Message    string
	LastUpdate time.Time
}

// NodeConditionHeartbeat tracks whether a node's agent is heartbeating
const NodeConditionHeartbeat = "Heartbeat"

// SetCondition replaces the condition of the same type, or appends it
func (s *NodeStatus) SetCondition(cond NodeCondition) {
	out := make([]NodeCondition, 0, len(s.Conditions)+1)
	for _, c := range s.Conditions {
		if c.Type != cond.Type {
			out = append(out, c)
		}
	}
	s.Conditions = append(out, cond)
}

// Resources tracks compute capacity or allocation
type Resources struct {
	CPUCores   int32
	MemoryMiB  int64
	StorageGiB int64
	GPUCount   int32
}

// SystemInfo is reported by the node agent
type SystemInfo struct {
	OS                string
	Kernel            string
	Architecture      string
	HypervisorVersion string
	AgentVersion      string
}

// IsReady returns true if the node reports ready
func (n *Node) IsReady() bool {
	return n.Status.Phase == NodePhaseReady
}

// IsSchedulable returns true if VMs can be placed on the node
func (n *Node) IsSchedulable() bool {
	return n.Status.Phase == NodePhaseReady && n.Spec.Role.Compute
}

// MissedHeartbeat reports whether a node expected to heartbeat has been
// silent since cutoff. Nodes that never heartbeated are measured from their
// creation; NOT_READY and MAINTENANCE nodes are never considered missing.
func (n *Node) MissedHeartbeat(cutoff time.Time) bool {
	switch n.Status.Phase {
	case NodePhaseNotReady, NodePhaseMaintenance:
		return false
	}
	return n.LastSeen().Before(cutoff)
}

// LastSeen returns the last heartbeat, or the creation time if none arrived
func (n *Node) LastSeen() time.Time {
	if n.LastHeartbeat != nil {
		return *n.LastHeartbeat
	}
	return n.CreatedAt
}

// AvailableCPU returns unallocated CPU cores
func (n *Node) AvailableCPU() int32 {
	return n.Status.Allocatable.CPUCores - n.Status.Allocated.CPUCores
}

// AvailableMemory returns unallocated memory in MiB
func (n *Node) AvailableMemory() int64 {
	return n.Status.Allocatable.MemoryMiB - n.Status.Allocated.MemoryMiB
}

// VMState represents the power state of a virtual machine
type VMState string

const (
	VMStatePending   VMState = "PENDING"
	VMStateScheduled VMState = "SCHEDULED"
	VMStateStarting  VMState = "STARTING"
	VMStateRunning   VMState = "RUNNING"
	VMStateStopping  VMState = "STOPPING"
	VMStateStopped   VMState = "STOPPED"
	VMStatePaused    VMState = "PAUSED"
	VMStateMigrating VMState = "MIGRATING"
	VMStateError     VMState = "ERROR"
	VMStateDeleting  VMState = "DELETING"
)

// VirtualMachine is a guest workload
type VirtualMachine struct {
	ObjectMeta
	Name        string
	ProjectID   string
	Description string
	CreatedBy   string
	Spec        VMSpec
	Status      VMStatus
}

// VMSpec is the declared hardware of a virtual machine
type VMSpec struct {
	CPU       VMCPU            `yaml:"cpu"`
	Memory    VMMemory         `yaml:"memory"`
	Disks     []DiskDevice     `yaml:"disks"`
	NICs      []NetworkDevice  `yaml:"nics"`
	Boot      *BootConfig      `yaml:"boot"`
	Placement *PlacementPolicy `yaml:"placement"`
}

// VMCPU is the virtual processor layout
type VMCPU struct {
	Sockets int32 `yaml:"sockets"`
	Cores   int32 `yaml:"cores"`
	Threads int32 `yaml:"threads"`
}

// VCPUs returns the total number of virtual cores
func (c VMCPU) VCPUs() int32 {
	threads := c.Threads
	if threads == 0 {
		threads = 1
	}
	return c.Sockets * c.Cores * threads
}

// IsPending returns true if the VM is waiting for a node
func (vm *VirtualMachine) IsPending() bool {
	return vm.Status.State == VMStatePending && vm.Status.NodeID == ""
}

// ResourceRequest returns the node resources the VM reserves when placed
func (vm *VirtualMachine) ResourceRequest() Resources {
	return Resources{
		CPUCores:  vm.Spec.CPU.VCPUs(),
		MemoryMiB: vm.Spec.Memory.SizeMiB,
	}
}

// VMMemory is the guest memory size
type VMMemory struct {
	SizeMiB int64 `yaml:"sizeMiB"`
}

// DiskDevice is a virtual disk attached to a VM
type DiskDevice struct {
	Name     string `yaml:"name"`
	VolumeID string `yaml:"volumeID"`
	SizeGiB  int64  `yaml:"sizeGiB"`
	Bus      string `yaml:"bus"`
}

// NetworkDevice is a virtual NIC
type NetworkDevice struct {
	Name       string `yaml:"name"`
	NetworkID  string `yaml:"networkID"`
	MACAddress string `yaml:"macAddress"`
}

// BootConfig selects firmware and boot order
type BootConfig struct {
	Firmware string   `yaml:"firmware"` // bios, uefi
	Order    []string `yaml:"order"`
}

// PlacementPolicy constrains where a VM may run
type PlacementPolicy struct {
	ClusterID    string            `yaml:"clusterID"`
	NodeSelector map[string]string `yaml:"nodeSelector"`
}

// VMStatus is the observed state of a virtual machine
type VMStatus struct {
	State       VMState
	NodeID      string
	IPAddresses []string
	Message     string
	Resources   ResourceUsage
}

// ResourceUsage is the last reported guest usage
type ResourceUsage struct {
	CPUPercent    float64
	MemoryUsedMiB int64
}
