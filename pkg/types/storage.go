package types

// StoragePoolPhase represents the lifecycle phase of a storage pool
type StoragePoolPhase string

const (
	StoragePoolPhasePending  StoragePoolPhase = "PENDING"
	StoragePoolPhaseReady    StoragePoolPhase = "READY"
	StoragePoolPhaseDegraded StoragePoolPhase = "DEGRADED"
	StoragePoolPhaseError    StoragePoolPhase = "ERROR"
	StoragePoolPhaseDeleting StoragePoolPhase = "DELETING"
)

// BackendType identifies the storage technology behind a pool
type BackendType string

const (
	BackendTypeCephRBD  BackendType = "CEPH_RBD"
	BackendTypeCephFS   BackendType = "CEPH_CEPHFS"
	BackendTypeLocalLVM BackendType = "LOCAL_LVM"
	BackendTypeLocalDir BackendType = "LOCAL_DIR"
	BackendTypeNFS      BackendType = "NFS"
	BackendTypeISCSI    BackendType = "ISCSI"
)

// StoragePool is a backend that volumes are carved from
type StoragePool struct {
	ObjectMeta
	Name        string
	ProjectID   string
	Description string
	Spec        StoragePoolSpec
	Status      StoragePoolStatus
}

// StoragePoolSpec is the declared configuration of a pool
type StoragePoolSpec struct {
	Backend         StorageBackend    `yaml:"backend"`
	Defaults        VolumeDefaults    `yaml:"defaults"`
	Replication     ReplicationConfig `yaml:"replication"`
	AssignedNodeIDs []string          `yaml:"assignedNodeIDs"`
}

// StorageBackend selects the backend and carries its settings
type StorageBackend struct {
	Type     BackendType `yaml:"type"`
	CephRBD  *CephConfig `yaml:"cephRBD,omitempty"`
	LocalLVM *LVMConfig  `yaml:"localLVM,omitempty"`
	LocalDir *DirConfig  `yaml:"localDir,omitempty"`
	NFS      *NFSConfig  `yaml:"nfs,omitempty"`
}

// CephConfig holds Ceph settings
type CephConfig struct {
	ClusterID string   `yaml:"clusterID"`
	PoolName  string   `yaml:"poolName"`
	Monitors  []string `yaml:"monitors"`
	User      string   `yaml:"user"`
}

// LVMConfig holds LVM settings
type LVMConfig struct {
	VolumeGroup string `yaml:"volumeGroup"`
	ThinPool    string `yaml:"thinPool"`
	NodeID      string `yaml:"nodeID"`
}

// DirConfig holds local directory settings
type DirConfig struct {
	Path   string `yaml:"path"`
	NodeID string `yaml:"nodeID"`
}

// NFSConfig holds NFS settings
type NFSConfig struct {
	Server     string `yaml:"server"`
	ExportPath string `yaml:"exportPath"`
	Version    string `yaml:"version"`
}

// VolumeDefaults applies to volumes created in the pool
type VolumeDefaults struct {
	Provisioning ProvisioningType `yaml:"provisioning"`
	Filesystem   string           `yaml:"filesystem"`
}

// ReplicationConfig holds replica settings
type ReplicationConfig struct {
	ReplicaCount  uint32 `yaml:"replicaCount"`
	MinReplicas   uint32 `yaml:"minReplicas"`
	FailureDomain string `yaml:"failureDomain"`
}

// StoragePoolStatus is the observed state of a pool
type StoragePoolStatus struct {
	Phase        StoragePoolPhase
	Capacity     StorageCapacity
	VolumeCount  uint32
	ErrorMessage string
}

// StorageCapacity holds capacity information in bytes
type StorageCapacity struct {
	TotalBytes       uint64
	UsedBytes        uint64
	AvailableBytes   uint64
	ProvisionedBytes uint64
}

// IsReady returns true if the pool can serve volumes
func (p *StoragePool) IsReady() bool {
	return p.Status.Phase == StoragePoolPhaseReady
}

// IsAssignedTo reports whether the pool is assigned to the given node
func (p *StoragePool) IsAssignedTo(nodeID string) bool {
	for _, id := range p.Spec.AssignedNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

// VolumePhase represents the lifecycle phase of a volume
type VolumePhase string

const (
	VolumePhasePending  VolumePhase = "PENDING"
	VolumePhaseCreating VolumePhase = "CREATING"
	VolumePhaseReady    VolumePhase = "READY"
	VolumePhaseInUse    VolumePhase = "IN_USE"
	VolumePhaseDeleting VolumePhase = "DELETING"
	VolumePhaseError    VolumePhase = "ERROR"
	VolumePhaseResizing VolumePhase = "RESIZING"
)

// ProvisioningType controls how volume space is allocated
type ProvisioningType string

const (
	ProvisioningThin       ProvisioningType = "THIN"
	ProvisioningThickLazy  ProvisioningType = "THICK_LAZY"
	ProvisioningThickEager ProvisioningType = "THICK_EAGER"
)

// AccessMode controls how many VMs may attach a volume
type AccessMode string

const (
	AccessModeReadWriteOnce AccessMode = "READ_WRITE_ONCE"
	AccessModeReadOnlyMany  AccessMode = "READ_ONLY_MANY"
	AccessModeReadWriteMany AccessMode = "READ_WRITE_MANY"
)

// Volume is a block device carved from a storage pool
type Volume struct {
	ObjectMeta
	Name      string
	ProjectID string
	PoolID    string
	Spec      VolumeSpec
	Status    VolumeStatus
}

// VolumeSpec is the declared configuration of a volume
type VolumeSpec struct {
	SizeBytes    uint64           `yaml:"sizeBytes"`
	Provisioning ProvisioningType `yaml:"provisioning"`
	AccessMode   AccessMode       `yaml:"accessMode"`
	Source       VolumeSource     `yaml:"source"`
}

// VolumeSource describes what a volume is created from
type VolumeSource struct {
	Type       string `yaml:"type"` // empty, clone, snapshot, image
	VolumeID   string `yaml:"volumeID,omitempty"`
	SnapshotID string `yaml:"snapshotID,omitempty"`
	ImageID    string `yaml:"imageID,omitempty"`
}

// VolumeStatus is the observed state of a volume
type VolumeStatus struct {
	Phase           VolumePhase
	AttachedVMID    string
	DevicePath      string
	ActualSizeBytes uint64
	ErrorMessage    string
}

// IsAttached returns true if the volume is attached to a VM
func (v *Volume) IsAttached() bool {
	return v.Status.AttachedVMID != ""
}

// IsReady returns true if the volume can be attached
func (v *Volume) IsReady() bool {
	return v.Status.Phase == VolumePhaseReady
}
