package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/log"
	"github.com/cuemby/virtplane/pkg/metrics"
	"github.com/cuemby/virtplane/pkg/repository"
	"github.com/cuemby/virtplane/pkg/storage"
)

// ComponentName is the health registry name of the entity stores
const ComponentName = "store"

// Manager owns one repository per entity kind and applies the cross-entity
// policies that the stores themselves do not enforce
type Manager struct {
	cfg    *Config
	clock  func() time.Time
	logger zerolog.Logger

	clusters       *repository.ClusterRepository
	nodes          *repository.NodeRepository
	vms            *repository.VMRepository
	pools          *repository.StoragePoolRepository
	volumes        *repository.VolumeRepository
	networks       *repository.VirtualNetworkRepository
	loadBalancers  *repository.LoadBalancerRepository
	vpns           *repository.VpnServiceRepository
	bgp            *repository.BGPRepository
	securityGroups *repository.SecurityGroupRepository
	tokens         *repository.RegistrationTokenRepository

	tokenManager *TokenManager
	eventBroker  *events.Broker

	// attachMu serializes volume attach and detach
	attachMu sync.Mutex
}

// NewManager creates a Manager with empty stores. Store options are applied
// to every repository after the manager's own event publisher, so a caller
// may override the clock or ID generator.
func NewManager(cfg *Config, opts ...storage.Option) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eventBroker := events.NewBroker()
	eventBroker.Start()

	storeOpts := append([]storage.Option{storage.WithPublisher(eventBroker)}, opts...)
	clock := storage.NewConfig(storeOpts...).Clock

	m := &Manager{
		cfg:            cfg,
		clock:          clock,
		logger:         log.WithComponent("manager"),
		clusters:       repository.NewClusterRepository(storeOpts...),
		nodes:          repository.NewNodeRepository(storeOpts...),
		vms:            repository.NewVMRepository(storeOpts...),
		pools:          repository.NewStoragePoolRepository(storeOpts...),
		volumes:        repository.NewVolumeRepository(storeOpts...),
		networks:       repository.NewVirtualNetworkRepository(storeOpts...),
		loadBalancers:  repository.NewLoadBalancerRepository(storeOpts...),
		vpns:           repository.NewVpnServiceRepository(storeOpts...),
		bgp:            repository.NewBGPRepository(storeOpts...),
		securityGroups: repository.NewSecurityGroupRepository(storeOpts...),
		tokens:         repository.NewRegistrationTokenRepository(storeOpts...),
		eventBroker:    eventBroker,
	}
	m.tokenManager = NewTokenManager(m.tokens, m.nodes, clock, eventBroker)
	metrics.RegisterComponent(ComponentName, true, "")

	return m, nil
}

// Shutdown stops the event broker and marks the stores unavailable
func (m *Manager) Shutdown() {
	m.eventBroker.Stop()
	metrics.UpdateComponent(ComponentName, false, "shut down")
}

// Config returns the manager configuration
func (m *Manager) Config() *Config {
	return m.cfg
}

// Now returns the current time from the manager's clock
func (m *Manager) Now() time.Time {
	return m.clock()
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// PublishEvent publishes an event to all subscribers
func (m *Manager) PublishEvent(event *events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = m.clock()
	}
	m.eventBroker.Publish(event)
}

// Repository accessors. Calls made directly on a repository skip the
// manager's reference checks.

func (m *Manager) Clusters() *repository.ClusterRepository             { return m.clusters }
func (m *Manager) Nodes() *repository.NodeRepository                   { return m.nodes }
func (m *Manager) VMs() *repository.VMRepository                       { return m.vms }
func (m *Manager) StoragePools() *repository.StoragePoolRepository     { return m.pools }
func (m *Manager) Volumes() *repository.VolumeRepository               { return m.volumes }
func (m *Manager) Networks() *repository.VirtualNetworkRepository      { return m.networks }
func (m *Manager) LoadBalancers() *repository.LoadBalancerRepository   { return m.loadBalancers }
func (m *Manager) VpnServices() *repository.VpnServiceRepository       { return m.vpns }
func (m *Manager) BGP() *repository.BGPRepository                      { return m.bgp }
func (m *Manager) SecurityGroups() *repository.SecurityGroupRepository { return m.securityGroups }
func (m *Manager) Tokens() *repository.RegistrationTokenRepository     { return m.tokens }

// TokenManager returns the registration token flow
func (m *Manager) TokenManager() *TokenManager {
	return m.tokenManager
}

// PhaseCounts returns entity counts by kind and phase for every kind that has a phase
func (m *Manager) PhaseCounts() map[string]map[string]int {
	return map[string]map[string]int{
		repository.KindCluster:        m.clusters.PhaseCounts(),
		repository.KindNode:           m.nodes.PhaseCounts(),
		repository.KindVirtualMachine: m.vms.PhaseCounts(),
		repository.KindStoragePool:    m.pools.PhaseCounts(),
		repository.KindVolume:         m.volumes.PhaseCounts(),
		repository.KindVirtualNetwork: m.networks.PhaseCounts(),
		repository.KindLoadBalancer:   m.loadBalancers.PhaseCounts(),
		repository.KindVpnService:     m.vpns.PhaseCounts(),
		repository.KindBGPSpeaker:     m.bgp.SpeakerPhaseCounts(),
		repository.KindBGPPeer:        m.bgp.PeerStateCounts(),
	}
}
