package types

// NetworkPhase represents the lifecycle phase of a virtual network and its services
type NetworkPhase string

const (
	NetworkPhasePending  NetworkPhase = "PENDING"
	NetworkPhaseReady    NetworkPhase = "READY"
	NetworkPhaseError    NetworkPhase = "ERROR"
	NetworkPhaseDeleting NetworkPhase = "DELETING"
)

// NetworkType identifies how a virtual network is realized
type NetworkType string

const (
	NetworkTypeOverlay  NetworkType = "OVERLAY"
	NetworkTypeVLAN     NetworkType = "VLAN"
	NetworkTypeExternal NetworkType = "EXTERNAL"
	NetworkTypeIsolated NetworkType = "ISOLATED"
)

// DefaultMTU is applied to networks created without one
const DefaultMTU = 1500

// VirtualNetwork is an L2/L3 network for VMs
type VirtualNetwork struct {
	ObjectMeta
	Name        string
	ProjectID   string
	Description string
	Spec        VirtualNetworkSpec
	Status      VirtualNetworkStatus
}

// VirtualNetworkSpec is the declared configuration of a network
type VirtualNetworkSpec struct {
	Type                   NetworkType     `yaml:"type"`
	IPConfig               IPAddressConfig `yaml:"ipConfig"`
	VLAN                   *VLANConfig     `yaml:"vlan,omitempty"`
	MTU                    uint32          `yaml:"mtu"`
	DefaultSecurityGroupID string          `yaml:"defaultSecurityGroupID"`
	PortSecurityEnabled    bool            `yaml:"portSecurityEnabled"`
}

// IPAddressConfig describes network addressing
type IPAddressConfig struct {
	IPv4Subnet  string   `yaml:"ipv4Subnet"`
	IPv4Gateway string   `yaml:"ipv4Gateway"`
	IPv6Subnet  string   `yaml:"ipv6Subnet"`
	DHCPEnabled bool     `yaml:"dhcpEnabled"`
	DNSServers  []string `yaml:"dnsServers"`
}

// VLANConfig holds VLAN settings
type VLANConfig struct {
	VLANID          uint32 `yaml:"vlanID"`
	PhysicalNetwork string `yaml:"physicalNetwork"`
}

// VirtualNetworkStatus is the observed state of a network
type VirtualNetworkStatus struct {
	Phase        NetworkPhase
	PortCount    uint32
	ErrorMessage string
}

// IsReady returns true if the network is usable
func (n *VirtualNetwork) IsReady() bool {
	return n.Status.Phase == NetworkPhaseReady
}

// RuleDirection is the traffic direction a rule applies to
type RuleDirection string

const (
	RuleDirectionIngress RuleDirection = "INGRESS"
	RuleDirectionEgress  RuleDirection = "EGRESS"
)

// RuleAction is what happens to matching traffic
type RuleAction string

const (
	RuleActionAllow  RuleAction = "ALLOW"
	RuleActionDrop   RuleAction = "DROP"
	RuleActionReject RuleAction = "REJECT"
)

// DefaultRulePriority is applied to rules created without a priority
const DefaultRulePriority = 100

// SecurityGroup is a set of firewall rules applied to ports
type SecurityGroup struct {
	ObjectMeta
	Name        string
	ProjectID   string
	Description string
	Spec        SecurityGroupSpec
}

// SecurityGroupSpec holds the rules of a security group
type SecurityGroupSpec struct {
	Stateful bool                `yaml:"stateful"`
	Rules    []SecurityGroupRule `yaml:"rules"`
}

// SecurityGroupRule is a single firewall rule
type SecurityGroupRule struct {
	ID                    string        `yaml:"id"`
	Direction             RuleDirection `yaml:"direction"`
	Protocol              string        `yaml:"protocol"` // tcp, udp, icmp, any
	PortMin               uint32        `yaml:"portMin"`
	PortMax               uint32        `yaml:"portMax"`
	RemoteIPPrefix        string        `yaml:"remoteIPPrefix"`
	RemoteSecurityGroupID string        `yaml:"remoteSecurityGroupID"`
	Action                RuleAction    `yaml:"action"`
	Priority              uint32        `yaml:"priority"`
	Description           string        `yaml:"description"`
}

// LBAlgorithm selects how a load balancer spreads traffic
type LBAlgorithm string

const (
	LBAlgorithmRoundRobin       LBAlgorithm = "ROUND_ROBIN"
	LBAlgorithmLeastConnections LBAlgorithm = "LEAST_CONNECTIONS"
	LBAlgorithmSourceIP         LBAlgorithm = "SOURCE_IP"
)

// DefaultMemberWeight is applied to members created without a weight
const DefaultMemberWeight = 1

// LoadBalancer distributes traffic to members on a network
type LoadBalancer struct {
	ObjectMeta
	Name        string
	ProjectID   string
	NetworkID   string
	Description string
	Spec        LoadBalancerSpec
	Status      LoadBalancerStatus
}

// LoadBalancerSpec is the declared configuration of a load balancer
type LoadBalancerSpec struct {
	VIP       string       `yaml:"vip"`
	Algorithm LBAlgorithm  `yaml:"algorithm"`
	Protocol  string       `yaml:"protocol"`
	Listeners []LBListener `yaml:"listeners"`
	Members   []LBMember   `yaml:"members"`
}

// LBListener accepts traffic on a port
type LBListener struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
}

// LBMember is a backend receiving traffic
type LBMember struct {
	ID         string `yaml:"id"`
	ListenerID string `yaml:"listenerID"`
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`
	Weight     int    `yaml:"weight"`
}

// LoadBalancerStatus is the observed state of a load balancer
type LoadBalancerStatus struct {
	Phase         NetworkPhase
	ProvisionedIP string
	ErrorMessage  string
}

// VpnType identifies the VPN technology
type VpnType string

const (
	VpnTypeWireGuard VpnType = "WIREGUARD"
	VpnTypeIPsec     VpnType = "IPSEC"
)

// VpnService terminates site-to-site or client tunnels for a network
type VpnService struct {
	ObjectMeta
	Name        string
	ProjectID   string
	NetworkID   string
	Description string
	Spec        VpnServiceSpec
	Status      VpnServiceStatus
}

// VpnServiceSpec is the declared configuration of a VPN service
type VpnServiceSpec struct {
	Type         VpnType         `yaml:"type"`
	RouterID     string          `yaml:"routerID"`
	ExternalIP   string          `yaml:"externalIP"`
	LocalSubnets []string        `yaml:"localSubnets"`
	Connections  []VpnConnection `yaml:"connections"`
}

// VpnConnection is one remote peer of a VPN service
type VpnConnection struct {
	Name          string   `yaml:"name"`
	PeerAddress   string   `yaml:"peerAddress"`
	PeerPublicKey string   `yaml:"peerPublicKey"`
	PeerCIDRs     []string `yaml:"peerCIDRs"`
}

// VpnServiceStatus is the observed state of a VPN service
type VpnServiceStatus struct {
	Phase        NetworkPhase
	PublicKey    string
	ErrorMessage string
}
