package types

// BGPPeerState is the session state of a BGP neighbor
type BGPPeerState string

const (
	BGPPeerStateIdle        BGPPeerState = "IDLE"
	BGPPeerStateConnect     BGPPeerState = "CONNECT"
	BGPPeerStateActive      BGPPeerState = "ACTIVE"
	BGPPeerStateOpenSent    BGPPeerState = "OPEN_SENT"
	BGPPeerStateOpenConfirm BGPPeerState = "OPEN_CONFIRM"
	BGPPeerStateEstablished BGPPeerState = "ESTABLISHED"
)

// DefaultLocalPref is applied to advertisements created without one
const DefaultLocalPref = 100

// BGPSpeaker is a routing daemon instance on a node
type BGPSpeaker struct {
	ObjectMeta
	Name      string
	ProjectID string
	NodeID    string
	Spec      BGPSpeakerSpec
	Status    BGPSpeakerStatus
}

// BGPSpeakerSpec is the declared configuration of a speaker
type BGPSpeakerSpec struct {
	LocalASN uint32 `yaml:"localASN"`
	RouterID string `yaml:"routerID"`
}

// BGPSpeakerStatus is the observed state of a speaker
type BGPSpeakerStatus struct {
	Phase            NetworkPhase
	EstablishedPeers int
	ErrorMessage     string
}

// BGPPeer is a neighbor session of a speaker
type BGPPeer struct {
	ObjectMeta
	SpeakerID string
	Name      string
	Spec      BGPPeerSpec
	Status    BGPPeerStatus
}

// BGPPeerSpec is the declared configuration of a peer
type BGPPeerSpec struct {
	PeerAddress string `yaml:"peerAddress"`
	PeerASN     uint32 `yaml:"peerASN"`
	Password    string `yaml:"password,omitempty"`
}

// BGPPeerStatus is the observed session state of a peer
type BGPPeerStatus struct {
	State            BGPPeerState
	PrefixesReceived int
	PrefixesSent     int
}

// BGPAdvertisement is a prefix announced by a speaker
type BGPAdvertisement struct {
	ObjectMeta
	SpeakerID string
	Spec      BGPAdvertisementSpec
}

// BGPAdvertisementSpec is the declared announcement
type BGPAdvertisementSpec struct {
	Prefix      string   `yaml:"prefix"`
	NextHop     string   `yaml:"nextHop"`
	Communities []string `yaml:"communities"`
	LocalPref   uint32   `yaml:"localPref"`
}
