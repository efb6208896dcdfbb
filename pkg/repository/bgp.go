package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// BGPSpeakerFilter selects speakers for ListSpeakers
type BGPSpeakerFilter struct {
	ProjectID    string
	NodeID       string
	Phases       []types.NetworkPhase
	Labels       map[string]string
	NameContains string
}

var bgpSpeakerKind = storage.Kind[*types.BGPSpeaker]{
	Name: KindBGPSpeaker,
	Indexes: []storage.Index[*types.BGPSpeaker]{
		projectNameIndex(
			func(s *types.BGPSpeaker) string { return s.ProjectID },
			func(s *types.BGPSpeaker) string { return s.Name },
		),
	},
	Defaults: func(s *types.BGPSpeaker) {
		if s.Status.Phase == "" {
			s.Status.Phase = types.NetworkPhasePending
		}
	},
}

var bgpSpeakerAccessors = storage.Accessors[*types.BGPSpeaker]{
	Scope:  func(s *types.BGPSpeaker) string { return s.ProjectID },
	Phase:  func(s *types.BGPSpeaker) string { return string(s.Status.Phase) },
	Labels: labelsOf[*types.BGPSpeaker],
	Name:   func(s *types.BGPSpeaker) string { return s.Name },
}

var bgpPeerKind = storage.Kind[*types.BGPPeer]{
	Name: KindBGPPeer,
	Indexes: []storage.Index[*types.BGPPeer]{
		{Name: IndexPeerAddress, Key: func(p *types.BGPPeer) storage.Key {
			return storage.ScopedKey(p.SpeakerID, p.Spec.PeerAddress)
		}},
	},
	Defaults: func(p *types.BGPPeer) {
		if p.Status.State == "" {
			p.Status.State = types.BGPPeerStateIdle
		}
	},
}

var bgpAdvertisementKind = storage.Kind[*types.BGPAdvertisement]{
	Name: KindBGPAdvertisement,
	Indexes: []storage.Index[*types.BGPAdvertisement]{
		{Name: IndexPrefix, Key: func(a *types.BGPAdvertisement) storage.Key {
			return storage.ScopedKey(a.SpeakerID, a.Spec.Prefix)
		}},
	},
	Defaults: func(a *types.BGPAdvertisement) {
		if a.Spec.LocalPref == 0 {
			a.Spec.LocalPref = types.DefaultLocalPref
		}
	},
}

// BGPRepository stores speakers and the peers and advertisements that hang off them.
// Peers are unique per (speaker, peer address), advertisements per (speaker, prefix).
// Nothing here checks that the referenced speaker exists.
type BGPRepository struct {
	speakers       storage.Store[*types.BGPSpeaker]
	peers          storage.Store[*types.BGPPeer]
	advertisements storage.Store[*types.BGPAdvertisement]
}

// NewBGPRepository creates a BGP repository backed by three concurrent stores
func NewBGPRepository(opts ...storage.Option) *BGPRepository {
	return &BGPRepository{
		speakers:       storage.NewConcurrentStore(bgpSpeakerKind, opts...),
		peers:          storage.NewConcurrentStore(bgpPeerKind, opts...),
		advertisements: storage.NewConcurrentStore(bgpAdvertisementKind, opts...),
	}
}

// CreateSpeaker stores a new speaker
func (r *BGPRepository) CreateSpeaker(speaker *types.BGPSpeaker) (*types.BGPSpeaker, error) {
	return r.speakers.Create(speaker)
}

// GetSpeaker returns a speaker by ID
func (r *BGPRepository) GetSpeaker(id string) (*types.BGPSpeaker, error) {
	return r.speakers.Get(id)
}

// GetSpeakerByName returns a speaker by project and name
func (r *BGPRepository) GetSpeakerByName(projectID, name string) (*types.BGPSpeaker, error) {
	return r.speakers.Lookup(IndexName, storage.ScopedKey(projectID, name))
}

// UpdateSpeaker replaces a speaker
func (r *BGPRepository) UpdateSpeaker(speaker *types.BGPSpeaker) (*types.BGPSpeaker, error) {
	return r.speakers.Update(speaker)
}

// UpdateSpeakerStatus replaces only the status of a speaker
func (r *BGPRepository) UpdateSpeakerStatus(id string, status types.BGPSpeakerStatus) (*types.BGPSpeaker, error) {
	return r.speakers.Patch(id, func(s *types.BGPSpeaker) {
		s.Status = status
	})
}

// DeleteSpeaker removes a speaker; its peers and advertisements are left in place
func (r *BGPRepository) DeleteSpeaker(id string) error {
	return r.speakers.Delete(id)
}

// ListSpeakers returns a page of speakers matching filter in creation order and the total match count
func (r *BGPRepository) ListSpeakers(filter BGPSpeakerFilter, limit, offset int) ([]*types.BGPSpeaker, int, error) {
	match := storage.Compile(storage.Criteria{
		Scope:        filter.ProjectID,
		Phases:       phaseStrings(filter.Phases),
		Labels:       filter.Labels,
		NameContains: filter.NameContains,
	}, bgpSpeakerAccessors)
	if filter.NodeID != "" {
		nodeID := filter.NodeID
		match = storage.And(match, func(s *types.BGPSpeaker) bool { return s.NodeID == nodeID })
	}

	items, total := offsetPage(r.speakers, match, limit, offset)
	return items, total, nil
}

// ListSpeakersByNode returns the speakers running on a node
func (r *BGPRepository) ListSpeakersByNode(nodeID string) ([]*types.BGPSpeaker, error) {
	return r.speakers.List(func(s *types.BGPSpeaker) bool { return s.NodeID == nodeID }), nil
}

// CreatePeer stores a new peer session
func (r *BGPRepository) CreatePeer(peer *types.BGPPeer) (*types.BGPPeer, error) {
	return r.peers.Create(peer)
}

// GetPeer returns a peer by ID
func (r *BGPRepository) GetPeer(id string) (*types.BGPPeer, error) {
	return r.peers.Get(id)
}

// GetPeerByAddress returns the peer of a speaker with the given neighbor address
func (r *BGPRepository) GetPeerByAddress(speakerID, address string) (*types.BGPPeer, error) {
	return r.peers.Lookup(IndexPeerAddress, storage.ScopedKey(speakerID, address))
}

// UpdatePeer replaces a peer. Moving it to an address its speaker already
// peers with fails with ErrAlreadyExists.
func (r *BGPRepository) UpdatePeer(peer *types.BGPPeer) (*types.BGPPeer, error) {
	return r.peers.Update(peer)
}

// UpdatePeerStatus replaces only the session status of a peer
func (r *BGPRepository) UpdatePeerStatus(id string, status types.BGPPeerStatus) (*types.BGPPeer, error) {
	return r.peers.Patch(id, func(p *types.BGPPeer) {
		p.Status = status
	})
}

// DeletePeer removes a peer
func (r *BGPRepository) DeletePeer(id string) error {
	return r.peers.Delete(id)
}

// ListPeers returns the peers of a speaker
func (r *BGPRepository) ListPeers(speakerID string) ([]*types.BGPPeer, error) {
	return r.peers.List(func(p *types.BGPPeer) bool { return p.SpeakerID == speakerID }), nil
}

// CreateAdvertisement stores a new announced prefix
func (r *BGPRepository) CreateAdvertisement(adv *types.BGPAdvertisement) (*types.BGPAdvertisement, error) {
	return r.advertisements.Create(adv)
}

// GetAdvertisement returns an advertisement by ID
func (r *BGPRepository) GetAdvertisement(id string) (*types.BGPAdvertisement, error) {
	return r.advertisements.Get(id)
}

// GetAdvertisementByPrefix returns the advertisement of a speaker for a prefix
func (r *BGPRepository) GetAdvertisementByPrefix(speakerID, prefix string) (*types.BGPAdvertisement, error) {
	return r.advertisements.Lookup(IndexPrefix, storage.ScopedKey(speakerID, prefix))
}

// UpdateAdvertisement replaces an advertisement. Moving it to a prefix its
// speaker already announces fails with ErrAlreadyExists.
func (r *BGPRepository) UpdateAdvertisement(adv *types.BGPAdvertisement) (*types.BGPAdvertisement, error) {
	return r.advertisements.Update(adv)
}

// DeleteAdvertisement removes an advertisement
func (r *BGPRepository) DeleteAdvertisement(id string) error {
	return r.advertisements.Delete(id)
}

// ListAdvertisements returns the prefixes announced by a speaker
func (r *BGPRepository) ListAdvertisements(speakerID string) ([]*types.BGPAdvertisement, error) {
	return r.advertisements.List(func(a *types.BGPAdvertisement) bool { return a.SpeakerID == speakerID }), nil
}

// CountSpeakers returns the number of stored speakers
func (r *BGPRepository) CountSpeakers() int {
	return r.speakers.Len()
}

// CountPeers returns the number of stored peers
func (r *BGPRepository) CountPeers() int {
	return r.peers.Len()
}

// CountAdvertisements returns the number of stored advertisements
func (r *BGPRepository) CountAdvertisements() int {
	return r.advertisements.Len()
}

// SpeakerPhaseCounts tallies speakers by phase
func (r *BGPRepository) SpeakerPhaseCounts() map[string]int {
	return countPhases(r.speakers.List(nil), bgpSpeakerAccessors.Phase)
}

// PeerStateCounts tallies peers by session state
func (r *BGPRepository) PeerStateCounts() map[string]int {
	return countPhases(r.peers.List(nil), func(p *types.BGPPeer) string { return string(p.Status.State) })
}
