package repository

import (
	"github.com/cuemby/virtplane/pkg/storage"
)

// Index names shared across kinds
const (
	IndexName        = "name"
	IndexHostname    = "hostname"
	IndexToken       = "token"
	IndexPeerAddress = "peer_address"
	IndexPrefix      = "prefix"
)

// Kind names used in errors, events and metric labels
const (
	KindCluster           = "cluster"
	KindNode              = "node"
	KindVirtualMachine    = "virtual_machine"
	KindStoragePool       = "storage_pool"
	KindVolume            = "volume"
	KindVirtualNetwork    = "virtual_network"
	KindLoadBalancer      = "load_balancer"
	KindVpnService        = "vpn_service"
	KindBGPSpeaker        = "bgp_speaker"
	KindBGPPeer           = "bgp_peer"
	KindBGPAdvertisement  = "bgp_advertisement"
	KindSecurityGroup     = "security_group"
	KindRegistrationToken = "registration_token"
)

// projectNameIndex is the (project, name) uniqueness key used by most kinds
func projectNameIndex[T storage.Object](project, name func(T) string) storage.Index[T] {
	return storage.Index[T]{
		Name: IndexName,
		Key: func(obj T) storage.Key {
			return storage.ScopedKey(project(obj), name(obj))
		},
	}
}

func labelsOf[T storage.Object](obj T) map[string]string {
	return obj.GetObjectMeta().Labels
}

func phaseStrings[P ~string](phases []P) []string {
	if len(phases) == 0 {
		return nil
	}
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}

// countPhases tallies entities by phase for the entity gauges
func countPhases[T any](items []T, phase func(T) string) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		counts[phase(item)]++
	}
	return counts
}

// offsetPage lists matches in creation order and slices them by offset and limit
func offsetPage[T storage.Object](store storage.Store[T], match storage.Predicate[T], limit, offset int) ([]T, int) {
	return storage.Paginate(store.List(match), offset, limit)
}
