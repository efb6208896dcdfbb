package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/virtplane/pkg/types"
)

func newCandidate(id string, freeCPU int32, freeMiB int64, vmCount int) *candidate {
	return &candidate{
		node:    &types.Node{ObjectMeta: types.ObjectMeta{ID: id}},
		freeCPU: freeCPU,
		freeMiB: freeMiB,
		vmCount: vmCount,
	}
}

func vmRequesting(cpu int32, mib int64) *types.VirtualMachine {
	return &types.VirtualMachine{
		Spec: types.VMSpec{
			CPU:    types.VMCPU{Sockets: 1, Cores: cpu},
			Memory: types.VMMemory{SizeMiB: mib},
		},
	}
}

// TestSelectNode tests the node selection logic
func TestSelectNode(t *testing.T) {
	tests := []struct {
		name       string
		candidates []*candidate
		vm         *types.VirtualMachine
		expected   string
	}{
		{
			name:       "single node available",
			candidates: []*candidate{newCandidate("node-1", 8, 16384, 0)},
			vm:         vmRequesting(2, 4096),
			expected:   "node-1",
		},
		{
			name: "most free memory wins",
			candidates: []*candidate{
				newCandidate("node-1", 8, 8192, 0),
				newCandidate("node-2", 8, 32768, 5),
			},
			vm:       vmRequesting(2, 4096),
			expected: "node-2",
		},
		{
			name: "memory tie spreads by VM count",
			candidates: []*candidate{
				newCandidate("node-1", 8, 16384, 3),
				newCandidate("node-2", 8, 16384, 1),
			},
			vm:       vmRequesting(2, 4096),
			expected: "node-2",
		},
		{
			name: "full tie picks lowest ID",
			candidates: []*candidate{
				newCandidate("node-b", 8, 16384, 1),
				newCandidate("node-a", 8, 16384, 1),
			},
			vm:       vmRequesting(2, 4096),
			expected: "node-a",
		},
		{
			name: "skips nodes without enough memory",
			candidates: []*candidate{
				newCandidate("node-1", 8, 2048, 0),
				newCandidate("node-2", 8, 4096, 4),
			},
			vm:       vmRequesting(2, 4096),
			expected: "node-2",
		},
		{
			name: "skips nodes without enough CPU",
			candidates: []*candidate{
				newCandidate("node-1", 1, 65536, 0),
				newCandidate("node-2", 4, 8192, 0),
			},
			vm:       vmRequesting(2, 4096),
			expected: "node-2",
		},
		{
			name:       "nothing fits",
			candidates: []*candidate{newCandidate("node-1", 1, 1024, 0)},
			vm:         vmRequesting(2, 4096),
			expected:   "",
		},
		{
			name:       "no nodes available",
			candidates: nil,
			vm:         vmRequesting(1, 512),
			expected:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected := selectNode(tt.candidates, tt.vm)
			if tt.expected == "" {
				assert.Nil(t, selected)
				return
			}
			if assert.NotNil(t, selected) {
				assert.Equal(t, tt.expected, selected.node.ID)
			}
		})
	}
}

// TestMatchesPlacement tests cluster pinning and node selectors
func TestMatchesPlacement(t *testing.T) {
	node := &types.Node{
		ObjectMeta: types.ObjectMeta{ID: "node-1", Labels: map[string]string{"gpu": "true", "zone": "a"}},
		ClusterID:  "c1",
	}

	tests := []struct {
		name      string
		placement *types.PlacementPolicy
		expected  bool
	}{
		{name: "no policy", placement: nil, expected: true},
		{name: "matching cluster", placement: &types.PlacementPolicy{ClusterID: "c1"}, expected: true},
		{name: "other cluster", placement: &types.PlacementPolicy{ClusterID: "c2"}, expected: false},
		{name: "matching selector", placement: &types.PlacementPolicy{NodeSelector: map[string]string{"gpu": "true"}}, expected: true},
		{name: "selector value differs", placement: &types.PlacementPolicy{NodeSelector: map[string]string{"zone": "b"}}, expected: false},
		{name: "selector key missing", placement: &types.PlacementPolicy{NodeSelector: map[string]string{"ssd": "true"}}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesPlacement(node, tt.placement))
		})
	}
}

// TestResourceRequest tests the resources a VM reserves
func TestResourceRequest(t *testing.T) {
	vm := &types.VirtualMachine{
		Spec: types.VMSpec{
			CPU:    types.VMCPU{Sockets: 2, Cores: 2, Threads: 2},
			Memory: types.VMMemory{SizeMiB: 8192},
		},
	}

	req := vm.ResourceRequest()
	assert.Equal(t, int32(8), req.CPUCores)
	assert.Equal(t, int64(8192), req.MemoryMiB)
}
