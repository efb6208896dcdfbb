package manager

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/virtplane/pkg/metrics"
	"github.com/cuemby/virtplane/pkg/repository"
	"github.com/cuemby/virtplane/pkg/types"
)

func TestMetricsCollector_Collect(t *testing.T) {
	mgr, _ := newTestManager(t)

	for _, name := range []string{"a", "b", "c"} {
		_, err := mgr.VMs().Create(&types.VirtualMachine{Name: name, ProjectID: "p1"})
		require.NoError(t, err)
	}
	node, err := mgr.CreateNode(&types.Node{Hostname: "h1"})
	require.NoError(t, err)
	_, err = mgr.Nodes().UpdateStatus(node.ID, types.NodeStatus{Phase: types.NodePhaseReady})
	require.NoError(t, err)

	collector := NewMetricsCollector(mgr)
	collector.Collect()

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.EntitiesByPhase.WithLabelValues(repository.KindVirtualMachine, "PENDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EntitiesByPhase.WithLabelValues(repository.KindNode, "READY")))

	_, err = mgr.Nodes().UpdateStatus(node.ID, types.NodeStatus{Phase: types.NodePhaseNotReady})
	require.NoError(t, err)
	collector.Collect()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EntitiesByPhase.WithLabelValues(repository.KindNode, "NOT_READY")))
	// stale READY series was dropped by the reset, so reading it recreates it at zero
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.EntitiesByPhase.WithLabelValues(repository.KindNode, "READY")))

	collector.Stop()
	collector.Stop()
}
