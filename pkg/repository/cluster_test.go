package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

type eventRecorder struct {
	events []*events.Event
}

func (r *eventRecorder) Publish(ev *events.Event) {
	r.events = append(r.events, ev)
}

func TestClusterRepository(t *testing.T) {
	rec := &eventRecorder{}
	repo := NewClusterRepository(clockOpt(), storage.WithPublisher(rec))

	prod, err := repo.Create(&types.Cluster{
		Name:      "prod",
		ProjectID: "p1",
		ObjectMeta: types.ObjectMeta{
			Labels: map[string]string{"env": "prod"},
		},
		Spec: types.ClusterSpec{HA: types.HAConfig{Enabled: true, FailoverCapacity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ClusterPhaseHealthy, prod.Status.Phase)

	dev, err := repo.Create(&types.Cluster{Name: "dev", ProjectID: "p1"})
	require.NoError(t, err)

	_, err = repo.Create(&types.Cluster{Name: "prod", ProjectID: "p1"})
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))

	got, err := repo.List(ClusterFilter{Labels: map[string]string{"env": "prod"}})
	require.NoError(t, err)
	assert.Equal(t, []string{prod.ID}, ids(got))

	got, err = repo.List(ClusterFilter{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{prod.ID, dev.ID}, ids(got))

	_, err = repo.UpdateStatus(dev.ID, types.ClusterStatus{Phase: types.ClusterPhaseMaintenance})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(dev.ID))

	want := []events.EventType{
		events.TypeFor(KindCluster, events.ActionCreated),
		events.TypeFor(KindCluster, events.ActionCreated),
		events.TypeFor(KindCluster, events.ActionUpdated),
		events.TypeFor(KindCluster, events.ActionDeleted),
	}
	var gotTypes []events.EventType
	for _, ev := range rec.events {
		gotTypes = append(gotTypes, ev.Type)
		assert.Equal(t, KindCluster, ev.Kind)
	}
	assert.Equal(t, want, gotTypes)
	assert.Equal(t, dev.ID, rec.events[3].EntityID)
}
