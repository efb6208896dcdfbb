package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store operation results
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultError    = "error"
)

var (
	// Entity store metrics
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "virtplane_store_operations_total",
			Help: "Total number of entity store operations by kind, operation and result",
		},
		[]string{"kind", "op", "result"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "virtplane_store_operation_duration_seconds",
			Help:    "Entity store operation duration in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"kind", "op"},
	)

	EntitiesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "virtplane_entities",
			Help: "Number of stored entities by kind",
		},
		[]string{"kind"},
	)

	EntitiesByPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "virtplane_entities_by_phase",
			Help: "Number of stored entities by kind and phase",
		},
		[]string{"kind", "phase"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "virtplane_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "virtplane_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	NodesMarkedNotReady = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "virtplane_nodes_marked_not_ready_total",
			Help: "Total number of nodes moved to NOT_READY after missing heartbeats",
		},
	)

	OrphanedVolumesDetached = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "virtplane_orphaned_volumes_detached_total",
			Help: "Total number of volumes detached because their VM no longer exists",
		},
	)

	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "virtplane_scheduling_latency_seconds",
			Help:    "Time taken for a scheduling cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	VMsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "virtplane_vms_scheduled_total",
			Help: "Total number of VMs placed on a node",
		},
	)

	VMsUnschedulable = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "virtplane_vms_unschedulable_total",
			Help: "Total number of placement attempts that found no fitting node",
		},
	)

	// Registration metrics
	NodeRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "virtplane_node_registrations_total",
			Help: "Total number of node registration attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(StoreOperationsTotal)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(EntitiesTotal)
	prometheus.MustRegister(EntitiesByPhase)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(NodesMarkedNotReady)
	prometheus.MustRegister(OrphanedVolumesDetached)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(VMsScheduled)
	prometheus.MustRegister(VMsUnschedulable)
	prometheus.MustRegister(NodeRegistrationsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordStoreOperation counts a store operation and observes its duration
func RecordStoreOperation(kind, op, result string, timer *Timer) {
	StoreOperationsTotal.WithLabelValues(kind, op, result).Inc()
	timer.ObserveDurationVec(StoreOperationDuration, kind, op)
}
