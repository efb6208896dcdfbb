/*
Package metrics defines the Prometheus collectors of the control plane and
the component health registry behind /ready.

All collectors are registered on the default registry at init and exposed
by Handler.

# Store

	virtplane_store_operations_total{kind,op,result}     counter
	virtplane_store_operation_duration_seconds{kind,op}   histogram
	virtplane_entities{kind}                              gauge, set by stores
	virtplane_entities_by_phase{kind,phase}               gauge, set by the collector

result is one of ok, not_found, conflict or error.

# Control loops

	virtplane_reconciliation_duration_seconds
	virtplane_reconciliation_cycles_total
	virtplane_nodes_marked_not_ready_total
	virtplane_orphaned_volumes_detached_total
	virtplane_scheduling_latency_seconds
	virtplane_vms_scheduled_total
	virtplane_vms_unschedulable_total
	virtplane_node_registrations_total{result}

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

# Health registry

Components report with RegisterComponent and UpdateComponent. GetHealth is
unhealthy when any registered component is; GetReadiness is ready only when
every critical component (store, reconciler, scheduler by default) has
registered and is healthy.
*/
package metrics
